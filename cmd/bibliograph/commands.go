// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"

	"github.com/AleutianAI/Bibliograph/cmd/bibliograph/config"
	"github.com/AleutianAI/Bibliograph/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	jsonOutput       bool
	serverURL        string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	ingestSource string
	ingestRules  []string

	watchDebounce string
	watchRules    []string

	connectType   string
	connectWeight float64

	relatedK int

	suggestVenue string
	suggestYear  int
	suggestType  string

	resetForce bool

	rootCmd = &cobra.Command{
		Use:   "bibliograph",
		Short: "A cli to manage a bibliograph citation graph service",
		Long: `Bibliograph ingests bibliographic records into a typed property
				graph, infers weighted relationships between papers, authors,
				journals and keywords, and runs graph analytics over them.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
			if err := config.Load(); err != nil {
				log.Fatalf("Error loading config: %v", err)
			}
		},
	}

	// --- Corpus ---
	ingestCmd = &cobra.Command{
		Use:     "ingest [file...]",
		Short:   "Ingest record files (JSON or NDJSON) into the graph",
		Aliases: []string{"i"},
		Args:    cobra.MinimumNArgs(1),
		Run:     runIngest, // Defined in cmd_corpus.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch [directory]",
		Short: "Watch a drop directory and ingest record files as they land",
		Args:  cobra.ExactArgs(1),
		Run:   runWatch, // Defined in cmd_corpus.go
	}

	entityCmd = &cobra.Command{
		Use:   "entity",
		Short: "Inspect and create graph entities",
	}
	entityGetCmd = &cobra.Command{
		Use:   "get [label] [key]",
		Short: "Fetch an entity and its attributes",
		Args:  cobra.ExactArgs(2),
		Run:   runGetEntity, // Defined in cmd_corpus.go
	}
	entityCreateCmd = &cobra.Command{
		Use:   "create [label] [key]",
		Short: "Create an entity by hand (records are the usual path)",
		Args:  cobra.ExactArgs(2),
		Run:   runCreateEntity, // Defined in cmd_corpus.go
	}

	connectCmd = &cobra.Command{
		Use:   "connect [source-key] [target-key]",
		Short: "Create or strengthen a relationship between two entities",
		Args:  cobra.ExactArgs(2),
		Run:   runConnect, // Defined in cmd_corpus.go
	}

	edgesCmd = &cobra.Command{
		Use:   "edges [key]",
		Short: "List the relationships of an entity",
		Args:  cobra.ExactArgs(1),
		Run:   runEdges, // Defined in cmd_corpus.go
	}

	inferCmd = &cobra.Command{
		Use:   "infer [rule...]",
		Short: "Run inference rules (all rules when none are named)",
		Run:   runInfer, // Defined in cmd_corpus.go
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show node and edge counts for the graph",
		Run:   runStats, // Defined in cmd_corpus.go
	}

	citeCmd = &cobra.Command{
		Use:   "cite [key]",
		Short: "Format an APA citation for a paper",
		Args:  cobra.ExactArgs(1),
		Run:   runCite, // Defined in cmd_corpus.go
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show health and readiness of the bibliograph service",
		Run:   runStatus, // Defined in cmd_corpus.go
	}

	// --- Analytics ---
	rankCmd = &cobra.Command{
		Use:   "rank",
		Short: "Run PageRank over a projection of the graph",
		Run:   runRank, // Defined in cmd_analytics.go
	}
	communitiesCmd = &cobra.Command{
		Use:   "communities",
		Short: "Detect communities with Louvain over a projection",
		Run:   runCommunities, // Defined in cmd_analytics.go
	}
	similarCmd = &cobra.Command{
		Use:   "similar",
		Short: "Find the most similar node pairs by Jaccard overlap",
		Run:   runSimilar, // Defined in cmd_analytics.go
	}
	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Run the full analytics pass (PageRank, communities, similarity)",
		Run:   runAnalyze, // Defined in cmd_analytics.go
	}

	// --- Suggestions ---
	suggestCmd = &cobra.Command{
		Use:   "suggest",
		Short: "Semantic and LLM-backed suggestions",
	}
	suggestRelatedCmd = &cobra.Command{
		Use:   "related [query]",
		Short: "Find papers semantically related to a query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRelated, // Defined in cmd_suggest.go
	}
	suggestKeywordsCmd = &cobra.Command{
		Use:   "keywords [title]",
		Short: "Suggest keywords for a work that has none",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSuggestKeywords, // Defined in cmd_suggest.go
	}

	// --- Snapshots ---
	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the on-disk graph snapshot (service must be stopped)",
	}
	snapshotInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "Show when the snapshot was saved and what it holds",
		Run:   runSnapshotInfo, // Defined in cmd_snapshot.go
	}
	snapshotBackupCmd = &cobra.Command{
		Use:   "backup [output-file]",
		Short: "Write a portable backup of the snapshot database",
		Args:  cobra.MaximumNArgs(1),
		Run:   runSnapshotBackup, // Defined in cmd_snapshot.go
	}
	snapshotRestoreCmd = &cobra.Command{
		Use:   "restore [backup-file]",
		Short: "Restore the snapshot database from a backup",
		Args:  cobra.ExactArgs(1),
		Run:   runSnapshotRestore, // Defined in cmd_snapshot.go
	}
	snapshotUploadCmd = &cobra.Command{
		Use:   "upload [file-or-directory]",
		Short: "Upload backups to Google Cloud Storage (GCS)",
		Args:  cobra.ExactArgs(1),
		Run:   runSnapshotUpload, // Defined in cmd_snapshot.go
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "DANGER: Deletes the local data directory and all graph data",
		Run:   runReset, // Defined in cmd_snapshot.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output machine-readable JSON instead of styled text")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"Base URL of the bibliograph service (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default), standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestSource, "source", "cli", "Source tag recorded on the ingested batch")
	ingestCmd.Flags().StringSliceVar(&ingestRules, "rules", nil,
		"Inference rules to run after ingest (default all, 'none' to skip)")

	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchDebounce, "debounce", "1s", "Quiet period before a changed file is ingested")
	watchCmd.Flags().StringSliceVar(&watchRules, "rules", nil,
		"Inference rules to run after each batch (default all, 'none' to skip)")

	rootCmd.AddCommand(entityCmd)
	entityCmd.AddCommand(entityGetCmd)
	entityCmd.AddCommand(entityCreateCmd)
	entityCreateCmd.Flags().StringToString("attr", nil, "Attribute to set, repeatable (key=value)")

	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().StringVar(&connectType, "type", "RELATED_TO", "Relationship type")
	connectCmd.Flags().Float64Var(&connectWeight, "weight", 1, "Weight delta for accumulating relationships")

	rootCmd.AddCommand(edgesCmd)
	edgesCmd.Flags().String("type", "", "Relationship type to list")
	edgesCmd.Flags().String("direction", "both", "Edge direction: out, in, or both")

	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(statsCmd)

	rootCmd.AddCommand(citeCmd)
	citeCmd.Flags().String("label", "Paper", "Entity label of the cited work")

	rootCmd.AddCommand(statusCmd)

	// analytics commands share the projection flags
	for _, cmd := range []*cobra.Command{rankCmd, communitiesCmd, similarCmd, analyzeCmd} {
		registerProjectionFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
	rankCmd.Flags().Float64("damping", 0, "Damping factor (0 uses the service default)")
	rankCmd.Flags().Int("iterations", 0, "Maximum iterations (0 uses the service default)")
	rankCmd.Flags().Int("top-k", 10, "Number of top-ranked nodes to return")
	communitiesCmd.Flags().Int("max-levels", 0, "Maximum aggregation levels (0 uses the service default)")
	similarCmd.Flags().Int("top-k", 10, "Number of most similar pairs to return")

	// suggestion commands
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.AddCommand(suggestRelatedCmd)
	suggestRelatedCmd.Flags().IntVar(&relatedK, "k", 10, "Number of candidates to return")
	suggestCmd.AddCommand(suggestKeywordsCmd)
	suggestKeywordsCmd.Flags().StringVar(&suggestVenue, "venue", "", "Venue name for context")
	suggestKeywordsCmd.Flags().IntVar(&suggestYear, "year", 0, "Publication year for context")
	suggestKeywordsCmd.Flags().StringVar(&suggestType, "type", "", "Work type for context")

	// snapshot administration commands
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotInfoCmd)
	snapshotCmd.AddCommand(snapshotBackupCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotCmd.AddCommand(snapshotUploadCmd)

	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip the confirmation prompt")
}

// registerProjectionFlags adds the flags that describe which slice of
// the graph an analytics command runs over.
func registerProjectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("label", "Paper", "Entity label to project")
	cmd.Flags().StringSlice("type", nil, "Relationship types to project (default SHARES_AUTHOR)")
	cmd.Flags().Bool("directed", false, "Keep edge direction in the projection")
	cmd.Flags().Bool("weighted", false, "Use accumulated weights instead of 1.0 per edge")
}
