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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/AleutianAI/Bibliograph/pkg/ux"
	"github.com/AleutianAI/Bibliograph/services/scholar"
	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
	"github.com/AleutianAI/Bibliograph/services/scholar/ingest"
	"github.com/AleutianAI/Bibliograph/services/scholar/record"
	"github.com/spf13/cobra"
)

// ingestPath builds the ingest endpoint with source and rules params.
func ingestPath(source string, rules []string) string {
	q := url.Values{}
	q.Set("source", source)
	for _, r := range rules {
		q.Add("rules", r)
	}
	return "/v1/corpus/ingest?" + q.Encode()
}

func runIngest(cmd *cobra.Command, args []string) {
	start := time.Now()
	client := api()
	path := ingestPath(ingestSource, ingestRules)

	var results []scholar.IngestResponse
	for _, file := range args {
		f, err := os.Open(file)
		if err != nil {
			code, _ := OutputResult(jsonOutput, "ingest", start, nil, err)
			os.Exit(code)
		}
		var resp scholar.IngestResponse
		err = client.postReader(cmd.Context(), path, f, &resp)
		f.Close()
		if err != nil {
			code, _ := OutputResult(jsonOutput, "ingest", start, nil,
				fmt.Errorf("ingest %s: %w", file, err))
			os.Exit(code)
		}
		results = append(results, resp)
		if !jsonOutput {
			ux.FileStatus(file, ux.IconSuccess, fmt.Sprintf("works=%d rejected=%d edges=%d",
				resp.Result.Works, resp.Rejected, resp.Result.Edges))
		}
	}
	if code, handled := OutputResult(jsonOutput, "ingest", start, results, nil); handled {
		os.Exit(code)
	}

	works, rejected := 0, 0
	for _, r := range results {
		works += r.Result.Works
		rejected += r.Rejected
	}
	ux.Summary(works, rejected, works+rejected)
}

func runWatch(cmd *cobra.Command, args []string) {
	dir := args[0]
	debounce, err := time.ParseDuration(watchDebounce)
	if err != nil {
		ux.Error(fmt.Sprintf("invalid --debounce: %v", err))
		os.Exit(CLIExitError)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api()
	path := ingestPath("watch", watchRules)
	handler := func(ctx context.Context, batch *record.Batch) error {
		body, err := json.Marshal(batch.Works)
		if err != nil {
			return fmt.Errorf("encode batch: %w", err)
		}
		var resp scholar.IngestResponse
		if err := client.postReader(ctx, path, bytes.NewReader(body), &resp); err != nil {
			return err
		}
		ux.FileStatus(batch.Source, ux.IconSuccess, fmt.Sprintf("works=%d edges=%d",
			resp.Result.Works, resp.Result.Edges))
		return nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	opts := ingest.DefaultOptions()
	opts.Debounce = debounce
	watcher, err := ingest.NewWatcher(dir, handler, logger, &opts)
	if err != nil {
		ux.Error(fmt.Sprintf("cannot watch %s: %v", dir, err))
		os.Exit(CLIExitError)
	}
	if err := watcher.Start(ctx); err != nil {
		ux.Error(fmt.Sprintf("cannot watch %s: %v", dir, err))
		os.Exit(CLIExitError)
	}
	defer watcher.Stop()

	ux.Title(fmt.Sprintf("Watching %s (Ctrl-C to stop)", dir))
	<-ctx.Done()
	ux.Muted("stopping watcher")
}

func runGetEntity(cmd *cobra.Command, args []string) {
	start := time.Now()
	label, key := args[0], args[1]

	var resp scholar.EntityResponse
	err := api().getJSON(cmd.Context(), "/v1/corpus/entities/"+label+"/"+key, &resp)
	if code, handled := OutputResult(jsonOutput, "entity get", start, resp, err); handled {
		os.Exit(code)
	}

	ux.Title(fmt.Sprintf("%s %s", resp.Label, resp.Key))
	printAttrs(resp.Attrs)
}

func runCreateEntity(cmd *cobra.Command, args []string) {
	start := time.Now()
	attrs, _ := cmd.Flags().GetStringToString("attr")

	req := scholar.EntityRequest{Label: args[0], Key: args[1]}
	if len(attrs) > 0 {
		req.Attrs = make(map[string]any, len(attrs))
		for k, v := range attrs {
			req.Attrs[k] = v
		}
	}
	var resp scholar.EntityResponse
	err := api().postJSON(cmd.Context(), "/v1/corpus/entities", req, &resp)
	if code, handled := OutputResult(jsonOutput, "entity create", start, resp, err); handled {
		os.Exit(code)
	}

	ux.Success(fmt.Sprintf("created %s %s", resp.Label, resp.Key))
}

func runConnect(cmd *cobra.Command, args []string) {
	start := time.Now()
	req := scholar.ConnectRequest{
		SourceKey: args[0],
		TargetKey: args[1],
		Type:      connectType,
		Weight:    connectWeight,
	}
	err := api().postJSON(cmd.Context(), "/v1/corpus/connect", req, nil)
	if code, handled := OutputResult(jsonOutput, "connect", start, req, err); handled {
		os.Exit(code)
	}

	ux.Success(fmt.Sprintf("%s %s %s %s", args[0], ux.IconArrow, req.Type, args[1]))
}

func runEdges(cmd *cobra.Command, args []string) {
	start := time.Now()
	relType, _ := cmd.Flags().GetString("type")
	direction, _ := cmd.Flags().GetString("direction")

	q := url.Values{}
	q.Set("key", args[0])
	q.Set("type", relType)
	q.Set("direction", direction)

	var edges []scholar.EdgeResponse
	err := api().getJSON(cmd.Context(), "/v1/corpus/edges?"+q.Encode(), &edges)
	if code, handled := OutputResult(jsonOutput, "edges", start, edges, err); handled {
		os.Exit(code)
	}

	ux.Title(fmt.Sprintf("%s %s (%d)", args[0], relType, len(edges)))
	for _, e := range edges {
		ux.Info(fmt.Sprintf("%-8s %-40s weight=%.2f", e.Label, e.Key, e.Weight))
	}
}

func runInfer(cmd *cobra.Command, args []string) {
	start := time.Now()
	req := scholar.InferRequest{Rules: args}

	var resp scholar.InferResponse
	err := api().postJSON(cmd.Context(), "/v1/corpus/infer", req, &resp)
	if code, handled := OutputResult(jsonOutput, "infer", start, resp, err); handled {
		os.Exit(code)
	}

	ux.Title("Inference")
	for _, s := range resp.Summaries {
		ux.Info(fmt.Sprintf("%-22s created=%d strengthened=%d",
			s.Rule, s.EdgesCreated, s.EdgesStrengthened))
	}
}

func runStats(cmd *cobra.Command, args []string) {
	start := time.Now()
	var stats graph.StoreStats
	err := api().getJSON(cmd.Context(), "/v1/corpus/stats", &stats)
	if code, handled := OutputResult(jsonOutput, "stats", start, stats, err); handled {
		os.Exit(code)
	}

	ux.Title(fmt.Sprintf("Graph: %d nodes, %d edges", stats.Nodes, stats.Edges))
	for _, label := range sortedKeys(stats.NodesByLabel) {
		ux.Info(fmt.Sprintf("%-16s %d", label, stats.NodesByLabel[label]))
	}
	for _, rel := range sortedKeys(stats.EdgesByType) {
		ux.Info(fmt.Sprintf("%-16s %d", rel, stats.EdgesByType[rel]))
	}
}

func runCite(cmd *cobra.Command, args []string) {
	start := time.Now()
	label, _ := cmd.Flags().GetString("label")

	var resp scholar.CitationResponse
	err := api().getJSON(cmd.Context(), "/v1/corpus/citation/"+label+"/"+args[0], &resp)
	if code, handled := OutputResult(jsonOutput, "cite", start, resp, err); handled {
		os.Exit(code)
	}

	fmt.Println(resp.Citation)
}

func runStatus(cmd *cobra.Command, args []string) {
	start := time.Now()
	client := api()

	var health scholar.HealthResponse
	if err := client.getJSON(cmd.Context(), "/v1/corpus/health", &health); err != nil {
		code, _ := OutputResult(jsonOutput, "status", start, nil, err)
		os.Exit(code)
	}
	var ready scholar.ReadyResponse
	err := client.getJSON(cmd.Context(), "/v1/corpus/ready", &ready)
	if code, handled := OutputResult(jsonOutput, "status", start, ready, err); handled {
		os.Exit(code)
	}

	ux.Success(fmt.Sprintf("service %s (v%s)", health.Status, health.Version))
	ux.Info(fmt.Sprintf("nodes=%d edges=%d semantic=%v neo4j=%v",
		ready.Nodes, ready.Edges, ready.Semantic, ready.Neo4j))
}

func printAttrs(attrs map[string]any) {
	for _, k := range sortedKeys(attrs) {
		ux.Info(fmt.Sprintf("%-16s %v", k, attrs[k]))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
