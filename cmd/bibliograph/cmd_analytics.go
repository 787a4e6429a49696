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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/Bibliograph/pkg/ux"
	"github.com/AleutianAI/Bibliograph/services/scholar"
	"github.com/spf13/cobra"
)

// projectionFromFlags reads the shared projection flags registered by
// registerProjectionFlags.
func projectionFromFlags(cmd *cobra.Command) scholar.ProjectionRequest {
	label, _ := cmd.Flags().GetString("label")
	types, _ := cmd.Flags().GetStringSlice("type")
	directed, _ := cmd.Flags().GetBool("directed")
	weighted, _ := cmd.Flags().GetBool("weighted")

	orientation := "undirected"
	if directed {
		orientation = "directed"
	}
	return scholar.ProjectionRequest{
		Label:       label,
		Types:       types,
		Orientation: orientation,
		Weighted:    weighted,
	}
}

func runRank(cmd *cobra.Command, args []string) {
	start := time.Now()
	damping, _ := cmd.Flags().GetFloat64("damping")
	iterations, _ := cmd.Flags().GetInt("iterations")
	topK, _ := cmd.Flags().GetInt("top-k")

	req := scholar.PageRankRequest{
		Projection:    projectionFromFlags(cmd),
		Damping:       damping,
		MaxIterations: iterations,
		TopK:          topK,
	}
	var resp scholar.PageRankResponse
	err := api().postJSON(cmd.Context(), "/v1/corpus/analytics/pagerank", req, &resp)
	if code, handled := OutputResult(jsonOutput, "rank", start, resp, err); handled {
		os.Exit(code)
	}

	converged := "converged"
	if !resp.Converged {
		converged = "did not converge"
	}
	ux.Title(fmt.Sprintf("PageRank (%d iterations, %s)", resp.Iterations, converged))
	for i, n := range resp.Nodes {
		ux.Info(fmt.Sprintf("%2d. %-40s %.6f", i+1, n.Key, n.Score))
	}
}

func runCommunities(cmd *cobra.Command, args []string) {
	start := time.Now()
	maxLevels, _ := cmd.Flags().GetInt("max-levels")

	req := scholar.CommunitiesRequest{
		Projection: projectionFromFlags(cmd),
		MaxLevels:  maxLevels,
	}
	var resp scholar.CommunitiesResponse
	err := api().postJSON(cmd.Context(), "/v1/corpus/analytics/communities", req, &resp)
	if code, handled := OutputResult(jsonOutput, "communities", start, resp, err); handled {
		os.Exit(code)
	}

	ux.Title(fmt.Sprintf("Communities: %d (modularity %.4f, %d levels)",
		len(resp.Communities), resp.Modularity, resp.Levels))
	for _, c := range resp.Communities {
		ux.Info(fmt.Sprintf("#%d (%d): %s", c.ID, len(c.Members), strings.Join(c.Members, ", ")))
	}
}

func runSimilar(cmd *cobra.Command, args []string) {
	start := time.Now()
	topK, _ := cmd.Flags().GetInt("top-k")

	req := scholar.SimilarityRequest{
		Projection: projectionFromFlags(cmd),
		TopK:       topK,
	}
	var resp scholar.SimilarityResponse
	err := api().postJSON(cmd.Context(), "/v1/corpus/analytics/similarity", req, &resp)
	if code, handled := OutputResult(jsonOutput, "similar", start, resp, err); handled {
		os.Exit(code)
	}

	ux.Title(fmt.Sprintf("Similarity (%d comparisons)", resp.Comparisons))
	for _, p := range resp.Pairs {
		ux.Info(fmt.Sprintf("%.4f  %s %s %s", p.Score, p.A, ux.IconWave, p.B))
	}
}

func runAnalyze(cmd *cobra.Command, args []string) {
	start := time.Now()
	req := scholar.AnalyticsRunRequest{Projection: projectionFromFlags(cmd)}

	var resp scholar.AnalyticsRunResponse
	err := api().postJSON(cmd.Context(), "/v1/corpus/analytics/run", req, &resp)
	if code, handled := OutputResult(jsonOutput, "analyze", start, resp, err); handled {
		os.Exit(code)
	}

	ux.Title("Analytics")
	ux.Info(fmt.Sprintf("pagerank: %d nodes ranked in %d iterations",
		len(resp.PageRank.Nodes), resp.PageRank.Iterations))
	ux.Info(fmt.Sprintf("communities: %d at modularity %.4f",
		len(resp.Communities.Communities), resp.Communities.Modularity))
	ux.Info(fmt.Sprintf("similarity: %d pairs from %d comparisons",
		len(resp.Similarity.Pairs), resp.Similarity.Comparisons))
}
