// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Analytics facade
// =============================================================================

// AnalyticsOptions bundles the per-algorithm options of a combined run.
// Nil fields select each algorithm's defaults.
type AnalyticsOptions struct {
	PageRank   *PageRankOptions
	Louvain    *LouvainOptions
	Similarity *SimilarityOptions
}

// AnalyticsResult bundles the outputs of one combined run over a single
// projection snapshot.
type AnalyticsResult struct {
	PageRank   *PageRankResult   `json:"pagerank"`
	Louvain    *LouvainResult    `json:"louvain"`
	Similarity *SimilarityResult `json:"similarity"`
}

// Analytics runs the three algorithms over one immutable projection.
//
// Thread Safety: the projection is read-only to every algorithm, so the
// combined run executes them in parallel.
type Analytics struct {
	projection *Projection
}

// NewAnalytics wraps a projection for analysis.
func NewAnalytics(p *Projection) *Analytics {
	return &Analytics{projection: p}
}

// Run executes PageRank, Louvain, and NodeSimilarity concurrently over
// the wrapped projection.
//
// Outputs:
//
//   - *AnalyticsResult: all three results; convergence flags ride inside
//     each result rather than surfacing as errors.
//   - error: ErrNilProjection or the first ctx.Err() observed.
func (a *Analytics) Run(ctx context.Context, opts *AnalyticsOptions) (*AnalyticsResult, error) {
	if a.projection == nil {
		return nil, ErrNilProjection
	}
	if opts == nil {
		opts = &AnalyticsOptions{}
	}

	result := &AnalyticsResult{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := PageRank(ctx, a.projection, opts.PageRank)
		result.PageRank = r
		return err
	})
	g.Go(func() error {
		r, err := Louvain(ctx, a.projection, opts.Louvain)
		result.Louvain = r
		return err
	})
	g.Go(func() error {
		r, err := NodeSimilarity(ctx, a.projection, opts.Similarity)
		result.Similarity = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
