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
	"log/slog"
	"math"
	"sort"
	"time"
)

// =============================================================================
// PageRank
// =============================================================================

// PageRank configuration constants.
const (
	// DefaultDampingFactor is the probability of following a link (vs a
	// random jump). Standard value from the original PageRank paper.
	DefaultDampingFactor = 0.85

	// DefaultMaxIterations is the iteration cap of the power iteration.
	DefaultMaxIterations = 20

	// DefaultTolerance stops the iteration when the L1 score delta falls
	// below it.
	DefaultTolerance = 1e-6
)

// PageRankOptions configures the PageRank algorithm.
type PageRankOptions struct {
	// DampingFactor is the probability of following a link. Must be in
	// [0, 1]. Default: 0.85
	DampingFactor float64

	// MaxIterations caps the power iteration. Must be > 0. Default: 20
	MaxIterations int

	// Tolerance is the L1 score-delta convergence threshold. Must be > 0.
	// Default: 1e-6
	Tolerance float64
}

// Validate checks options and applies defaults for invalid values.
func (o *PageRankOptions) Validate() {
	if o.DampingFactor < 0 || o.DampingFactor > 1 {
		o.DampingFactor = DefaultDampingFactor
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
}

// DefaultPageRankOptions returns sensible defaults.
func DefaultPageRankOptions() *PageRankOptions {
	return &PageRankOptions{
		DampingFactor: DefaultDampingFactor,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

// PageRankResult contains the PageRank output for one projection.
type PageRankResult struct {
	// Scores holds one score per projection index. Scores are
	// non-negative and sum to 1 up to floating-point tolerance.
	Scores []float64 `json:"scores"`

	// Iterations is the number of power iterations performed.
	Iterations int `json:"iterations"`

	// Converged reports whether the L1 delta fell below the tolerance
	// before the iteration cap. A capped run is approximate, not an error.
	Converged bool `json:"converged"`

	// Delta is the final L1 score delta.
	Delta float64 `json:"delta"`
}

// Ranked is one entry of a descending score ranking.
type Ranked struct {
	// Index is the projection index.
	Index int `json:"index"`

	// Score is the PageRank score.
	Score float64 `json:"score"`
}

// Top returns the k highest-scoring indices, descending, ties broken by
// ascending index. k <= 0 returns all.
func (r *PageRankResult) Top(k int) []Ranked {
	ranked := make([]Ranked, len(r.Scores))
	for i, s := range r.Scores {
		ranked[i] = Ranked{Index: i, Score: s}
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		return ranked[a].Index < ranked[b].Index
	})
	if k > 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

// PageRank computes weighted PageRank scores over a projection.
//
// Description:
//
//	Power iteration with uniform initial scores 1/n. Each node pushes its
//	damped score along outgoing arcs in proportion to arc weight. Dangling
//	nodes (no outgoing arcs) redistribute their mass uniformly over all
//	nodes each iteration, so the total mass stays 1. The iteration stops
//	at the L1-delta tolerance or the iteration cap, whichever first.
//
// Inputs:
//
//   - ctx: cancellation checked at iteration boundaries. Must not be nil.
//   - p: the projection to score. Must not be nil.
//   - opts: configuration; nil selects defaults.
//
// Outputs:
//
//   - *PageRankResult: deterministic for a given projection index order.
//     Converged=false flags a capped, approximate result.
//   - error: ErrNilProjection or ctx.Err(); never non-convergence.
//
// Thread Safety: read-only over the projection; safe concurrently.
//
// Complexity: O(k × (V + E)) for k iterations.
func PageRank(ctx context.Context, p *Projection, opts *PageRankOptions) (*PageRankResult, error) {
	ctx, span := startAlgorithmSpan(ctx, "PageRank", p)
	defer span.End()
	start := time.Now()

	if p == nil {
		return nil, ErrNilProjection
	}
	n := p.NodeCount()
	if n == 0 {
		span.AddEvent("empty_projection")
		return &PageRankResult{Scores: []float64{}, Converged: true}, nil
	}

	if opts == nil {
		opts = DefaultPageRankOptions()
	} else {
		opts.Validate()
	}
	d := opts.DampingFactor
	fn := float64(n)

	// Out-strength per node; zero marks a dangling node.
	outWeight := make([]float64, n)
	for i := 0; i < n; i++ {
		for _, arc := range p.Arcs(i) {
			outWeight[i] += arc.Weight
		}
	}

	scores := make([]float64, n)
	next := make([]float64, n)
	for i := range scores {
		scores[i] = 1 / fn
	}

	var iterations int
	var converged bool
	var delta float64

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		danglingMass := 0.0
		for i := 0; i < n; i++ {
			if outWeight[i] == 0 {
				danglingMass += scores[i]
			}
		}

		base := (1-d)/fn + d*danglingMass/fn
		for i := range next {
			next[i] = base
		}
		for i := 0; i < n; i++ {
			if outWeight[i] == 0 {
				continue
			}
			share := d * scores[i] / outWeight[i]
			for _, arc := range p.Arcs(i) {
				next[arc.To] += share * arc.Weight
			}
		}

		delta = 0
		for i := 0; i < n; i++ {
			delta += math.Abs(next[i] - scores[i])
		}

		// Generation swap: no in-place mutation mid-sweep.
		scores, next = next, scores
		iterations = iter + 1

		if delta < opts.Tolerance {
			converged = true
			break
		}
	}

	recordAlgorithmMetrics(ctx, "pagerank", time.Since(start), converged)
	setConvergenceSpanResult(span, iterations, converged)
	slog.Debug("PageRank completed",
		slog.Int("iterations", iterations),
		slog.Bool("converged", converged),
		slog.Float64("delta", delta),
		slog.Int("node_count", n),
	)

	return &PageRankResult{
		Scores:     scores,
		Iterations: iterations,
		Converged:  converged,
		Delta:      delta,
	}, nil
}
