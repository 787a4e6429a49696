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
	"sort"
	"time"
)

// =============================================================================
// Node similarity (Jaccard)
// =============================================================================

// SimilarityOptions configures NodeSimilarity.
type SimilarityOptions struct {
	// TopK truncates the ranked output. 0 or negative returns every pair.
	TopK int
}

// Validate checks options and applies defaults for invalid values.
func (o *SimilarityOptions) Validate() {
	if o.TopK < 0 {
		o.TopK = 0
	}
}

// DefaultSimilarityOptions returns sensible defaults (unrestricted).
func DefaultSimilarityOptions() *SimilarityOptions {
	return &SimilarityOptions{}
}

// SimilarityPair is one scored pair of projection indices, A < B.
type SimilarityPair struct {
	// A is the smaller projection index.
	A int `json:"a"`

	// B is the larger projection index.
	B int `json:"b"`

	// Score is the Jaccard similarity of the two neighbor sets, in (0, 1].
	Score float64 `json:"score"`
}

// SimilarityResult contains the ranked pair output.
type SimilarityResult struct {
	// Pairs is sorted descending by score, ties ascending by (A, B).
	// Only pairs with at least one shared neighbor appear.
	Pairs []SimilarityPair `json:"pairs"`

	// Comparisons counts the candidate pairs examined.
	Comparisons int `json:"comparisons"`
}

// NodeSimilarity ranks node pairs by Jaccard overlap of their outgoing
// neighbor sets.
//
// Description:
//
//	Candidate pairs are generated through shared neighbors (two nodes are
//	compared only when some third node is adjacent to both), so fully
//	disjoint pairs are never scored and score-zero pairs never appear.
//	Each unordered pair is emitted once with the smaller index first. A
//	node is never paired with itself.
//
// Inputs:
//
//   - ctx: cancellation checked per candidate batch. Must not be nil.
//   - p: the projection to score. Must not be nil. Undirected projections
//     compare full neighborhoods; directed ones compare out-neighbors.
//   - opts: configuration; nil selects defaults.
//
// Outputs:
//
//   - *SimilarityResult: deterministic for a given projection index order.
//   - error: ErrNilProjection or ctx.Err().
//
// Thread Safety: read-only over the projection; safe concurrently.
//
// Complexity: O(sum over nodes of inverse-degree^2) candidate pairs.
func NodeSimilarity(ctx context.Context, p *Projection, opts *SimilarityOptions) (*SimilarityResult, error) {
	ctx, span := startAlgorithmSpan(ctx, "NodeSimilarity", p)
	defer span.End()
	start := time.Now()

	if p == nil {
		return nil, ErrNilProjection
	}
	if opts == nil {
		opts = DefaultSimilarityOptions()
	} else {
		opts.Validate()
	}
	n := p.NodeCount()
	if n == 0 {
		span.AddEvent("empty_projection")
		return &SimilarityResult{Pairs: []SimilarityPair{}}, nil
	}

	// Neighbor sets and the inverted index: members[t] lists the nodes
	// adjacent to t, ascending since arcs are sorted.
	degree := make([]int, n)
	members := make([][]int, n)
	for i := 0; i < n; i++ {
		arcs := p.Arcs(i)
		degree[i] = len(arcs)
		for _, arc := range arcs {
			members[arc.To] = append(members[arc.To], i)
		}
	}

	// Shared-neighbor counts per unordered pair (a < b).
	intersections := make(map[int64]int)
	for t := 0; t < n; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m := members[t]
		for i, a := range m {
			for _, b := range m[i+1:] {
				intersections[int64(a)*int64(n)+int64(b)]++
			}
		}
	}

	pairs := make([]SimilarityPair, 0, len(intersections))
	for key, inter := range intersections {
		a := int(key / int64(n))
		b := int(key % int64(n))
		union := degree[a] + degree[b] - inter
		pairs = append(pairs, SimilarityPair{
			A:     a,
			B:     b,
			Score: float64(inter) / float64(union),
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})

	comparisons := len(pairs)
	if opts.TopK > 0 && opts.TopK < len(pairs) {
		pairs = pairs[:opts.TopK]
	}

	recordAlgorithmMetrics(ctx, "similarity", time.Since(start), true)
	slog.Debug("node similarity completed",
		slog.Int("pairs", len(pairs)),
		slog.Int("comparisons", comparisons),
		slog.Int("node_count", n),
	)

	return &SimilarityResult{Pairs: pairs, Comparisons: comparisons}, nil
}
