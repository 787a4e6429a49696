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
// Louvain community detection
// =============================================================================

// Louvain configuration constants.
const (
	// DefaultLouvainMaxLevels caps the number of aggregation levels.
	DefaultLouvainMaxLevels = 10

	// DefaultLouvainMaxSweeps caps the local-move sweeps per level.
	DefaultLouvainMaxSweeps = 100
)

// LouvainOptions configures the Louvain algorithm.
type LouvainOptions struct {
	// MaxLevels caps aggregation levels. Must be > 0. Default: 10
	MaxLevels int

	// MaxSweeps caps local-move sweeps within one level. Must be > 0.
	// Default: 100
	MaxSweeps int
}

// Validate checks options and applies defaults for invalid values.
func (o *LouvainOptions) Validate() {
	if o.MaxLevels <= 0 {
		o.MaxLevels = DefaultLouvainMaxLevels
	}
	if o.MaxSweeps <= 0 {
		o.MaxSweeps = DefaultLouvainMaxSweeps
	}
}

// DefaultLouvainOptions returns sensible defaults.
func DefaultLouvainOptions() *LouvainOptions {
	return &LouvainOptions{
		MaxLevels: DefaultLouvainMaxLevels,
		MaxSweeps: DefaultLouvainMaxSweeps,
	}
}

// LouvainResult contains the community assignment for one projection.
type LouvainResult struct {
	// Communities holds one community id per projection index. Ids are
	// dense from 0 in order of first appearance over the index order.
	Communities []int `json:"communities"`

	// CommunityCount is the number of distinct communities.
	CommunityCount int `json:"community_count"`

	// Modularity is the final modularity Q of the partition.
	Modularity float64 `json:"modularity"`

	// Levels is the number of aggregation levels performed.
	Levels int `json:"levels"`

	// Iterations is the total local-move sweeps across all levels.
	Iterations int `json:"iterations"`

	// Converged reports whether every level stabilized before its caps. A
	// capped run is approximate, not an error.
	Converged bool `json:"converged"`
}

// Members groups projection indices by community id, ascending within
// each group.
func (r *LouvainResult) Members() map[int][]int {
	members := make(map[int][]int, r.CommunityCount)
	for i, c := range r.Communities {
		members[c] = append(members[c], i)
	}
	return members
}

// louvainGraph is the working representation of one aggregation level:
// symmetric adjacency where each undirected edge appears as one arc per
// endpoint, and a self arc carries twice the internal weight so that node
// strengths stay consistent across aggregation.
type louvainGraph struct {
	arcs     [][]Arc
	strength []float64
	m2       float64 // total strength = 2m
}

// Louvain runs multi-level modularity optimization over a projection.
//
// Description:
//
//	Phase 1 greedily moves each node to the neighboring community with the
//	largest strictly positive modularity gain, ties broken by the lowest
//	community id, sweeping until a full sweep makes no move. Phase 2
//	aggregates each community into a super-node with summed edge weights;
//	intra-community weight becomes a self-loop that keeps counting in
//	later levels' gain arithmetic but never reaches the node-level result.
//	The level loop stops when phase 1 merges nothing.
//
//	Directed projections are symmetrized internally; classic Louvain is an
//	undirected algorithm.
//
// Inputs:
//
//   - ctx: cancellation checked at sweep boundaries. Must not be nil.
//   - p: the projection to partition. Must not be nil.
//   - opts: configuration; nil selects defaults.
//
// Outputs:
//
//   - *LouvainResult: deterministic for a given projection index order.
//     Converged=false flags a capped, approximate partition.
//   - error: ErrNilProjection or ctx.Err().
//
// Thread Safety: read-only over the projection; safe concurrently.
//
// Complexity: O(levels × sweeps × (V + E)).
func Louvain(ctx context.Context, p *Projection, opts *LouvainOptions) (*LouvainResult, error) {
	ctx, span := startAlgorithmSpan(ctx, "Louvain", p)
	defer span.End()
	start := time.Now()

	if p == nil {
		return nil, ErrNilProjection
	}
	n := p.NodeCount()
	if n == 0 {
		span.AddEvent("empty_projection")
		return &LouvainResult{Communities: []int{}, Converged: true}, nil
	}

	if opts == nil {
		opts = DefaultLouvainOptions()
	} else {
		opts.Validate()
	}

	base := symmetrize(p)

	// membership maps each original index to its node in the current
	// level's graph.
	membership := make([]int, n)
	for i := range membership {
		membership[i] = i
	}

	g := base
	levels := 0
	totalSweeps := 0
	converged := true

	for levels < opts.MaxLevels {
		comm, sweeps, stabilized, err := localMoves(ctx, g, opts.MaxSweeps)
		if err != nil {
			return nil, err
		}
		totalSweeps += sweeps
		if !stabilized {
			converged = false
		}

		dense, count := renumber(comm)
		if count == len(g.arcs) {
			// No merges this level: done.
			break
		}
		for i := range membership {
			membership[i] = dense[membership[i]]
		}
		g = aggregate(g, dense, count)
		levels++
	}
	if levels == opts.MaxLevels {
		converged = false
	}

	communities, count := renumber(membership)
	modularity := partitionModularity(base, communities)

	recordAlgorithmMetrics(ctx, "louvain", time.Since(start), converged)
	setConvergenceSpanResult(span, totalSweeps, converged)
	slog.Debug("Louvain completed",
		slog.Int("communities", count),
		slog.Float64("modularity", modularity),
		slog.Int("levels", levels),
		slog.Int("sweeps", totalSweeps),
		slog.Bool("converged", converged),
		slog.Int("node_count", n),
	)

	return &LouvainResult{
		Communities:    communities,
		CommunityCount: count,
		Modularity:     modularity,
		Levels:         levels,
		Iterations:     totalSweeps,
		Converged:      converged,
	}, nil
}

// symmetrize builds the level-0 working graph. Undirected projections are
// already mirrored; directed ones fold reciprocal arcs into one undirected
// weight.
func symmetrize(p *Projection) *louvainGraph {
	n := p.NodeCount()
	g := &louvainGraph{
		arcs:     make([][]Arc, n),
		strength: make([]float64, n),
	}

	if p.Orientation() == Undirected {
		for i := 0; i < n; i++ {
			g.arcs[i] = p.Arcs(i)
		}
	} else {
		type pair struct{ a, b int }
		weights := make(map[pair]float64)
		for i := 0; i < n; i++ {
			for _, arc := range p.Arcs(i) {
				k := pair{i, arc.To}
				if k.a > k.b {
					k.a, k.b = k.b, k.a
				}
				weights[k] += arc.Weight
			}
		}
		for k, w := range weights {
			g.arcs[k.a] = append(g.arcs[k.a], Arc{To: k.b, Weight: w})
			g.arcs[k.b] = append(g.arcs[k.b], Arc{To: k.a, Weight: w})
		}
		for i := range g.arcs {
			arcs := g.arcs[i]
			sort.Slice(arcs, func(a, b int) bool { return arcs[a].To < arcs[b].To })
		}
	}

	for i := range g.arcs {
		for _, arc := range g.arcs[i] {
			g.strength[i] += arc.Weight
		}
		g.m2 += g.strength[i]
	}
	return g
}

// localMoves is phase 1: greedy modularity moves until a sweep makes no
// move or the sweep cap is hit. It returns the community of each node,
// the sweep count, and whether the level stabilized.
func localMoves(ctx context.Context, g *louvainGraph, maxSweeps int) ([]int, int, bool, error) {
	n := len(g.arcs)
	comm := make([]int, n)
	commTot := make([]float64, n)
	for i := 0; i < n; i++ {
		comm[i] = i
		commTot[i] = g.strength[i]
	}
	if g.m2 == 0 {
		return comm, 0, true, nil
	}

	sweeps := 0
	for sweeps < maxSweeps {
		if err := ctx.Err(); err != nil {
			return nil, sweeps, false, err
		}
		sweeps++
		moves := 0

		for i := 0; i < n; i++ {
			c := comm[i]

			// Weight from i to each neighboring community. The self arc
			// moves with i and cancels out of every gain comparison.
			links := make(map[int]float64)
			for _, arc := range g.arcs[i] {
				if arc.To != i {
					links[comm[arc.To]] += arc.Weight
				}
			}

			commTot[c] -= g.strength[i]

			// Gain of a candidate relative to staying, times m. Constant
			// terms cancel, so only the relative value matters.
			stay := links[c] - commTot[c]*g.strength[i]/g.m2

			candidates := make([]int, 0, len(links))
			for cand := range links {
				if cand != c {
					candidates = append(candidates, cand)
				}
			}
			sort.Ints(candidates)

			best := c
			bestGain := stay
			for _, cand := range candidates {
				gain := links[cand] - commTot[cand]*g.strength[i]/g.m2
				// Strict improvement only; ascending candidate order
				// keeps the lowest community id on equal gains.
				if gain > bestGain {
					best = cand
					bestGain = gain
				}
			}

			commTot[best] += g.strength[i]
			if best != c {
				comm[i] = best
				moves++
			}
		}

		if moves == 0 {
			return comm, sweeps, true, nil
		}
	}
	return comm, sweeps, false, nil
}

// renumber makes community ids dense from 0 in order of first appearance.
func renumber(comm []int) ([]int, int) {
	dense := make([]int, len(comm))
	seen := make(map[int]int)
	next := 0
	for i, c := range comm {
		id, ok := seen[c]
		if !ok {
			id = next
			seen[c] = id
			next++
		}
		dense[i] = id
	}
	return dense, next
}

// aggregate is phase 2: each community becomes one super-node. Edge
// weights between communities sum; intra-community weight (both arc
// directions, plus carried self arcs) becomes the super-node's self arc.
func aggregate(g *louvainGraph, comm []int, count int) *louvainGraph {
	next := &louvainGraph{
		arcs:     make([][]Arc, count),
		strength: make([]float64, count),
		m2:       g.m2,
	}

	type pair struct{ a, b int }
	weights := make(map[pair]float64)
	selfLoop := make([]float64, count)

	for i := range g.arcs {
		ci := comm[i]
		for _, arc := range g.arcs[i] {
			cj := comm[arc.To]
			if arc.To == i || ci == cj {
				selfLoop[ci] += arc.Weight
				continue
			}
			weights[pair{ci, cj}] += arc.Weight
		}
	}

	for k, w := range weights {
		next.arcs[k.a] = append(next.arcs[k.a], Arc{To: k.b, Weight: w})
	}
	for c, w := range selfLoop {
		if w > 0 {
			next.arcs[c] = append(next.arcs[c], Arc{To: c, Weight: w})
		}
	}
	for i := range next.arcs {
		arcs := next.arcs[i]
		sort.Slice(arcs, func(a, b int) bool { return arcs[a].To < arcs[b].To })
		for _, arc := range arcs {
			next.strength[i] += arc.Weight
		}
	}
	return next
}

// partitionModularity computes Q of a partition over the level-0 graph.
func partitionModularity(g *louvainGraph, comm []int) float64 {
	if g.m2 == 0 {
		return 0
	}
	count := 0
	for _, c := range comm {
		if c+1 > count {
			count = c + 1
		}
	}
	internal := make([]float64, count)
	tot := make([]float64, count)

	for i := range g.arcs {
		ci := comm[i]
		tot[ci] += g.strength[i]
		for _, arc := range g.arcs[i] {
			if comm[arc.To] == ci {
				internal[ci] += arc.Weight
			}
		}
	}

	q := 0.0
	for c := 0; c < count; c++ {
		q += internal[c]/g.m2 - (tot[c]/g.m2)*(tot[c]/g.m2)
	}
	return q
}
