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
	"sort"
)

// =============================================================================
// Projection
// =============================================================================

// Orientation selects how projected edges are laid out.
type Orientation int

const (
	// Directed keeps every stored edge as a single arc.
	Directed Orientation = iota

	// Undirected mirrors every edge so both endpoints see it. Reciprocal
	// stored edges collapse into one logical relation whose weight is the
	// sum of both directions.
	Undirected
)

// String returns the canonical name of the orientation.
func (o Orientation) String() string {
	switch o {
	case Directed:
		return "directed"
	case Undirected:
		return "undirected"
	default:
		return "unknown"
	}
}

// WeightKeyAccumulated selects the stored edge weights during projection.
// The empty weight key counts every edge as 1.
const WeightKeyAccumulated = "weight"

// Arc is one adjacency entry of a Projection.
type Arc struct {
	// To is the dense index of the neighbor.
	To int

	// Weight is the folded edge weight.
	Weight float64
}

// ProjectOptions configures Project.
type ProjectOptions struct {
	// Label selects the nodes to project.
	Label Label

	// Types are the relationship types folded into the adjacency. Edges of
	// different types between the same pair sum their weights.
	Types []RelType

	// Orientation is Directed or Undirected.
	Orientation Orientation

	// WeightKey is WeightKeyAccumulated for stored weights or "" for unit
	// weights. Anything else is refused with ErrUnknownWeightKey.
	WeightKey string
}

// Projection is a homogeneous weighted snapshot of one label's subgraph,
// laid out as dense zero-based indices for the analytics algorithms.
//
// Description:
//
//	Index assignment order is the store's first-seen order for the label,
//	so repeated projections of an unchanged store are identical. Arcs are
//	sorted by neighbor index.
//
// Thread Safety: immutable after construction; safe to share across any
// number of concurrent algorithm runs.
type Projection struct {
	handles     []Handle
	adjacency   [][]Arc
	orientation Orientation
	indexOf     map[Handle]int
	totalWeight float64
	arcCount    int
}

// NodeCount returns the number of projected nodes.
func (p *Projection) NodeCount() int {
	return len(p.handles)
}

// ArcCount returns the number of adjacency entries. Undirected projections
// count each logical edge twice (once per direction).
func (p *Projection) ArcCount() int {
	return p.arcCount
}

// TotalWeight returns the sum of all arc weights.
func (p *Projection) TotalWeight() float64 {
	return p.totalWeight
}

// Orientation returns the projection's orientation.
func (p *Projection) Orientation() Orientation {
	return p.orientation
}

// HandleAt maps a dense index back to its store handle.
func (p *Projection) HandleAt(i int) (Handle, bool) {
	if i < 0 || i >= len(p.handles) {
		return InvalidHandle, false
	}
	return p.handles[i], true
}

// IndexOf maps a store handle to its dense index.
func (p *Projection) IndexOf(h Handle) (int, bool) {
	i, ok := p.indexOf[h]
	return i, ok
}

// Arcs returns the adjacency of one index. The slice is shared; callers
// must not modify it.
func (p *Projection) Arcs(i int) []Arc {
	if i < 0 || i >= len(p.adjacency) {
		return nil
	}
	return p.adjacency[i]
}

// Project materializes a Projection from the store.
//
// Description:
//
//	Scans nodes of opts.Label in first-seen order, assigns dense indices,
//	and folds all edges of the requested types whose endpoints both carry
//	the label. Coincident pairs across types sum their weights. Unknown
//	labels or types with no matching edges produce an empty projection,
//	not an error: an empty analytic result is meaningful.
//
// Errors:
//
//	ErrInvalidLabel - label outside the enum range.
//	ErrInvalidRelType - a requested type outside the enum range.
//	ErrUnknownWeightKey - weight key neither "" nor WeightKeyAccumulated.
//
// Thread Safety: holds the store read lock for the duration of the scan.
//
// Complexity: O(V + E log E) over the selected subgraph.
func (s *Store) Project(opts ProjectOptions) (*Projection, error) {
	if opts.Label < 0 || opts.Label >= NumLabels {
		return nil, ErrInvalidLabel
	}
	for _, t := range opts.Types {
		if t < 0 || t >= NumRelTypes {
			return nil, ErrInvalidRelType
		}
	}
	if opts.WeightKey != "" && opts.WeightKey != WeightKeyAccumulated {
		return nil, ErrUnknownWeightKey
	}
	unitWeights := opts.WeightKey == ""

	s.mu.RLock()
	defer s.mu.RUnlock()

	selected := s.byLabel[opts.Label]
	p := &Projection{
		handles:     make([]Handle, len(selected)),
		adjacency:   make([][]Arc, len(selected)),
		orientation: opts.Orientation,
		indexOf:     make(map[Handle]int, len(selected)),
	}
	copy(p.handles, selected)
	for i, h := range p.handles {
		p.indexOf[h] = i
	}

	// Fold matching edges into per-pair weights. For undirected output the
	// pair key is normalized so reciprocal edges land on one entry.
	type pair struct{ from, to int }
	weights := make(map[pair]float64)
	for from, h := range p.handles {
		adj := s.out[h]
		if adj == nil {
			continue
		}
		for _, t := range opts.Types {
			for target, rec := range adj[t] {
				to, ok := p.indexOf[target]
				if !ok {
					continue
				}
				w := rec.weight
				if unitWeights {
					w = 1
				}
				k := pair{from, to}
				if opts.Orientation == Undirected && k.from > k.to {
					k.from, k.to = k.to, k.from
				}
				weights[k] += w
			}
		}
	}

	for k, w := range weights {
		p.adjacency[k.from] = append(p.adjacency[k.from], Arc{To: k.to, Weight: w})
		if opts.Orientation == Undirected {
			p.adjacency[k.to] = append(p.adjacency[k.to], Arc{To: k.from, Weight: w})
		}
	}
	for i := range p.adjacency {
		arcs := p.adjacency[i]
		sort.Slice(arcs, func(a, b int) bool { return arcs[a].To < arcs[b].To })
		p.arcCount += len(arcs)
		for _, a := range arcs {
			p.totalWeight += a.Weight
		}
	}
	return p, nil
}
