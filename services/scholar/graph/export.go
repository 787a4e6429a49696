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
	"fmt"
	"sort"
)

// NodeExport is the portable form of one node.
//
// Nodes are exported in handle order, which is first-seen order. A
// restore that upserts in slice order therefore reproduces the same
// handle assignment and the same projection index layout.
type NodeExport struct {
	Label Label          `json:"label"`
	Key   string         `json:"key"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// EdgeExport is the portable form of one directed edge. Natural keys
// are unique across labels, so key pairs identify endpoints.
type EdgeExport struct {
	SourceKey string  `json:"source_key"`
	TargetKey string  `json:"target_key"`
	Type      RelType `json:"type"`
	Weight    float64 `json:"weight"`
	Order     int     `json:"order,omitempty"`
}

// Export dumps the store's nodes and edges in deterministic order.
//
// Nodes come out in handle order; edges sorted by (source, type,
// target). The attribute maps are copies, safe for the caller to hold.
func (s *Store) Export() ([]NodeExport, []EdgeExport) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]NodeExport, len(s.nodes))
	for h, rec := range s.nodes {
		nodes[h] = NodeExport{
			Label: rec.label,
			Key:   rec.key,
			Attrs: cloneAttrs(rec.attrs),
		}
	}

	edges := make([]EdgeExport, 0, s.edgeCount)
	for source := range s.nodes {
		byType := s.out[source]
		if byType == nil {
			continue
		}
		types := make([]RelType, 0, len(byType))
		for t := range byType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

		for _, t := range types {
			targets := make([]Handle, 0, len(byType[t]))
			for target := range byType[t] {
				targets = append(targets, target)
			}
			sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

			for _, target := range targets {
				rec := byType[t][target]
				edges = append(edges, EdgeExport{
					SourceKey: s.nodes[source].key,
					TargetKey: s.nodes[target].key,
					Type:      t,
					Weight:    rec.weight,
					Order:     rec.order,
				})
			}
		}
	}
	return nodes, edges
}

// Restore rebuilds store content from an Export dump.
//
// Edge weights are installed exactly as recorded; accumulation
// semantics do not apply during a restore. Restore expects an empty
// store and fails without partial cleanup otherwise, so callers load
// snapshots into a fresh Store.
func (s *Store) Restore(nodes []NodeExport, edges []EdgeExport) error {
	if s.NodeCount() != 0 {
		return fmt.Errorf("restore into non-empty store (%d nodes)", s.NodeCount())
	}

	for i, n := range nodes {
		if _, err := s.Upsert(n.Label, n.Key, n.Attrs); err != nil {
			return fmt.Errorf("restore node %d (%s): %w", i, n.Key, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range edges {
		source, ok := s.byKey[e.SourceKey]
		if !ok {
			return fmt.Errorf("restore edge %d: %w: %s", i, ErrUnknownEntity, e.SourceKey)
		}
		target, ok := s.byKey[e.TargetKey]
		if !ok {
			return fmt.Errorf("restore edge %d: %w: %s", i, ErrUnknownEntity, e.TargetKey)
		}
		if e.Type < 0 || e.Type >= NumRelTypes {
			return fmt.Errorf("restore edge %d: %w", i, ErrInvalidRelType)
		}
		if source == target {
			continue
		}
		if s.edge(source, target, e.Type) != nil {
			return fmt.Errorf("restore edge %d: duplicate %s -> %s", i, e.SourceKey, e.TargetKey)
		}
		if s.edgeCount >= s.maxEdges {
			return ErrMaxEdgesExceeded
		}

		rec := &edgeRec{weight: e.Weight, order: e.Order}
		if s.out[source] == nil {
			s.out[source] = make(map[RelType]map[Handle]*edgeRec)
		}
		if s.out[source][e.Type] == nil {
			s.out[source][e.Type] = make(map[Handle]*edgeRec)
		}
		s.out[source][e.Type][target] = rec

		if s.in[target] == nil {
			s.in[target] = make(map[RelType]map[Handle]*edgeRec)
		}
		if s.in[target][e.Type] == nil {
			s.in[target][e.Type] = make(map[Handle]*edgeRec)
		}
		s.in[target][e.Type][source] = rec

		s.edgeCount++
		s.edgesByType[e.Type]++
	}
	return nil
}
