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
	"errors"
	"testing"
)

// =============================================================================
// Test helpers
// =============================================================================

// mustUpsert upserts or fails the test.
func mustUpsert(t *testing.T, s *Store, label Label, key string, attrs map[string]any) Handle {
	t.Helper()
	h, err := s.Upsert(label, key, attrs)
	if err != nil {
		t.Fatalf("Upsert(%v, %q) error: %v", label, key, err)
	}
	return h
}

// mustConnect connects or fails the test.
func mustConnect(t *testing.T, s *Store, source, target Handle, relType RelType, delta float64) {
	t.Helper()
	if err := s.Connect(source, target, relType, delta); err != nil {
		t.Fatalf("Connect(%v, %v, %v) error: %v", source, target, relType, err)
	}
}

// paper upserts a Paper with a publication year. Year 0 means unknown.
func paper(t *testing.T, s *Store, key string, year int) Handle {
	t.Helper()
	attrs := map[string]any{AttrTitle: key}
	if year != 0 {
		attrs[AttrPublished] = year
	}
	return mustUpsert(t, s, LabelPaper, key, attrs)
}

// wrote links an Author (created on demand) to papers.
func wrote(t *testing.T, s *Store, author string, papers ...Handle) {
	t.Helper()
	a := mustUpsert(t, s, LabelAuthor, author, nil)
	for i, p := range papers {
		if err := s.ConnectOrdered(a, p, RelWrote, 1, i+1); err != nil {
			t.Fatalf("ConnectOrdered(%q) error: %v", author, err)
		}
	}
}

// =============================================================================
// Entity store
// =============================================================================

func TestUpsert_SameKeyReturnsSameHandle(t *testing.T) {
	s := NewStore()

	h1 := mustUpsert(t, s, LabelPaper, "10.1000/a", map[string]any{AttrTitle: "first payload"})
	h2 := mustUpsert(t, s, LabelPaper, "10.1000/a", map[string]any{AttrTitle: "second payload", "extra": 1})

	if h1 != h2 {
		t.Errorf("handles differ: %v vs %v", h1, h2)
	}
	if got := s.NodeCount(); got != 1 {
		t.Errorf("NodeCount = %d, want 1", got)
	}

	// Existing attributes stay untouched on re-upsert.
	attrs, err := s.AttributesOf(h1)
	if err != nil {
		t.Fatalf("AttributesOf error: %v", err)
	}
	if attrs[AttrTitle] != "first payload" {
		t.Errorf("title = %v, want original payload", attrs[AttrTitle])
	}
	if _, ok := attrs["extra"]; ok {
		t.Error("second payload leaked into stored attributes")
	}
}

func TestUpsert_CrossLabelKeyConflict(t *testing.T) {
	s := NewStore()
	mustUpsert(t, s, LabelAuthor, "Ada Lovelace", nil)

	_, err := s.Upsert(LabelPaper, "Ada Lovelace", nil)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestUpsert_Invalid(t *testing.T) {
	s := NewStore()

	if _, err := s.Upsert(Label(99), "k", nil); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("bad label err = %v, want ErrInvalidLabel", err)
	}
	if _, err := s.Upsert(LabelPaper, "", nil); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("empty key err = %v, want ErrEmptyKey", err)
	}
}

func TestUpsert_MaxNodes(t *testing.T) {
	s := NewStore(WithMaxNodes(2))
	mustUpsert(t, s, LabelPaper, "p1", nil)
	mustUpsert(t, s, LabelPaper, "p2", nil)

	if _, err := s.Upsert(LabelPaper, "p3", nil); !errors.Is(err, ErrMaxNodesExceeded) {
		t.Errorf("err = %v, want ErrMaxNodesExceeded", err)
	}
	// Re-upserting an existing key still succeeds at the limit.
	mustUpsert(t, s, LabelPaper, "p1", nil)
}

func TestMergeAttributes(t *testing.T) {
	s := NewStore()
	h := paper(t, s, "p1", 2020)

	if err := s.MergeAttributes(h, map[string]any{AttrTitle: "renamed", "venue": "x"}); err != nil {
		t.Fatalf("MergeAttributes error: %v", err)
	}
	attrs, _ := s.AttributesOf(h)
	if attrs[AttrTitle] != "renamed" {
		t.Errorf("title = %v, want renamed", attrs[AttrTitle])
	}
	if attrs["venue"] != "x" {
		t.Errorf("venue = %v, want x", attrs["venue"])
	}
	if y, ok := attrs[AttrPublished]; !ok || y != 2020 {
		t.Errorf("published = %v, want kept 2020", y)
	}
}

func TestResolve(t *testing.T) {
	s := NewStore()
	h := paper(t, s, "10.1/x", 2020)

	got, ok := s.Resolve("10.1/x")
	if !ok || got != h {
		t.Errorf("Resolve = (%v, %v), want (%v, true)", got, ok, h)
	}
	if _, ok := s.Resolve("missing"); ok {
		t.Error("Resolve found a key never upserted")
	}
}

// =============================================================================
// Relationship store
// =============================================================================

func TestConnect_NonAccumulatingIsIdempotent(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 2020)
	p2 := paper(t, s, "p2", 2019)

	for i := 0; i < 3; i++ {
		mustConnect(t, s, p1, p2, RelPotentiallyCites, 1)
	}

	if got := s.EdgeCount(); got != 1 {
		t.Errorf("EdgeCount = %d, want 1", got)
	}
	if w, ok := s.Weight(p1, p2, RelPotentiallyCites); !ok || w != 1 {
		t.Errorf("weight = (%v, %v), want (1, true)", w, ok)
	}
}

func TestConnect_AccumulatingAddsWeight(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 0)
	p2 := paper(t, s, "p2", 0)

	for i := 0; i < 3; i++ {
		mustConnect(t, s, p1, p2, RelSharesAuthor, 1)
	}

	if got := s.EdgeCount(); got != 1 {
		t.Errorf("EdgeCount = %d, want one edge, never three", got)
	}
	if w, _ := s.Weight(p1, p2, RelSharesAuthor); w != 3 {
		t.Errorf("weight = %v, want 3", w)
	}
}

func TestConnect_SelfLoopSilentlyRejected(t *testing.T) {
	s := NewStore()
	p := paper(t, s, "p1", 0)

	if err := s.Connect(p, p, RelSharesAuthor, 1); err != nil {
		t.Fatalf("self-loop returned error: %v", err)
	}
	if got := s.EdgeCount(); got != 0 {
		t.Errorf("EdgeCount = %d, want 0", got)
	}
}

func TestConnectKeys(t *testing.T) {
	s := NewStore()
	paper(t, s, "p1", 0)
	paper(t, s, "p2", 0)

	if err := s.ConnectKeys("p1", "p2", RelRelatedTo, 2); err != nil {
		t.Fatalf("ConnectKeys error: %v", err)
	}
	if err := s.ConnectKeys("p1", "ghost", RelRelatedTo, 1); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("err = %v, want ErrUnknownEntity", err)
	}

	p1, _ := s.Resolve("p1")
	p2, _ := s.Resolve("p2")
	if w, _ := s.Weight(p1, p2, RelRelatedTo); w != 2 {
		t.Errorf("weight = %v, want 2", w)
	}
}

func TestConnect_MaxEdges(t *testing.T) {
	s := NewStore(WithMaxEdges(1))
	p1 := paper(t, s, "p1", 0)
	p2 := paper(t, s, "p2", 0)
	p3 := paper(t, s, "p3", 0)

	mustConnect(t, s, p1, p2, RelSharesAuthor, 1)
	if err := s.Connect(p1, p3, RelSharesAuthor, 1); !errors.Is(err, ErrMaxEdgesExceeded) {
		t.Errorf("err = %v, want ErrMaxEdgesExceeded", err)
	}
	// Accumulating on the existing edge is not a new edge.
	mustConnect(t, s, p1, p2, RelSharesAuthor, 1)
	if w, _ := s.Weight(p1, p2, RelSharesAuthor); w != 2 {
		t.Errorf("weight = %v, want 2", w)
	}
}

func TestEdgesOf_OrderAndDirection(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 0)
	p2 := paper(t, s, "p2", 0)
	p3 := paper(t, s, "p3", 0)

	mustConnect(t, s, p1, p3, RelRelatedTo, 1)
	mustConnect(t, s, p1, p2, RelRelatedTo, 1)
	mustConnect(t, s, p3, p1, RelRelatedTo, 1)

	out, err := s.EdgesOf(p1, RelRelatedTo, Outgoing)
	if err != nil {
		t.Fatalf("EdgesOf error: %v", err)
	}
	if len(out) != 2 || out[0].Handle != p2 || out[1].Handle != p3 {
		t.Errorf("outgoing = %+v, want [p2 p3] in handle order", out)
	}

	in, _ := s.EdgesOf(p1, RelRelatedTo, Incoming)
	if len(in) != 1 || in[0].Handle != p3 {
		t.Errorf("incoming = %+v, want [p3]", in)
	}

	both, _ := s.EdgesOf(p1, RelRelatedTo, Both)
	if len(both) != 3 {
		t.Errorf("both = %+v, want 3 entries", both)
	}
}

func TestEdgesOf_WroteCarriesOrder(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 0)
	p2 := paper(t, s, "p2", 0)
	wrote(t, s, "Ana", p1, p2)

	a, _ := s.Get(LabelAuthor, "Ana")
	out, err := s.EdgesOf(a, RelWrote, Outgoing)
	if err != nil {
		t.Fatalf("EdgesOf error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Order != 1 || out[1].Order != 2 {
		t.Errorf("orders = %d, %d, want 1, 2", out[0].Order, out[1].Order)
	}
}

func TestStats(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 0)
	p2 := paper(t, s, "p2", 0)
	wrote(t, s, "Ana", p1, p2)
	mustConnect(t, s, p1, p2, RelSharesAuthor, 1)

	stats := s.Stats()
	if stats.Nodes != 3 || stats.Edges != 3 {
		t.Errorf("stats = %d nodes %d edges, want 3 and 3", stats.Nodes, stats.Edges)
	}
	if stats.NodesByLabel["Paper"] != 2 || stats.NodesByLabel["Author"] != 1 {
		t.Errorf("NodesByLabel = %v", stats.NodesByLabel)
	}
	if stats.EdgesByType["WROTE"] != 2 || stats.EdgesByType["SHARES_AUTHOR"] != 1 {
		t.Errorf("EdgesByType = %v", stats.EdgesByType)
	}
}

func TestParseLabelAndRelType(t *testing.T) {
	for l := Label(0); l < NumLabels; l++ {
		got, err := ParseLabel(l.String())
		if err != nil || got != l {
			t.Errorf("ParseLabel(%q) = (%v, %v)", l.String(), got, err)
		}
	}
	if _, err := ParseLabel("Nope"); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("err = %v, want ErrInvalidLabel", err)
	}

	for rt := RelType(0); rt < NumRelTypes; rt++ {
		got, err := ParseRelType(rt.String())
		if err != nil || got != rt {
			t.Errorf("ParseRelType(%q) = (%v, %v)", rt.String(), got, err)
		}
	}
	if _, err := ParseRelType("NOPE"); !errors.Is(err, ErrInvalidRelType) {
		t.Errorf("err = %v, want ErrInvalidRelType", err)
	}
}
