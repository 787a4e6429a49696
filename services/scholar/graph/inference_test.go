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
	"errors"
	"testing"
)

func TestInferSharedAuthors_Symmetric(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 0)
	p2 := paper(t, s, "p2", 0)
	wrote(t, s, "Ana", p1, p2)

	summary, err := s.Infer(context.Background(), RuleSharedAuthors)
	if err != nil {
		t.Fatalf("Infer error: %v", err)
	}
	if summary.EdgesCreated != 2 {
		t.Errorf("EdgesCreated = %d, want 2 (one per direction)", summary.EdgesCreated)
	}

	w12, ok12 := s.Weight(p1, p2, RelSharesAuthor)
	w21, ok21 := s.Weight(p2, p1, RelSharesAuthor)
	if !ok12 || !ok21 {
		t.Fatal("SHARES_AUTHOR missing in one direction")
	}
	if w12 != w21 || w12 != 1 {
		t.Errorf("weights = %v, %v, want 1 both directions", w12, w21)
	}
}

func TestInferSharedAuthors_TwoAuthorsAccumulate(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 0)
	p2 := paper(t, s, "p2", 0)
	// Ana and Juan both wrote both papers: each contributes +1.
	wrote(t, s, "Ana", p1, p2)
	wrote(t, s, "Juan", p1, p2)

	if _, err := s.Infer(context.Background(), RuleSharedAuthors); err != nil {
		t.Fatalf("Infer error: %v", err)
	}

	if w, _ := s.Weight(p1, p2, RelSharesAuthor); w != 2 {
		t.Errorf("weight = %v, want 2", w)
	}
	if w, _ := s.Weight(p2, p1, RelSharesAuthor); w != 2 {
		t.Errorf("reverse weight = %v, want 2", w)
	}
}

func TestInferSharedAuthors_RerunDoubles(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 0)
	p2 := paper(t, s, "p2", 0)
	wrote(t, s, "Ana", p1, p2)

	ctx := context.Background()
	if _, err := s.Infer(ctx, RuleSharedAuthors); err != nil {
		t.Fatalf("first Infer error: %v", err)
	}
	summary, err := s.Infer(ctx, RuleSharedAuthors)
	if err != nil {
		t.Fatalf("second Infer error: %v", err)
	}

	// Accumulation is the documented contract: one rule per build phase.
	if summary.EdgesCreated != 0 || summary.EdgesStrengthened != 2 {
		t.Errorf("second pass = %d created %d strengthened, want 0 and 2",
			summary.EdgesCreated, summary.EdgesStrengthened)
	}
	if w, _ := s.Weight(p1, p2, RelSharesAuthor); w != 2 {
		t.Errorf("weight after rerun = %v, want 2", w)
	}
}

func TestInferSharedKeywords(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 0)
	p2 := paper(t, s, "p2", 0)
	p3 := paper(t, s, "p3", 0)
	kw := mustUpsert(t, s, LabelKeyword, "graphs", nil)
	mustConnect(t, s, p1, kw, RelHasKeyword, 1)
	mustConnect(t, s, p2, kw, RelHasKeyword, 1)

	if _, err := s.Infer(context.Background(), RuleSharedKeywords); err != nil {
		t.Fatalf("Infer error: %v", err)
	}

	if w, ok := s.Weight(p1, p2, RelRelatedTo); !ok || w != 1 {
		t.Errorf("RELATED_TO(p1,p2) = (%v, %v), want (1, true)", w, ok)
	}
	if _, ok := s.Weight(p1, p3, RelRelatedTo); ok {
		t.Error("p3 shares no keyword but got a RELATED_TO edge")
	}
}

func TestInferCollaborations(t *testing.T) {
	s := NewStore()
	p := paper(t, s, "p1", 0)
	r1 := mustUpsert(t, s, LabelResearcher, "0000-0001", nil)
	r2 := mustUpsert(t, s, LabelResearcher, "0000-0002", nil)
	a := mustUpsert(t, s, LabelAuthor, "Plain Author", nil)
	mustConnect(t, s, r1, p, RelWrote, 1)
	mustConnect(t, s, r2, p, RelWrote, 1)
	mustConnect(t, s, a, p, RelWrote, 1)

	if _, err := s.Infer(context.Background(), RuleCollaborations); err != nil {
		t.Fatalf("Infer error: %v", err)
	}

	if w, ok := s.Weight(r1, r2, RelCollaborated); !ok || w != 1 {
		t.Errorf("COLLABORATED(r1,r2) = (%v, %v), want (1, true)", w, ok)
	}
	if w, ok := s.Weight(r2, r1, RelCollaborated); !ok || w != 1 {
		t.Errorf("COLLABORATED(r2,r1) = (%v, %v), want (1, true)", w, ok)
	}
	// Authors without ORCID never collaborate in this rule.
	if _, ok := s.Weight(a, r1, RelCollaborated); ok {
		t.Error("plain Author got a COLLABORATED edge")
	}
}

func TestInferCitationCandidates_TemporalOrdering(t *testing.T) {
	s := NewStore()
	newer := paper(t, s, "newer", 2022)
	older := paper(t, s, "older", 2018)
	same := paper(t, s, "same", 2022)
	unknown := paper(t, s, "unknown", 0)
	wrote(t, s, "Ana", newer, older, same, unknown)

	ctx := context.Background()
	if _, err := s.Infer(ctx, RuleSharedAuthors); err != nil {
		t.Fatalf("shared-author Infer error: %v", err)
	}
	if _, err := s.Infer(ctx, RuleCitationCandidates); err != nil {
		t.Fatalf("citation Infer error: %v", err)
	}

	if _, ok := s.Weight(newer, older, RelPotentiallyCites); !ok {
		t.Error("newer -> older candidate missing")
	}
	if _, ok := s.Weight(older, newer, RelPotentiallyCites); ok {
		t.Error("older paper cites newer one")
	}
	if _, ok := s.Weight(newer, same, RelPotentiallyCites); ok {
		t.Error("equal years produced a candidate; ordering must be strict")
	}
	if _, ok := s.Weight(newer, unknown, RelPotentiallyCites); ok {
		t.Error("unknown year on the target side produced a candidate")
	}
	if _, ok := s.Weight(unknown, older, RelPotentiallyCites); ok {
		t.Error("unknown year on the source side produced a candidate")
	}
}

func TestInferCitationCandidates_DepthBound(t *testing.T) {
	s := NewStore()
	// Chain p0 -> p1 -> p2 -> p3 over RELATED_TO, descending years. Depth 2
	// reaches p2 from p0 but never p3.
	papers := make([]Handle, 4)
	for i := range papers {
		papers[i] = paper(t, s, string(rune('a'+i)), 2022-i)
	}
	for i := 0; i < 3; i++ {
		mustConnect(t, s, papers[i], papers[i+1], RelRelatedTo, 1)
		mustConnect(t, s, papers[i+1], papers[i], RelRelatedTo, 1)
	}

	if _, err := s.Infer(context.Background(), RuleCitationCandidates); err != nil {
		t.Fatalf("Infer error: %v", err)
	}

	if _, ok := s.Weight(papers[0], papers[2], RelPotentiallyCites); !ok {
		t.Error("depth-2 candidate missing")
	}
	if _, ok := s.Weight(papers[0], papers[3], RelPotentiallyCites); ok {
		t.Error("candidate beyond the depth bound")
	}
}

func TestInfer_UnknownRule(t *testing.T) {
	s := NewStore()
	if _, err := s.Infer(context.Background(), Rule("nope")); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("err = %v, want ErrUnknownRule", err)
	}
	if _, err := ParseRule("shared_authors"); err != nil {
		t.Errorf("ParseRule error: %v", err)
	}
	if _, err := ParseRule("nope"); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("ParseRule err = %v, want ErrUnknownRule", err)
	}
}

func TestInfer_Cancelled(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 0)
	p2 := paper(t, s, "p2", 0)
	wrote(t, s, "Ana", p1, p2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Infer(ctx, RuleSharedAuthors); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestInferAll_RunsEveryRuleOnce(t *testing.T) {
	s := NewStore()
	p1 := paper(t, s, "p1", 2021)
	p2 := paper(t, s, "p2", 2019)
	wrote(t, s, "Ana", p1, p2)

	summaries, err := s.InferAll(context.Background())
	if err != nil {
		t.Fatalf("InferAll error: %v", err)
	}
	if len(summaries) != len(AllRules) {
		t.Fatalf("summaries = %d, want %d", len(summaries), len(AllRules))
	}
	for i, rule := range AllRules {
		if summaries[i].Rule != rule {
			t.Errorf("summary %d rule = %s, want %s", i, summaries[i].Rule, rule)
		}
	}
	// Citation candidates run last, over the freshly derived edges.
	if _, ok := s.Weight(p1, p2, RelPotentiallyCites); !ok {
		t.Error("citation candidate missing after InferAll")
	}
}
