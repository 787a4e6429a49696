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

// citationFan builds papers a, b, e, c, d, f where a and b both cite
// c and d, and e cites only f. Indices follow creation order:
// a=0, b=1, e=2, c=3, d=4, f=5.
func citationFan(t *testing.T) *Projection {
	t.Helper()
	s := NewStore()
	a := paper(t, s, "a", 0)
	b := paper(t, s, "b", 0)
	e := paper(t, s, "e", 0)
	c := paper(t, s, "c", 0)
	d := paper(t, s, "d", 0)
	f := paper(t, s, "f", 0)
	for _, edge := range [][2]Handle{{a, c}, {a, d}, {b, c}, {b, d}, {e, f}} {
		mustConnect(t, s, edge[0], edge[1], RelPotentiallyCites, 1)
	}

	p, err := s.Project(ProjectOptions{
		Label:       LabelPaper,
		Types:       []RelType{RelPotentiallyCites},
		Orientation: Directed,
		WeightKey:   "",
	})
	if err != nil {
		t.Fatalf("Project error: %v", err)
	}
	return p
}

func TestNodeSimilarity_SharedNeighborsOnly(t *testing.T) {
	p := citationFan(t)

	result, err := NodeSimilarity(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("NodeSimilarity error: %v", err)
	}

	if len(result.Pairs) != 1 {
		t.Fatalf("pairs = %+v, want exactly (a, b)", result.Pairs)
	}
	pair := result.Pairs[0]
	if pair.A != 0 || pair.B != 1 {
		t.Errorf("pair = (%d, %d), want (0, 1)", pair.A, pair.B)
	}
	if pair.Score != 1.0 {
		t.Errorf("score = %v, want identical neighbor sets to score 1", pair.Score)
	}

	// The zero-overlap pair (a, e) is excluded, not reported as 0.
	for _, got := range result.Pairs {
		if (got.A == 0 && got.B == 2) || (got.A == 2 && got.B == 0) {
			t.Errorf("disjoint pair reported: %+v", got)
		}
	}
}

func TestNodeSimilarity_Invariants(t *testing.T) {
	p := triangleWithIsolate(t)

	result, err := NodeSimilarity(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("NodeSimilarity error: %v", err)
	}
	if len(result.Pairs) == 0 {
		t.Fatal("triangle produced no similar pairs")
	}
	for _, pair := range result.Pairs {
		if pair.A == pair.B {
			t.Errorf("self pair (%d, %d)", pair.A, pair.B)
		}
		if pair.A > pair.B {
			t.Errorf("pair (%d, %d) not smaller-index-first", pair.A, pair.B)
		}
		if pair.Score <= 0 || pair.Score > 1 {
			t.Errorf("score %v outside (0, 1]", pair.Score)
		}
	}
}

func TestNodeSimilarity_Ordering(t *testing.T) {
	p := triangleWithIsolate(t)

	result, err := NodeSimilarity(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("NodeSimilarity error: %v", err)
	}
	for i := 1; i < len(result.Pairs); i++ {
		prev, cur := result.Pairs[i-1], result.Pairs[i]
		if cur.Score > prev.Score {
			t.Errorf("pairs not descending by score at %d: %+v then %+v", i, prev, cur)
		}
		if cur.Score == prev.Score {
			if prev.A > cur.A || (prev.A == cur.A && prev.B > cur.B) {
				t.Errorf("tie not ascending by (A, B) at %d: %+v then %+v", i, prev, cur)
			}
		}
	}
}

func TestNodeSimilarity_TopK(t *testing.T) {
	p := triangleWithIsolate(t)

	all, err := NodeSimilarity(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("NodeSimilarity error: %v", err)
	}
	topOne, err := NodeSimilarity(context.Background(), p, &SimilarityOptions{TopK: 1})
	if err != nil {
		t.Fatalf("NodeSimilarity error: %v", err)
	}

	if len(topOne.Pairs) != 1 {
		t.Fatalf("TopK=1 returned %d pairs", len(topOne.Pairs))
	}
	if topOne.Pairs[0] != all.Pairs[0] {
		t.Errorf("TopK head %+v differs from unrestricted head %+v", topOne.Pairs[0], all.Pairs[0])
	}
	if topOne.Comparisons != all.Comparisons {
		t.Errorf("truncation changed Comparisons: %d vs %d", topOne.Comparisons, all.Comparisons)
	}
}

func TestNodeSimilarity_NilAndEmpty(t *testing.T) {
	ctx := context.Background()

	if _, err := NodeSimilarity(ctx, nil, nil); !errors.Is(err, ErrNilProjection) {
		t.Errorf("nil err = %v, want ErrNilProjection", err)
	}

	s := NewStore()
	p, _ := s.Project(ProjectOptions{Label: LabelPaper, Orientation: Directed})
	result, err := NodeSimilarity(ctx, p, nil)
	if err != nil {
		t.Fatalf("NodeSimilarity error: %v", err)
	}
	if len(result.Pairs) != 0 {
		t.Errorf("empty projection produced pairs: %+v", result.Pairs)
	}
}
