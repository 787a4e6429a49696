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
	"testing"

	"github.com/AleutianAI/Bibliograph/services/scholar/record"
)

// sampleWorks is a two-paper corpus with a shared author, a shared
// keyword, and one ORCID pair.
func sampleWorks() []record.Work {
	return []record.Work{
		{
			DOI:             "10.1/alpha",
			Title:           "Weighted Graph Projections",
			PublicationYear: 2021,
			Authorships: []record.Authorship{
				{Position: 1, Author: record.Author{DisplayName: "Ana Souza", Orcid: "0000-0001"}},
				{Position: 2, Author: record.Author{DisplayName: "Juan Perez", Orcid: "0000-0002"}},
			},
			Venue:    record.Venue{Name: "Journal of Graphs", Type: "journal"},
			Keywords: []string{"Graphs", "centrality"},
		},
		{
			DOI:             "10.1/beta",
			Title:           "Community Structure in Citation Networks",
			PublicationYear: 2019,
			Authorships: []record.Authorship{
				{Position: 1, Author: record.Author{DisplayName: "Ana Souza", Orcid: "0000-0001"}},
			},
			Venue:    record.Venue{Name: "Journal of Graphs", Type: "journal"},
			Keywords: []string{"graphs"},
		},
	}
}

func TestBuilder_Build(t *testing.T) {
	s := NewStore()
	builder := NewBuilder(s)

	result, err := builder.Build(context.Background(), sampleWorks())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	if result.Works != 2 {
		t.Errorf("Works = %d, want 2", result.Works)
	}
	want := map[string]int{
		"Paper":      2,
		"Author":     2,
		"Researcher": 2,
		"Journal":    1,
		"Keyword":    2,
	}
	for label, count := range want {
		if result.Entities[label] != count {
			t.Errorf("Entities[%s] = %d, want %d", label, result.Entities[label], count)
		}
	}

	// Direct edges: 3 author WROTE + 3 researcher WROTE + 2 PUBLISHED_IN
	// + 3 HAS_KEYWORD.
	if result.Edges != 11 {
		t.Errorf("Edges = %d, want 11", result.Edges)
	}
	if len(result.Inference) != len(AllRules) {
		t.Errorf("Inference summaries = %d, want %d", len(result.Inference), len(AllRules))
	}

	// Derived edges from the shared author, keyword, ORCID, and years.
	p1, _ := s.Get(LabelPaper, "10.1/alpha")
	p2, _ := s.Get(LabelPaper, "10.1/beta")
	if w, _ := s.Weight(p1, p2, RelSharesAuthor); w != 1 {
		t.Errorf("SHARES_AUTHOR weight = %v, want 1 (only Ana links them)", w)
	}
	if w, _ := s.Weight(p1, p2, RelRelatedTo); w != 1 {
		t.Errorf("RELATED_TO weight = %v, want 1 (keyword folds case)", w)
	}
	if _, ok := s.Weight(p1, p2, RelPotentiallyCites); !ok {
		t.Error("2021 paper should potentially cite the 2019 one")
	}
	r1, _ := s.Get(LabelResearcher, "0000-0001")
	r2, _ := s.Get(LabelResearcher, "0000-0002")
	if w, _ := s.Weight(r1, r2, RelCollaborated); w != 1 {
		t.Errorf("COLLABORATED weight = %v, want 1", w)
	}
}

func TestBuilder_WroteOrderFollowsByline(t *testing.T) {
	s := NewStore()
	if _, err := NewBuilder(s, WithRules()).Build(context.Background(), sampleWorks()); err != nil {
		t.Fatalf("Build error: %v", err)
	}

	juan, _ := s.Get(LabelAuthor, "Juan Perez")
	out, err := s.EdgesOf(juan, RelWrote, Outgoing)
	if err != nil {
		t.Fatalf("EdgesOf error: %v", err)
	}
	if len(out) != 1 || out[0].Order != 2 {
		t.Errorf("Juan's WROTE = %+v, want one edge with order 2", out)
	}
}

func TestBuilder_ReingestIsIdempotentForDirectEdges(t *testing.T) {
	s := NewStore()
	works := sampleWorks()
	ctx := context.Background()

	// Inference disabled: re-running it would accumulate by contract.
	builder := NewBuilder(s, WithRules())
	if _, err := builder.Build(ctx, works); err != nil {
		t.Fatalf("first Build error: %v", err)
	}
	nodes, edges := s.NodeCount(), s.EdgeCount()

	second, err := builder.Build(ctx, works)
	if err != nil {
		t.Fatalf("second Build error: %v", err)
	}
	if s.NodeCount() != nodes || s.EdgeCount() != edges {
		t.Errorf("re-ingest changed store: %d/%d nodes, %d/%d edges",
			s.NodeCount(), nodes, s.EdgeCount(), edges)
	}
	if len(second.Entities) != 0 {
		t.Errorf("second pass created entities: %v", second.Entities)
	}
}

func TestBuilder_TitleKeyWhenDOIAbsent(t *testing.T) {
	s := NewStore()
	works := []record.Work{{Title: "  Untitled   DOI-less  Work "}}
	if _, err := NewBuilder(s, WithRules()).Build(context.Background(), works); err != nil {
		t.Fatalf("Build error: %v", err)
	}

	if _, ok := s.Get(LabelPaper, "untitled doi-less work"); !ok {
		t.Error("paper not keyed by normalized title")
	}
}

func TestBuilder_ProgressPhases(t *testing.T) {
	s := NewStore()
	phases := make(map[BuildPhase]int)
	builder := NewBuilder(s,
		WithRules(RuleSharedAuthors),
		WithProgress(func(phase BuildPhase, done, total int) {
			phases[phase]++
		}),
	)
	if _, err := builder.Build(context.Background(), sampleWorks()); err != nil {
		t.Fatalf("Build error: %v", err)
	}

	if phases[PhaseUpserting] != 2 || phases[PhaseConnecting] != 2 || phases[PhaseInferring] != 1 {
		t.Errorf("phase reports = %v", phases)
	}
}

func TestBuilder_NormalizesORCIDKeys(t *testing.T) {
	s := NewStore()
	builder := NewBuilder(s, WithRules())

	works := []record.Work{{
		DOI:   "10.1/gamma",
		Title: "Resolver Prefixes Considered Noisy",
		Authorships: []record.Authorship{
			{Position: 1, Author: record.Author{
				DisplayName: "Ana Souza",
				Orcid:       "https://orcid.org/0000-0002-1825-0097",
			}},
		},
	}}
	if _, err := builder.Build(context.Background(), works); err != nil {
		t.Fatalf("Build error: %v", err)
	}

	if _, ok := s.Get(LabelResearcher, "0000-0002-1825-0097"); !ok {
		t.Error("researcher not keyed by bare ORCID iD")
	}
	if _, ok := s.Get(LabelResearcher, "https://orcid.org/0000-0002-1825-0097"); ok {
		t.Error("researcher keyed by unnormalized ORCID iD")
	}
}
