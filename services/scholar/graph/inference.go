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
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// =============================================================================
// Relationship inference
// =============================================================================

// CitationDepth is the breadth-first expansion bound for citation-candidate
// inference.
const CitationDepth = 2

// Rule names an inference rule for selection and reporting.
type Rule string

const (
	// RuleSharedAuthors links papers with a common author (SHARES_AUTHOR).
	RuleSharedAuthors Rule = "shared_authors"

	// RuleSharedKeywords links papers with a common keyword (RELATED_TO).
	RuleSharedKeywords Rule = "shared_keywords"

	// RuleCollaborations links researchers who co-authored a paper
	// (COLLABORATED).
	RuleCollaborations Rule = "collaborations"

	// RuleCitationCandidates adds temporal citation candidates
	// (POTENTIALLY_CITES).
	RuleCitationCandidates Rule = "citation_candidates"
)

// AllRules is the canonical rule order for a full build phase. Derived
// edges of rules 1 and 2 feed the expansion of rule 4, so citation
// candidates run last.
var AllRules = []Rule{
	RuleSharedAuthors,
	RuleSharedKeywords,
	RuleCollaborations,
	RuleCitationCandidates,
}

// ParseRule maps a rule name to its Rule value.
func ParseRule(s string) (Rule, error) {
	switch Rule(s) {
	case RuleSharedAuthors, RuleSharedKeywords, RuleCollaborations, RuleCitationCandidates:
		return Rule(s), nil
	default:
		return "", ErrUnknownRule
	}
}

// InferenceSummary reports what one inference rule pass did.
type InferenceSummary struct {
	// Rule is the rule that ran.
	Rule Rule `json:"rule"`

	// EdgesCreated counts edges that did not exist before the pass.
	EdgesCreated int `json:"edges_created"`

	// EdgesStrengthened counts accumulating edges whose weight grew.
	EdgesStrengthened int `json:"edges_strengthened"`

	// Duration is the wall time of the pass.
	Duration time.Duration `json:"duration"`
}

// Infer runs one inference rule over the store.
//
// Description:
//
//	Every rule is convergent and order-independent within one pass, but
//	accumulating writes mean a second run of the same rule doubles the
//	derived weights. Callers run each rule exactly once per build phase;
//	after a failure the same rule is safe to re-run only if its pass made
//	no accumulating writes (the summary reports both counts).
//
// Errors:
//
//	ErrUnknownRule - rule is not one of the defined rules.
//	ctx.Err() - cancellation observed at a node boundary; writes so far
//	remain applied.
//
// Thread Safety: takes the store write lock per edge upsert; must not run
// concurrently with Project on the same store.
func (s *Store) Infer(ctx context.Context, rule Rule) (*InferenceSummary, error) {
	ctx, span := tracer.Start(ctx, "Store.Infer")
	defer span.End()
	span.SetAttributes(attribute.String("graph.rule", string(rule)))

	start := time.Now()
	summary := &InferenceSummary{Rule: rule}

	var err error
	switch rule {
	case RuleSharedAuthors:
		err = s.inferCoOccurrence(ctx, LabelAuthor, RelWrote, RelSharesAuthor, summary)
	case RuleSharedKeywords:
		err = s.inferCoOccurrence(ctx, LabelKeyword, RelHasKeyword, RelRelatedTo, summary)
	case RuleCollaborations:
		err = s.inferCollaborations(ctx, summary)
	case RuleCitationCandidates:
		err = s.inferCitationCandidates(ctx, summary)
	default:
		return nil, ErrUnknownRule
	}
	if err != nil {
		span.RecordError(err)
		return summary, err
	}

	summary.Duration = time.Since(start)
	recordInferenceMetrics(ctx, string(rule), summary.Duration, summary.EdgesCreated, summary.EdgesStrengthened)
	span.SetAttributes(
		attribute.Int("graph.edges_created", summary.EdgesCreated),
		attribute.Int("graph.edges_strengthened", summary.EdgesStrengthened),
	)
	slog.Debug("inference rule completed",
		slog.String("rule", string(rule)),
		slog.Int("edges_created", summary.EdgesCreated),
		slog.Int("edges_strengthened", summary.EdgesStrengthened),
		slog.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// InferAll runs every rule once in canonical order. It stops at the first
// failure; completed rules keep their writes and the failed rule is the
// caller's retry point.
func (s *Store) InferAll(ctx context.Context) ([]InferenceSummary, error) {
	summaries := make([]InferenceSummary, 0, len(AllRules))
	for _, rule := range AllRules {
		summary, err := s.Infer(ctx, rule)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// inferCoOccurrence derives symmetric accumulating edges between every
// pair of distinct Papers sharing a hub node. SHARES_AUTHOR uses Author
// hubs over WROTE; RELATED_TO uses Keyword hubs over HAS_KEYWORD.
//
// Hub fan-out drives the cost: O(sum over hubs of papers(hub)^2).
func (s *Store) inferCoOccurrence(ctx context.Context, hub Label, via, derived RelType, summary *InferenceSummary) error {
	for _, h := range s.HandlesByLabel(hub) {
		if err := ctx.Err(); err != nil {
			return err
		}
		var papers []Handle
		if via == RelWrote {
			// WROTE points hub -> paper.
			neighbors, err := s.EdgesOf(h, via, Outgoing)
			if err != nil {
				return err
			}
			for _, n := range neighbors {
				papers = append(papers, n.Handle)
			}
		} else {
			// HAS_KEYWORD points paper -> hub.
			neighbors, err := s.EdgesOf(h, via, Incoming)
			if err != nil {
				return err
			}
			for _, n := range neighbors {
				papers = append(papers, n.Handle)
			}
		}
		for i, p1 := range papers {
			for _, p2 := range papers[i+1:] {
				if err := s.connectBoth(p1, p2, derived, summary); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// inferCollaborations derives COLLABORATED between every pair of
// ORCID-identified Researchers with a WROTE edge to the same Paper.
func (s *Store) inferCollaborations(ctx context.Context, summary *InferenceSummary) error {
	for _, paper := range s.HandlesByLabel(LabelPaper) {
		if err := ctx.Err(); err != nil {
			return err
		}
		writers, err := s.EdgesOf(paper, RelWrote, Incoming)
		if err != nil {
			return err
		}
		var researchers []Handle
		for _, w := range writers {
			info, err := s.Info(w.Handle)
			if err != nil {
				return err
			}
			if info.Label == LabelResearcher {
				researchers = append(researchers, w.Handle)
			}
		}
		for i, r1 := range researchers {
			for _, r2 := range researchers[i+1:] {
				if err := s.connectBoth(r1, r2, RelCollaborated, summary); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// inferCitationCandidates adds a directed POTENTIALLY_CITES edge from each
// Paper to every older Paper within CitationDepth hops over the union of
// SHARES_AUTHOR and RELATED_TO.
//
// The expansion asserts topical or authorial proximity plus strict
// temporal ordering, not an actual citation. Papers without a known
// publication year are excluded from both sides.
func (s *Store) inferCitationCandidates(ctx context.Context, summary *InferenceSummary) error {
	for _, p1 := range s.HandlesByLabel(LabelPaper) {
		if err := ctx.Err(); err != nil {
			return err
		}
		y1, ok := s.PublishedYear(p1)
		if !ok {
			continue
		}
		candidates, err := s.expand(p1, CitationDepth, RelSharesAuthor, RelRelatedTo)
		if err != nil {
			return err
		}
		for _, p2 := range candidates {
			y2, ok := s.PublishedYear(p2)
			if !ok || y1 <= y2 {
				continue
			}
			created, err := s.connect(p1, p2, RelPotentiallyCites, 1, 0)
			if err != nil {
				return err
			}
			if created {
				summary.EdgesCreated++
			}
		}
	}
	return nil
}

// expand is a bounded breadth-first traversal over outgoing edges of the
// given types. The start node is never part of the result. Results come
// out in handle order per depth ring, so passes are deterministic.
func (s *Store) expand(start Handle, maxDepth int, types ...RelType) ([]Handle, error) {
	visited := map[Handle]bool{start: true}
	frontier := []Handle{start}
	var reached []Handle

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []Handle
		for _, h := range frontier {
			for _, t := range types {
				neighbors, err := s.EdgesOf(h, t, Outgoing)
				if err != nil {
					return nil, err
				}
				for _, n := range neighbors {
					if visited[n.Handle] {
						continue
					}
					visited[n.Handle] = true
					next = append(next, n.Handle)
					reached = append(reached, n.Handle)
				}
			}
		}
		frontier = next
	}
	return reached, nil
}

// connectBoth realizes undirected semantics as two directed accumulating
// edges with equal weight.
func (s *Store) connectBoth(a, b Handle, relType RelType, summary *InferenceSummary) error {
	for _, pair := range [2][2]Handle{{a, b}, {b, a}} {
		created, err := s.connect(pair[0], pair[1], relType, 1, 0)
		if err != nil {
			return err
		}
		if created {
			summary.EdgesCreated++
		} else if pair[0] != pair[1] {
			summary.EdgesStrengthened++
		}
	}
	return nil
}
