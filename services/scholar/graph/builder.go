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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/Bibliograph/pkg/validation"
	"github.com/AleutianAI/Bibliograph/services/scholar/record"
)

// =============================================================================
// Builder: records in, graph out
// =============================================================================

// BuildPhase names the stage a progress callback reports.
type BuildPhase string

const (
	// PhaseUpserting creates entities from records.
	PhaseUpserting BuildPhase = "upserting"

	// PhaseConnecting creates the direct edges.
	PhaseConnecting BuildPhase = "connecting"

	// PhaseInferring runs the requested inference rules.
	PhaseInferring BuildPhase = "inferring"
)

// ProgressFunc receives phase progress during Build.
type ProgressFunc func(phase BuildPhase, done, total int)

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// Rules are the inference rules Build runs after connecting, in
	// order, each exactly once. Default: AllRules.
	Rules []Rule

	// Progress receives phase updates. Nil disables reporting.
	Progress ProgressFunc
}

// BuilderOption is a functional option for configuring a Builder.
type BuilderOption func(*BuilderOptions)

// WithRules selects which inference rules Build runs. An empty list
// skips inference entirely.
func WithRules(rules ...Rule) BuilderOption {
	return func(o *BuilderOptions) {
		o.Rules = rules
	}
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.Progress = fn
	}
}

// BuildResult counts what one Build pass did.
type BuildResult struct {
	// Works is the number of records consumed.
	Works int `json:"works"`

	// Entities counts nodes created per label name.
	Entities map[string]int `json:"entities"`

	// Edges is the number of direct edges created.
	Edges int `json:"edges"`

	// Inference holds the per-rule summaries, in run order.
	Inference []InferenceSummary `json:"inference,omitempty"`

	// Duration is the wall time of the pass.
	Duration time.Duration `json:"duration"`
}

// Builder turns bibliographic records into store entities and edges, then
// runs the build phase's inference rules exactly once.
//
// Thread Safety: not safe for concurrent Build calls on one Builder; the
// store's single-writer contract applies.
type Builder struct {
	store *Store
	opts  BuilderOptions
}

// NewBuilder creates a Builder over a store.
func NewBuilder(store *Store, opts ...BuilderOption) *Builder {
	options := BuilderOptions{Rules: AllRules}
	for _, opt := range opts {
		opt(&options)
	}
	return &Builder{store: store, opts: options}
}

// Build ingests a slice of works.
//
// Description:
//
//	Phase 1 upserts Paper, Author, Researcher, Journal, and Keyword
//	entities (papers keyed by DOI, else normalized title). Phase 2
//	connects WROTE (with byline order), PUBLISHED_IN, and HAS_KEYWORD.
//	Phase 3 runs the configured inference rules. Re-ingesting the same
//	records is idempotent for entities and direct edges; inference rules
//	accumulate, so callers run Build once per logical corpus build.
//
// Errors:
//
//	Structural errors (ErrDuplicateKey and friends) abort the pass with
//	the offending work's key wrapped in. Completed upserts and edges
//	remain; every elementary operation is idempotent, so re-running after
//	a fix is the recovery path.
func (b *Builder) Build(ctx context.Context, works []record.Work) (*BuildResult, error) {
	ctx, span := tracer.Start(ctx, "Builder.Build")
	defer span.End()
	span.SetAttributes(attribute.Int("graph.work_count", len(works)))

	start := time.Now()
	result := &BuildResult{
		Works:    len(works),
		Entities: make(map[string]int),
	}

	for i := range works {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := b.upsertWork(&works[i], result); err != nil {
			span.RecordError(err)
			return result, fmt.Errorf("upsert work %q: %w", works[i].Key(), err)
		}
		b.report(PhaseUpserting, i+1, len(works))
	}

	for i := range works {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := b.connectWork(&works[i], result); err != nil {
			span.RecordError(err)
			return result, fmt.Errorf("connect work %q: %w", works[i].Key(), err)
		}
		b.report(PhaseConnecting, i+1, len(works))
	}

	for i, rule := range b.opts.Rules {
		summary, err := b.store.Infer(ctx, rule)
		if err != nil {
			span.RecordError(err)
			return result, fmt.Errorf("inference rule %s: %w", rule, err)
		}
		result.Inference = append(result.Inference, *summary)
		b.report(PhaseInferring, i+1, len(b.opts.Rules))
	}

	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("graph.edges_created", result.Edges),
		attribute.Int("graph.node_count", b.store.NodeCount()),
	)
	slog.Info("graph build completed",
		slog.Int("works", result.Works),
		slog.Int("edges", result.Edges),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// upsertWork creates the work's entities.
func (b *Builder) upsertWork(w *record.Work, result *BuildResult) error {
	attrs := map[string]any{AttrTitle: w.Title}
	if w.DOI != "" {
		attrs[AttrDOI] = w.DOI
	}
	if w.PublicationYear != 0 {
		attrs[AttrPublished] = w.PublicationYear
	}
	if w.CitedByCount != 0 {
		attrs["cited_by_count"] = w.CitedByCount
	}
	if w.Type != "" {
		attrs["type"] = w.Type
	}
	if err := b.upsert(LabelPaper, w.Key(), attrs, result); err != nil {
		return err
	}

	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			if err := b.upsert(LabelAuthor, a.Author.DisplayName, nil, result); err != nil {
				return err
			}
		}
		if orcid := validation.NormalizeORCID(a.Author.Orcid); orcid != "" {
			attrs := map[string]any{"display_name": a.Author.DisplayName}
			if err := b.upsert(LabelResearcher, orcid, attrs, result); err != nil {
				return err
			}
		}
	}
	if w.Venue.Name != "" {
		var attrs map[string]any
		if w.Venue.Type != "" {
			attrs = map[string]any{"type": w.Venue.Type}
		}
		if err := b.upsert(LabelJournal, w.Venue.Name, attrs, result); err != nil {
			return err
		}
	}
	for _, kw := range w.Keywords {
		term := record.NormalizeTitle(kw)
		if term == "" {
			continue
		}
		if err := b.upsert(LabelKeyword, term, nil, result); err != nil {
			return err
		}
	}
	return nil
}

// connectWork creates the work's direct edges.
func (b *Builder) connectWork(w *record.Work, result *BuildResult) error {
	paper, ok := b.store.Get(LabelPaper, w.Key())
	if !ok {
		return ErrUnknownEntity
	}

	edgesBefore := b.store.EdgeCount()
	for i, a := range w.Authorships {
		order := a.Position
		if order == 0 {
			order = i + 1
		}
		if a.Author.DisplayName != "" {
			author, ok := b.store.Get(LabelAuthor, a.Author.DisplayName)
			if !ok {
				return ErrUnknownEntity
			}
			if err := b.store.ConnectOrdered(author, paper, RelWrote, 1, order); err != nil {
				return err
			}
		}
		if orcid := validation.NormalizeORCID(a.Author.Orcid); orcid != "" {
			researcher, ok := b.store.Get(LabelResearcher, orcid)
			if !ok {
				return ErrUnknownEntity
			}
			if err := b.store.ConnectOrdered(researcher, paper, RelWrote, 1, order); err != nil {
				return err
			}
		}
	}
	if w.Venue.Name != "" {
		journal, ok := b.store.Get(LabelJournal, w.Venue.Name)
		if !ok {
			return ErrUnknownEntity
		}
		if err := b.store.Connect(paper, journal, RelPublishedIn, 1); err != nil {
			return err
		}
	}
	for _, kw := range w.Keywords {
		term := record.NormalizeTitle(kw)
		if term == "" {
			continue
		}
		keyword, ok := b.store.Get(LabelKeyword, term)
		if !ok {
			return ErrUnknownEntity
		}
		if err := b.store.Connect(paper, keyword, RelHasKeyword, 1); err != nil {
			return err
		}
	}
	result.Edges += b.store.EdgeCount() - edgesBefore
	return nil
}

// upsert wraps Store.Upsert with per-label creation counting.
func (b *Builder) upsert(label Label, key string, attrs map[string]any, result *BuildResult) error {
	before := b.store.NodeCount()
	if _, err := b.store.Upsert(label, key, attrs); err != nil {
		return err
	}
	if b.store.NodeCount() > before {
		result.Entities[label.String()]++
	}
	return nil
}

// report invokes the progress callback when one is installed.
func (b *Builder) report(phase BuildPhase, done, total int) {
	if b.opts.Progress != nil {
		b.opts.Progress(phase, done, total)
	}
}
