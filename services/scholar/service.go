// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scholar provides the Bibliograph HTTP service over the
// in-memory property graph.
//
// The service exposes endpoints for:
//   - Ingesting bibliographic record batches
//   - Creating entities and relationships directly
//   - Running inference rules and graph analytics
//   - Formatting citations and streaming corpus events
package scholar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/AleutianAI/Bibliograph/services/scholar/enrich"
	"github.com/AleutianAI/Bibliograph/services/scholar/format"
	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
	"github.com/AleutianAI/Bibliograph/services/scholar/record"
	"github.com/AleutianAI/Bibliograph/services/scholar/semantic"
	"github.com/AleutianAI/Bibliograph/services/scholar/storage/neo4j"
	"github.com/AleutianAI/Bibliograph/services/scholar/telemetry"
)

// ServiceVersion is the Bibliograph service version.
const ServiceVersion = "0.1.0"

// Service owns the store and the optional collaborators behind the
// HTTP surface.
//
// Thread Safety: safe for concurrent use. The store serializes writes;
// buildMu additionally serializes whole builder passes so two uploads
// cannot interleave their inference phases.
type Service struct {
	store  *graph.Store
	logger *slog.Logger

	semantic  *semantic.Index
	suggester *enrich.Suggester
	mirror    *neo4j.Mirror
	sink      *telemetry.AnalyticsSink

	hub *Hub

	buildMu sync.Mutex
}

// NewService creates a service over a store.
func NewService(store *graph.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		hub:    NewHub(logger),
	}
}

// WithSemantic sets the semantic index for relatedness suggestions.
func (s *Service) WithSemantic(idx *semantic.Index) *Service {
	s.semantic = idx
	return s
}

// WithSuggester sets the keyword suggester.
func (s *Service) WithSuggester(sg *enrich.Suggester) *Service {
	s.suggester = sg
	return s
}

// WithMirror sets the Neo4j mirror. Mirroring is best-effort; a mirror
// failure never fails the originating request.
func (s *Service) WithMirror(m *neo4j.Mirror) *Service {
	s.mirror = m
	return s
}

// WithAnalyticsSink sets the InfluxDB analytics sink.
func (s *Service) WithAnalyticsSink(sink *telemetry.AnalyticsSink) *Service {
	s.sink = sink
	return s
}

// Store exposes the underlying store to the snapshot lifecycle.
func (s *Service) Store() *graph.Store {
	return s.store
}

// Hub exposes the event hub.
func (s *Service) Hub() *Hub {
	return s.hub
}

// Ingest decodes a batch from r and runs one builder pass over it.
//
// Description:
//
//	One pass upserts entities, connects direct edges, and runs the
//	requested inference rules exactly once. Ingests are serialized so
//	concurrent uploads cannot interleave inference phases. A
//	batch_ingested event is published on success.
func (s *Service) Ingest(ctx context.Context, r io.Reader, source string, rules []graph.Rule) (*record.Batch, *graph.BuildResult, error) {
	batch, err := record.DecodeWorks(r, source)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.IngestBatch(ctx, batch, rules)
	if err != nil {
		return nil, nil, err
	}
	return batch, result, nil
}

// IngestBatch runs one builder pass over an already decoded batch.
func (s *Service) IngestBatch(ctx context.Context, batch *record.Batch, rules []graph.Rule) (*graph.BuildResult, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	opts := []graph.BuilderOption{}
	if rules != nil {
		opts = append(opts, graph.WithRules(rules...))
	}
	builder := graph.NewBuilder(s.store, opts...)
	result, err := builder.Build(ctx, batch.Works)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ingested batch",
		"batch", batch.ID, "source", batch.Source,
		"works", result.Works, "edges", result.Edges,
		"rejected", batch.Rejected)
	s.hub.Publish(Event{
		Type: EventBatchIngested,
		Payload: map[string]any{
			"batch_id": batch.ID,
			"source":   batch.Source,
			"works":    result.Works,
			"edges":    result.Edges,
			"rejected": batch.Rejected,
		},
	})

	s.mirrorAfterWrite(ctx, batch)
	s.indexAfterWrite(ctx, batch)
	return result, nil
}

// UpsertEntity creates or updates one entity.
func (s *Service) UpsertEntity(ctx context.Context, label graph.Label, key string, attrs map[string]any) (graph.Handle, error) {
	h, err := s.store.Upsert(label, key, attrs)
	if err != nil {
		return 0, err
	}
	if s.mirror != nil {
		if merr := s.mirror.MirrorEntity(ctx, label, key, attrs); merr != nil {
			s.logger.Warn("neo4j entity mirror failed", "key", key, "error", merr)
		}
	}
	return h, nil
}

// Connect creates or strengthens one relationship by natural key.
func (s *Service) Connect(ctx context.Context, sourceKey, targetKey string, relType graph.RelType, weight float64) error {
	if weight == 0 {
		weight = 1
	}
	if err := s.store.ConnectKeys(sourceKey, targetKey, relType, weight); err != nil {
		return err
	}
	if s.mirror != nil {
		if merr := s.mirror.MirrorEdge(ctx, sourceKey, targetKey, relType, weight, 0); merr != nil {
			s.logger.Warn("neo4j edge mirror failed", "source", sourceKey, "target", targetKey, "error", merr)
		}
	}
	return nil
}

// Entity resolves one entity by label and key.
func (s *Service) Entity(label graph.Label, key string) (EntityResponse, error) {
	h, ok := s.store.Get(label, key)
	if !ok {
		return EntityResponse{}, fmt.Errorf("%w: %s %q", ErrNotFound, label, key)
	}
	attrs, err := s.store.AttributesOf(h)
	if err != nil {
		return EntityResponse{}, err
	}
	return EntityResponse{Label: label.String(), Key: key, Attrs: attrs}, nil
}

// Edges lists the adjacency of one entity resolved by bare key.
func (s *Service) Edges(key string, relType graph.RelType, dir graph.Direction) ([]EdgeResponse, error) {
	h, ok := s.store.Resolve(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	neighbors, err := s.store.EdgesOf(h, relType, dir)
	if err != nil {
		return nil, err
	}
	out := make([]EdgeResponse, 0, len(neighbors))
	for _, n := range neighbors {
		info, err := s.store.Info(n.Handle)
		if err != nil {
			return nil, err
		}
		out = append(out, EdgeResponse{
			Label:  info.Label.String(),
			Key:    info.Key,
			Weight: n.Weight,
			Order:  n.Order,
		})
	}
	return out, nil
}

// Infer runs the named rules in order, or all rules when none are named.
// An inference_completed event is published on success.
func (s *Service) Infer(ctx context.Context, ruleNames []string) ([]graph.InferenceSummary, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	var summaries []graph.InferenceSummary
	if len(ruleNames) == 0 {
		all, err := s.store.InferAll(ctx)
		if err != nil {
			return nil, err
		}
		summaries = all
	} else {
		for _, name := range ruleNames {
			rule, err := graph.ParseRule(name)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", err, name)
			}
			summary, err := s.store.Infer(ctx, rule)
			if err != nil {
				return nil, err
			}
			summaries = append(summaries, *summary)
		}
	}

	created := 0
	for _, sum := range summaries {
		created += sum.EdgesCreated
	}
	s.hub.Publish(Event{
		Type: EventInferenceCompleted,
		Payload: map[string]any{
			"rules":         len(summaries),
			"edges_created": created,
		},
	})
	return summaries, nil
}

// Project builds a projection snapshot from a request.
func (s *Service) Project(req ProjectionRequest) (*graph.Projection, error) {
	opts, err := projectOptions(req)
	if err != nil {
		return nil, err
	}
	return s.store.Project(opts)
}

// projectOptions maps the wire projection request onto store options.
func projectOptions(req ProjectionRequest) (graph.ProjectOptions, error) {
	opts := graph.ProjectOptions{
		Label:       graph.LabelPaper,
		Types:       []graph.RelType{graph.RelSharesAuthor},
		Orientation: graph.Undirected,
	}
	if req.Label != "" {
		label, err := graph.ParseLabel(req.Label)
		if err != nil {
			return opts, fmt.Errorf("%w: %q", err, req.Label)
		}
		opts.Label = label
	}
	if len(req.Types) > 0 {
		opts.Types = opts.Types[:0]
		for _, name := range req.Types {
			t, err := graph.ParseRelType(name)
			if err != nil {
				return opts, fmt.Errorf("%w: %q", err, name)
			}
			opts.Types = append(opts.Types, t)
		}
	}
	switch req.Orientation {
	case "", "undirected":
	case "directed":
		opts.Orientation = graph.Directed
	default:
		return opts, fmt.Errorf("%w: %q", ErrInvalidOrientation, req.Orientation)
	}
	if req.Weighted {
		opts.WeightKey = graph.WeightKeyAccumulated
	}
	return opts, nil
}

// PageRank runs PageRank and resolves scores back to entity identity.
func (s *Service) PageRank(ctx context.Context, req PageRankRequest) (PageRankResponse, error) {
	p, err := s.Project(req.Projection)
	if err != nil {
		return PageRankResponse{}, err
	}
	opts := graph.DefaultPageRankOptions()
	if req.Damping > 0 {
		opts.DampingFactor = req.Damping
	}
	if req.MaxIterations > 0 {
		opts.MaxIterations = req.MaxIterations
	}
	if req.Tolerance > 0 {
		opts.Tolerance = req.Tolerance
	}
	result, err := graph.PageRank(ctx, p, opts)
	if err != nil {
		return PageRankResponse{}, err
	}
	nodes, err := s.rankNodes(p, result.Scores, req.TopK)
	if err != nil {
		return PageRankResponse{}, err
	}
	return PageRankResponse{
		Nodes:      nodes,
		Iterations: result.Iterations,
		Converged:  result.Converged,
		Delta:      result.Delta,
	}, nil
}

// Communities runs Louvain and groups members by community id.
func (s *Service) Communities(ctx context.Context, req CommunitiesRequest) (CommunitiesResponse, error) {
	p, err := s.Project(req.Projection)
	if err != nil {
		return CommunitiesResponse{}, err
	}
	opts := graph.DefaultLouvainOptions()
	if req.MaxLevels > 0 {
		opts.MaxLevels = req.MaxLevels
	}
	if req.MaxSweeps > 0 {
		opts.MaxSweeps = req.MaxSweeps
	}
	result, err := graph.Louvain(ctx, p, opts)
	if err != nil {
		return CommunitiesResponse{}, err
	}
	return s.groupCommunities(p, result)
}

// Similarity runs Jaccard node similarity and resolves pair identity.
func (s *Service) Similarity(ctx context.Context, req SimilarityRequest) (SimilarityResponse, error) {
	p, err := s.Project(req.Projection)
	if err != nil {
		return SimilarityResponse{}, err
	}
	opts := &graph.SimilarityOptions{TopK: req.TopK}
	result, err := graph.NodeSimilarity(ctx, p, opts)
	if err != nil {
		return SimilarityResponse{}, err
	}
	return s.resolvePairs(p, result)
}

// RunAnalytics runs all three algorithms over one projection snapshot,
// records the run to the analytics sink, and publishes an event.
func (s *Service) RunAnalytics(ctx context.Context, req AnalyticsRunRequest) (AnalyticsRunResponse, error) {
	p, err := s.Project(req.Projection)
	if err != nil {
		return AnalyticsRunResponse{}, err
	}

	opts := &graph.AnalyticsOptions{
		PageRank:   graph.DefaultPageRankOptions(),
		Louvain:    graph.DefaultLouvainOptions(),
		Similarity: graph.DefaultSimilarityOptions(),
	}
	topK := 0
	if req.PageRank != nil {
		if req.PageRank.Damping > 0 {
			opts.PageRank.DampingFactor = req.PageRank.Damping
		}
		if req.PageRank.MaxIterations > 0 {
			opts.PageRank.MaxIterations = req.PageRank.MaxIterations
		}
		if req.PageRank.Tolerance > 0 {
			opts.PageRank.Tolerance = req.PageRank.Tolerance
		}
		topK = req.PageRank.TopK
	}
	if req.Communities != nil {
		if req.Communities.MaxLevels > 0 {
			opts.Louvain.MaxLevels = req.Communities.MaxLevels
		}
		if req.Communities.MaxSweeps > 0 {
			opts.Louvain.MaxSweeps = req.Communities.MaxSweeps
		}
	}
	if req.Similarity != nil {
		opts.Similarity.TopK = req.Similarity.TopK
	}

	result, err := graph.NewAnalytics(p).Run(ctx, opts)
	if err != nil {
		return AnalyticsRunResponse{}, err
	}

	var resp AnalyticsRunResponse
	nodes, err := s.rankNodes(p, result.PageRank.Scores, topK)
	if err != nil {
		return AnalyticsRunResponse{}, err
	}
	resp.PageRank = PageRankResponse{
		Nodes:      nodes,
		Iterations: result.PageRank.Iterations,
		Converged:  result.PageRank.Converged,
		Delta:      result.PageRank.Delta,
	}
	if resp.Communities, err = s.groupCommunities(p, result.Louvain); err != nil {
		return AnalyticsRunResponse{}, err
	}
	if resp.Similarity, err = s.resolvePairs(p, result.Similarity); err != nil {
		return AnalyticsRunResponse{}, err
	}

	if s.sink != nil {
		label := req.Projection.Label
		if label == "" {
			label = graph.LabelPaper.String()
		}
		if serr := s.sink.Record(ctx, label, p, result); serr != nil {
			s.logger.Warn("analytics sink write failed", "error", serr)
		}
	}
	s.hub.Publish(Event{
		Type: EventAnalyticsCompleted,
		Payload: map[string]any{
			"nodes":       p.NodeCount(),
			"communities": result.Louvain.CommunityCount,
			"modularity":  result.Louvain.Modularity,
		},
	})
	return resp, nil
}

// Citation formats one APA reference for a stored paper.
func (s *Service) Citation(label graph.Label, key string) (string, error) {
	h, ok := s.store.Get(label, key)
	if !ok {
		return "", fmt.Errorf("%w: %s %q", ErrNotFound, label, key)
	}
	return format.APA(s.store, h)
}

// Related returns semantic relatedness candidates for a free-text query.
func (s *Service) Related(ctx context.Context, query string, k int) ([]semantic.Candidate, error) {
	if s.semantic == nil {
		return nil, ErrSemanticDisabled
	}
	return s.semantic.Related(ctx, query, k)
}

// SuggestKeywords proposes keywords for a work description. Suggestions
// are advisory and never written to the store.
func (s *Service) SuggestKeywords(ctx context.Context, req KeywordSuggestRequest) ([]string, error) {
	if s.suggester == nil {
		return nil, ErrEnrichDisabled
	}
	w := record.Work{
		Title:           req.Title,
		PublicationYear: req.Year,
		Type:            req.Type,
		Venue:           record.Venue{Name: req.Venue},
	}
	return s.suggester.SuggestKeywords(ctx, w)
}

// Stats returns store counts.
func (s *Service) Stats() graph.StoreStats {
	return s.store.Stats()
}

// rankNodes pairs scores with resolved identity, sorted descending.
func (s *Service) rankNodes(p *graph.Projection, scores []float64, topK int) ([]RankedNode, error) {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if scores[idx[a]] != scores[idx[b]] {
			return scores[idx[a]] > scores[idx[b]]
		}
		return idx[a] < idx[b]
	})
	if topK > 0 && topK < len(idx) {
		idx = idx[:topK]
	}
	out := make([]RankedNode, 0, len(idx))
	for _, i := range idx {
		h, _ := p.HandleAt(i)
		info, err := s.store.Info(h)
		if err != nil {
			return nil, err
		}
		out = append(out, RankedNode{Label: info.Label.String(), Key: info.Key, Score: scores[i]})
	}
	return out, nil
}

// groupCommunities resolves member identities grouped by community id.
func (s *Service) groupCommunities(p *graph.Projection, result *graph.LouvainResult) (CommunitiesResponse, error) {
	members := make([][]string, result.CommunityCount)
	for i, c := range result.Communities {
		h, _ := p.HandleAt(i)
		info, err := s.store.Info(h)
		if err != nil {
			return CommunitiesResponse{}, err
		}
		members[c] = append(members[c], info.Key)
	}
	communities := make([]Community, result.CommunityCount)
	for id, m := range members {
		communities[id] = Community{ID: id, Members: m}
	}
	return CommunitiesResponse{
		Communities: communities,
		Modularity:  result.Modularity,
		Levels:      result.Levels,
	}, nil
}

// resolvePairs maps projection indexes back to keys.
func (s *Service) resolvePairs(p *graph.Projection, result *graph.SimilarityResult) (SimilarityResponse, error) {
	pairs := make([]SimilarPair, 0, len(result.Pairs))
	for _, pair := range result.Pairs {
		ha, _ := p.HandleAt(pair.A)
		hb, _ := p.HandleAt(pair.B)
		ia, err := s.store.Info(ha)
		if err != nil {
			return SimilarityResponse{}, err
		}
		ib, err := s.store.Info(hb)
		if err != nil {
			return SimilarityResponse{}, err
		}
		pairs = append(pairs, SimilarPair{A: ia.Key, B: ib.Key, Score: pair.Score})
	}
	return SimilarityResponse{Pairs: pairs, Comparisons: result.Comparisons}, nil
}

// mirrorAfterWrite pushes the batch's entities to Neo4j, best-effort.
func (s *Service) mirrorAfterWrite(ctx context.Context, batch *record.Batch) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Sync(ctx, s.store); err != nil {
		s.logger.Warn("neo4j sync failed", "batch", batch.ID, "error", err)
	}
}

// indexAfterWrite pushes the batch's works to the semantic index,
// best-effort.
func (s *Service) indexAfterWrite(ctx context.Context, batch *record.Batch) {
	if s.semantic == nil {
		return
	}
	n, err := s.semantic.IndexWorks(ctx, batch.Works)
	if err != nil {
		s.logger.Warn("semantic indexing failed", "batch", batch.ID, "error", err)
		return
	}
	s.logger.Debug("indexed works", "batch", batch.ID, "count", n)
}
