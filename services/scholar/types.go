// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scholar

import (
	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
	"github.com/AleutianAI/Bibliograph/services/scholar/semantic"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is a human-readable error message.
	Error string `json:"error"`

	// Code is a machine-readable error code.
	Code string `json:"code"`
}

// EntityRequest creates or updates one entity.
type EntityRequest struct {
	// Label is the entity label name (Author, Paper, Journal, Keyword,
	// Researcher).
	Label string `json:"label" binding:"required"`

	// Key is the natural identifier, unique across all labels.
	Key string `json:"key" binding:"required"`

	// Attrs are optional attributes. Existing attributes win on re-upsert.
	Attrs map[string]any `json:"attrs,omitempty"`
}

// EntityResponse describes one stored entity.
type EntityResponse struct {
	Label string         `json:"label"`
	Key   string         `json:"key"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// ConnectRequest creates or strengthens one relationship by key.
type ConnectRequest struct {
	// SourceKey resolves the source entity across labels.
	SourceKey string `json:"source_key" binding:"required"`

	// TargetKey resolves the target entity across labels.
	TargetKey string `json:"target_key" binding:"required"`

	// Type is the relationship type name (WROTE, SHARES_AUTHOR, ...).
	Type string `json:"type" binding:"required"`

	// Weight is the evidence delta. Zero means 1.
	Weight float64 `json:"weight,omitempty"`
}

// EdgeQuery selects adjacency for GET /v1/corpus/edges.
type EdgeQuery struct {
	// Key resolves the node whose edges are listed.
	Key string `form:"key" binding:"required"`

	// Type is the relationship type name.
	Type string `form:"type" binding:"required"`

	// Direction is "out", "in", or "both". Default: "out".
	Direction string `form:"direction"`
}

// EdgeResponse is one adjacency entry with resolved endpoint identity.
type EdgeResponse struct {
	Label  string  `json:"label"`
	Key    string  `json:"key"`
	Weight float64 `json:"weight"`
	Order  int     `json:"order,omitempty"`
}

// IngestResponse reports one builder pass over an uploaded batch.
type IngestResponse struct {
	// BatchID identifies the batch in logs and events.
	BatchID string `json:"batch_id"`

	// Rejected counts records dropped by validation.
	Rejected int `json:"rejected"`

	// Result is the builder's pass summary.
	Result *graph.BuildResult `json:"result"`
}

// InferRequest selects inference rules to run.
type InferRequest struct {
	// Rules are rule names (shared_authors, shared_keywords,
	// collaborations, citation_candidates). Empty runs all rules in
	// canonical order.
	Rules []string `json:"rules,omitempty"`
}

// InferResponse reports the per-rule summaries in run order.
type InferResponse struct {
	Summaries []graph.InferenceSummary `json:"summaries"`
}

// ProjectionRequest selects the snapshot analytics run over.
type ProjectionRequest struct {
	// Label selects the nodes to project. Default: PAPER.
	Label string `json:"label,omitempty"`

	// Types are the relationship type names folded into the adjacency.
	// Default: SHARES_AUTHOR.
	Types []string `json:"types,omitempty"`

	// Orientation is "directed" or "undirected". Default: "undirected".
	Orientation string `json:"orientation,omitempty"`

	// Weighted selects stored weights instead of unit weights.
	Weighted bool `json:"weighted,omitempty"`
}

// PageRankRequest runs PageRank over a projection.
type PageRankRequest struct {
	Projection ProjectionRequest `json:"projection"`

	// Damping is the link-follow probability. Zero means 0.85.
	Damping float64 `json:"damping,omitempty"`

	// MaxIterations caps the power iteration. Zero means 20.
	MaxIterations int `json:"max_iterations,omitempty"`

	// Tolerance is the L1 convergence threshold. Zero means 1e-6.
	Tolerance float64 `json:"tolerance,omitempty"`

	// TopK truncates the ranked output. Zero returns every node.
	TopK int `json:"top_k,omitempty"`
}

// RankedNode is one PageRank entry with resolved identity.
type RankedNode struct {
	Label string  `json:"label"`
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// PageRankResponse is the ranked PageRank output.
type PageRankResponse struct {
	Nodes      []RankedNode `json:"nodes"`
	Iterations int          `json:"iterations"`
	Converged  bool         `json:"converged"`
	Delta      float64      `json:"delta"`
}

// CommunitiesRequest runs Louvain over a projection.
type CommunitiesRequest struct {
	Projection ProjectionRequest `json:"projection"`

	// MaxLevels caps aggregation levels. Zero means 10.
	MaxLevels int `json:"max_levels,omitempty"`

	// MaxSweeps caps local-move sweeps per level. Zero means 100.
	MaxSweeps int `json:"max_sweeps,omitempty"`
}

// Community is one detected community with resolved member identities.
type Community struct {
	ID      int      `json:"id"`
	Members []string `json:"members"`
}

// CommunitiesResponse is the Louvain output grouped by community.
type CommunitiesResponse struct {
	Communities []Community `json:"communities"`
	Modularity  float64     `json:"modularity"`
	Levels      int         `json:"levels"`
}

// SimilarityRequest runs Jaccard node similarity over a projection.
type SimilarityRequest struct {
	Projection ProjectionRequest `json:"projection"`

	// TopK truncates the ranked pair output. Zero returns every pair.
	TopK int `json:"top_k,omitempty"`
}

// SimilarPair is one scored pair with resolved identities.
type SimilarPair struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

// SimilarityResponse is the ranked similarity output.
type SimilarityResponse struct {
	Pairs       []SimilarPair `json:"pairs"`
	Comparisons int           `json:"comparisons"`
}

// AnalyticsRunRequest runs all three algorithms over one snapshot.
type AnalyticsRunRequest struct {
	Projection  ProjectionRequest   `json:"projection"`
	PageRank    *PageRankRequest    `json:"pagerank,omitempty"`
	Communities *CommunitiesRequest `json:"communities,omitempty"`
	Similarity  *SimilarityRequest  `json:"similarity,omitempty"`
}

// AnalyticsRunResponse bundles all three outputs from one snapshot.
type AnalyticsRunResponse struct {
	PageRank    PageRankResponse    `json:"pagerank"`
	Communities CommunitiesResponse `json:"communities"`
	Similarity  SimilarityResponse  `json:"similarity"`
}

// CitationResponse carries one formatted reference.
type CitationResponse struct {
	Citation string `json:"citation"`
}

// RelatedResponse carries semantic relatedness candidates.
type RelatedResponse struct {
	Candidates []semantic.Candidate `json:"candidates"`
}

// KeywordSuggestRequest asks for keyword suggestions for a work.
type KeywordSuggestRequest struct {
	Title string `json:"title" binding:"required"`
	Venue string `json:"venue,omitempty"`
	Year  int    `json:"year,omitempty"`
	Type  string `json:"type,omitempty"`
}

// KeywordSuggestResponse carries suggested keywords. Suggestions are
// advisory; nothing is written to the store.
type KeywordSuggestResponse struct {
	Keywords []string `json:"keywords"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the readiness check payload.
type ReadyResponse struct {
	Ready    bool `json:"ready"`
	Nodes    int  `json:"nodes"`
	Edges    int  `json:"edges"`
	Semantic bool `json:"semantic"`
	Neo4j    bool `json:"neo4j"`
}
