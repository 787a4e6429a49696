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
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/Bibliograph/pkg/validation"
	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
)

// Handlers contains the HTTP handlers for the Bibliograph service.
type Handlers struct {
	svc *Service
	log *slog.Logger
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc, log: svc.logger}
}

func (h *Handlers) logger() *slog.Logger {
	return h.log
}

// fail writes the mapped error response.
func fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// HandleIngest handles POST /v1/corpus/ingest.
//
// Description:
//
//	Accepts a JSON array of works or an NDJSON stream and runs one
//	builder pass (upsert, connect, infer). The optional ?rules= query
//	parameter restricts inference to a comma-free repeated list, e.g.
//	?rules=shared_authors&rules=collaborations. rules=none skips
//	inference.
//
// Response:
//
//	200 OK: IngestResponse
//	400 Bad Request: Malformed input or unknown rule
func (h *Handlers) HandleIngest(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleIngest")

	rules, err := parseRulesParam(c.QueryArray("rules"))
	if err != nil {
		fail(c, logger, err)
		return
	}

	source := c.Query("source")
	if source == "" {
		source = "api"
	}

	batch, result, err := h.svc.Ingest(c.Request.Context(), c.Request.Body, source, rules)
	if err != nil {
		fail(c, logger, err)
		return
	}

	logger.Info("batch ingested", "batch", batch.ID, "works", result.Works)
	c.JSON(http.StatusOK, IngestResponse{
		BatchID:  batch.ID,
		Rejected: batch.Rejected,
		Result:   result,
	})
}

// parseRulesParam maps the rules query parameter onto builder rules.
// nil means the builder default (all rules); an empty non-nil slice
// skips inference.
func parseRulesParam(names []string) ([]graph.Rule, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if len(names) == 1 && names[0] == "none" {
		return []graph.Rule{}, nil
	}
	rules := make([]graph.Rule, 0, len(names))
	for _, name := range names {
		rule, err := graph.ParseRule(name)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// HandleCreateEntity handles POST /v1/corpus/entities.
//
// Response:
//
//	201 Created: EntityResponse
//	400 Bad Request: Validation error
//	409 Conflict: Key exists under a different label
func (h *Handlers) HandleCreateEntity(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleCreateEntity")

	var req EntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	label, err := graph.ParseLabel(req.Label)
	if err != nil {
		fail(c, logger, err)
		return
	}
	if err := validation.ValidateKey(req.Key); err != nil {
		logger.Warn("rejected entity key", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_KEY"})
		return
	}
	if _, err := h.svc.UpsertEntity(c.Request.Context(), label, req.Key, req.Attrs); err != nil {
		fail(c, logger, err)
		return
	}

	resp, err := h.svc.Entity(label, req.Key)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// HandleGetEntity handles GET /v1/corpus/entities/:label/:key.
//
// Response:
//
//	200 OK: EntityResponse
//	404 Not Found: No such entity
func (h *Handlers) HandleGetEntity(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleGetEntity")

	label, err := graph.ParseLabel(c.Param("label"))
	if err != nil {
		fail(c, logger, err)
		return
	}
	resp, err := h.svc.Entity(label, strings.TrimPrefix(c.Param("key"), "/"))
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleConnect handles POST /v1/corpus/connect.
//
// Description:
//
//	Creates or strengthens one relationship between entities resolved
//	by bare key. Accumulating types add the weight to the existing
//	edge; non-accumulating types keep the first weight.
//
// Response:
//
//	200 OK: empty body
//	404 Not Found: Unknown endpoint key
func (h *Handlers) HandleConnect(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleConnect")

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	relType, err := graph.ParseRelType(req.Type)
	if err != nil {
		fail(c, logger, err)
		return
	}
	if err := h.svc.Connect(c.Request.Context(), req.SourceKey, req.TargetKey, relType, req.Weight); err != nil {
		fail(c, logger, err)
		return
	}
	c.Status(http.StatusOK)
}

// HandleEdges handles GET /v1/corpus/edges.
//
// Query Parameters:
//
//	key - entity key (required)
//	type - relationship type name (required)
//	direction - out, in, or both (default out)
//
// Response:
//
//	200 OK: []EdgeResponse
func (h *Handlers) HandleEdges(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleEdges")

	var q EdgeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.Warn("invalid query", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "key and type query parameters are required", Code: "INVALID_REQUEST"})
		return
	}

	relType, err := graph.ParseRelType(q.Type)
	if err != nil {
		fail(c, logger, err)
		return
	}
	dir := graph.Outgoing
	switch q.Direction {
	case "", "out":
	case "in":
		dir = graph.Incoming
	case "both":
		dir = graph.Both
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "direction must be out, in, or both", Code: "INVALID_DIRECTION"})
		return
	}

	edges, err := h.svc.Edges(q.Key, relType, dir)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, edges)
}

// HandleInfer handles POST /v1/corpus/infer.
//
// Response:
//
//	200 OK: InferResponse
//	400 Bad Request: Unknown rule name
func (h *Handlers) HandleInfer(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleInfer")

	var req InferRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
			return
		}
	}

	summaries, err := h.svc.Infer(c.Request.Context(), req.Rules)
	if err != nil {
		fail(c, logger, err)
		return
	}

	logger.Info("inference completed", "rules", len(summaries))
	c.JSON(http.StatusOK, InferResponse{Summaries: summaries})
}

// HandlePageRank handles POST /v1/corpus/analytics/pagerank.
func (h *Handlers) HandlePageRank(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandlePageRank")

	var req PageRankRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
			return
		}
	}

	resp, err := h.svc.PageRank(c.Request.Context(), req)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleCommunities handles POST /v1/corpus/analytics/communities.
func (h *Handlers) HandleCommunities(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleCommunities")

	var req CommunitiesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
			return
		}
	}

	resp, err := h.svc.Communities(c.Request.Context(), req)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSimilarity handles POST /v1/corpus/analytics/similarity.
func (h *Handlers) HandleSimilarity(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleSimilarity")

	var req SimilarityRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
			return
		}
	}

	resp, err := h.svc.Similarity(c.Request.Context(), req)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleAnalyticsRun handles POST /v1/corpus/analytics/run.
//
// Description:
//
//	Runs PageRank, Louvain, and node similarity over one projection
//	snapshot so all three outputs describe the same graph state.
func (h *Handlers) HandleAnalyticsRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleAnalyticsRun")

	var req AnalyticsRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
			return
		}
	}

	resp, err := h.svc.RunAnalytics(c.Request.Context(), req)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/corpus/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, h.svc.Stats())
}

// HandleCitation handles GET /v1/corpus/citation/:label/:key.
//
// Response:
//
//	200 OK: CitationResponse
//	404 Not Found: No such entity
func (h *Handlers) HandleCitation(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleCitation")

	label, err := graph.ParseLabel(c.Param("label"))
	if err != nil {
		fail(c, logger, err)
		return
	}
	citation, err := h.svc.Citation(label, strings.TrimPrefix(c.Param("key"), "/"))
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, CitationResponse{Citation: citation})
}

// HandleRelated handles GET /v1/corpus/suggestions/related.
//
// Query Parameters:
//
//	query - free-text relatedness query (required)
//	k - maximum candidates (default 10)
//
// Response:
//
//	200 OK: RelatedResponse
//	503 Service Unavailable: Semantic index not configured
func (h *Handlers) HandleRelated(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleRelated")

	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query parameter is required", Code: "INVALID_REQUEST"})
		return
	}
	k := 10
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "k must be a positive integer", Code: "INVALID_REQUEST"})
			return
		}
		k = parsed
	}

	candidates, err := h.svc.Related(c.Request.Context(), query, k)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, RelatedResponse{Candidates: candidates})
}

// HandleSuggestKeywords handles POST /v1/corpus/suggestions/keywords.
//
// Response:
//
//	200 OK: KeywordSuggestResponse
//	503 Service Unavailable: Enrichment not configured
func (h *Handlers) HandleSuggestKeywords(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleSuggestKeywords")

	var req KeywordSuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	keywords, err := h.svc.SuggestKeywords(c.Request.Context(), req)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, KeywordSuggestResponse{Keywords: keywords})
}

// HandleHealth handles GET /v1/corpus/health. Always 200 if running.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/corpus/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	stats := h.svc.Stats()
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:    true,
		Nodes:    stats.Nodes,
		Edges:    stats.Edges,
		Semantic: h.svc.semantic != nil,
		Neo4j:    h.svc.mirror != nil,
	})
}
