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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/Bibliograph/services/scholar/telemetry"
)

// RouterOptions tunes the HTTP surface.
type RouterOptions struct {
	// IngestRatePerSecond limits POST /v1/corpus/ingest. Zero disables
	// the limiter.
	IngestRatePerSecond float64

	// IngestBurst is the limiter burst. Zero means 1.
	IngestBurst int
}

// NewRouter builds the gin engine with tracing, recovery, and the full
// route table.
func NewRouter(h *Handlers, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("scholar"))

	RegisterRoutes(router.Group("/v1"), h, opts)

	router.GET("/metrics", func(c *gin.Context) {
		handler := telemetry.MetricsHandler()
		if handler == nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "metrics exporter not configured", Code: "METRICS_DISABLED"})
			return
		}
		handler.ServeHTTP(c.Writer, c.Request)
	})

	return router
}

// RegisterRoutes registers all corpus routes with the router group.
//
// Core Endpoints:
//
//	POST /v1/corpus/ingest - Ingest a batch of works
//	POST /v1/corpus/entities - Create or update an entity
//	GET  /v1/corpus/entities/:label/:key - Get an entity
//	POST /v1/corpus/connect - Create or strengthen a relationship
//	GET  /v1/corpus/edges - List adjacency of an entity
//	POST /v1/corpus/infer - Run inference rules
//
// Analytics Endpoints:
//
//	POST /v1/corpus/analytics/pagerank - PageRank over a projection
//	POST /v1/corpus/analytics/communities - Louvain community detection
//	POST /v1/corpus/analytics/similarity - Jaccard node similarity
//	POST /v1/corpus/analytics/run - All three over one snapshot
//
// Query Endpoints:
//
//	GET /v1/corpus/stats - Store counts
//	GET /v1/corpus/citation/:label/:key - APA reference
//	GET /v1/corpus/suggestions/related - Semantic relatedness candidates
//	POST /v1/corpus/suggestions/keywords - Keyword suggestions
//	GET /v1/corpus/events - Websocket event stream
//
// Health Endpoints:
//
//	GET /v1/corpus/health - Health check
//	GET /v1/corpus/ready - Readiness check
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers, opts RouterOptions) {
	corpus := rg.Group("/corpus")
	{
		ingest := corpus.Group("")
		if opts.IngestRatePerSecond > 0 {
			burst := opts.IngestBurst
			if burst <= 0 {
				burst = 1
			}
			ingest.Use(rateLimit(rate.NewLimiter(rate.Limit(opts.IngestRatePerSecond), burst)))
		}
		ingest.POST("/ingest", h.HandleIngest)

		corpus.POST("/entities", h.HandleCreateEntity)
		// Keys are DOIs and may contain slashes, so the key segment is a
		// wildcard.
		corpus.GET("/entities/:label/*key", h.HandleGetEntity)
		corpus.POST("/connect", h.HandleConnect)
		corpus.GET("/edges", h.HandleEdges)
		corpus.POST("/infer", h.HandleInfer)

		analytics := corpus.Group("/analytics")
		{
			analytics.POST("/pagerank", h.HandlePageRank)
			analytics.POST("/communities", h.HandleCommunities)
			analytics.POST("/similarity", h.HandleSimilarity)
			analytics.POST("/run", h.HandleAnalyticsRun)
		}

		corpus.GET("/stats", h.HandleStats)
		corpus.GET("/citation/:label/*key", h.HandleCitation)

		suggestions := corpus.Group("/suggestions")
		{
			suggestions.GET("/related", h.HandleRelated)
			suggestions.POST("/keywords", h.HandleSuggestKeywords)
		}

		corpus.GET("/events", h.HandleEvents)

		corpus.GET("/health", h.HandleHealth)
		corpus.GET("/ready", h.HandleReady)
	}
}

// rateLimit rejects requests above the configured rate with 429.
func rateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "ingest rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
