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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph engine operations.
var (
	tracer = otel.Tracer("bibliograph.graph")
	meter  = otel.Meter("bibliograph.graph")
)

// Metrics for inference, projection, and analytics runs.
var (
	inferLatency     metric.Float64Histogram
	inferEdges       metric.Int64Histogram
	projectLatency   metric.Float64Histogram
	algorithmLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metric instruments. Safe to call repeatedly.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		inferLatency, err = meter.Float64Histogram(
			"graph_inference_duration_seconds",
			metric.WithDescription("Duration of one inference rule pass"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		inferEdges, err = meter.Int64Histogram(
			"graph_inference_edges",
			metric.WithDescription("Edges created or strengthened per inference pass"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		projectLatency, err = meter.Float64Histogram(
			"graph_projection_duration_seconds",
			metric.WithDescription("Duration of projection builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		algorithmLatency, err = meter.Float64Histogram(
			"graph_algorithm_duration_seconds",
			metric.WithDescription("Duration of analytics algorithm runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordInferenceMetrics records one inference rule pass.
func recordInferenceMetrics(ctx context.Context, rule string, duration time.Duration, created, strengthened int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("rule", rule))
	inferLatency.Record(ctx, duration.Seconds(), attrs)
	inferEdges.Record(ctx, int64(created+strengthened), attrs)
}

// recordAlgorithmMetrics records one analytics algorithm run.
func recordAlgorithmMetrics(ctx context.Context, algorithm string, duration time.Duration, converged bool) {
	if err := initMetrics(); err != nil {
		return
	}
	algorithmLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("algorithm", algorithm),
			attribute.Bool("converged", converged),
		),
	)
}

// startAlgorithmSpan creates a span for an analytics algorithm over a
// projection.
func startAlgorithmSpan(ctx context.Context, name string, p *Projection) (context.Context, trace.Span) {
	nodes, arcs := 0, 0
	if p != nil {
		nodes, arcs = p.NodeCount(), p.ArcCount()
	}
	return tracer.Start(ctx, "graph."+name,
		trace.WithAttributes(
			attribute.Int("graph.node_count", nodes),
			attribute.Int("graph.arc_count", arcs),
		),
	)
}

// setConvergenceSpanResult sets the shared result attributes of iterative
// algorithm spans.
func setConvergenceSpanResult(span trace.Span, iterations int, converged bool) {
	span.SetAttributes(
		attribute.Int("graph.iterations", iterations),
		attribute.Bool("graph.converged", converged),
	)
}
