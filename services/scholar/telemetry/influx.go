// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
)

// AnalyticsSink records combined analytics-run summaries as time-series
// points in InfluxDB. One point per run, tagged with the projection
// label, so ranking convergence and community structure can be graphed
// over the life of a corpus.
//
// The sink is optional. A nil *AnalyticsSink is safe to use; Record
// becomes a no-op.
type AnalyticsSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewAnalyticsSink connects to InfluxDB.
//
// The token commonly comes from INFLUXDB_TOKEN; the caller resolves it
// so this package never touches the environment.
func NewAnalyticsSink(url, token, org, bucket string) *AnalyticsSink {
	client := influxdb2.NewClient(url, token)
	return &AnalyticsSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

// Record writes one summary point for a combined analytics run.
func (s *AnalyticsSink) Record(ctx context.Context, label string, p *graph.Projection, result *graph.AnalyticsResult) error {
	if s == nil {
		return nil
	}

	fields := map[string]interface{}{
		"nodes": p.NodeCount(),
		"arcs":  p.ArcCount(),
	}
	if result.PageRank != nil {
		fields["pagerank_iterations"] = result.PageRank.Iterations
		fields["pagerank_converged"] = result.PageRank.Converged
		fields["pagerank_delta"] = result.PageRank.Delta
	}
	if result.Louvain != nil {
		fields["communities"] = result.Louvain.CommunityCount
		fields["modularity"] = result.Louvain.Modularity
		fields["louvain_levels"] = result.Louvain.Levels
	}
	if result.Similarity != nil {
		fields["similarity_pairs"] = len(result.Similarity.Pairs)
		fields["similarity_comparisons"] = result.Similarity.Comparisons
	}

	point := influxdb2.NewPoint(
		"analytics_run",
		map[string]string{"label": label},
		fields,
		time.Now(),
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write analytics point: %w", err)
	}
	slog.Debug("analytics run recorded", "label", label, "fields", len(fields))
	return nil
}

// Close releases the underlying HTTP client.
func (s *AnalyticsSink) Close() {
	if s == nil {
		return
	}
	s.client.Close()
}
