// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package neo4j mirrors the in-memory corpus graph into a Neo4j
// instance for ad-hoc Cypher exploration.
//
// The mirror is strictly write-behind and optional: the engine never
// reads it back, and every operation degrades to a logged warning when
// the instance is unreachable. MERGE semantics match the store's:
// node merges leave existing properties untouched, edge merges
// accumulate weight for the accumulating relationship types and no-op
// for the rest.
package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
)

// Config holds Neo4j connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	// MaxRetries bounds the backoff loop per operation.
	MaxRetries int

	// RetryBackoff is the base backoff, doubled per attempt.
	RetryBackoff time.Duration

	// MaxRetryBackoff caps the backoff.
	MaxRetryBackoff time.Duration

	// RetryJitter is the maximum jitter as a fraction of backoff (0-1).
	RetryJitter float64
}

// applyDefaults fills zero fields.
func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = "neo4j"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MaxRetryBackoff == 0 {
		c.MaxRetryBackoff = 10 * time.Second
	}
	if c.RetryJitter == 0 {
		c.RetryJitter = 0.2
	}
}

// Mirror pushes entities and relationships to Neo4j.
type Mirror struct {
	driver neo4j.DriverWithContext
	cfg    Config
	logger *slog.Logger
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Mirror, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	return &Mirror{driver: driver, cfg: cfg, logger: logger}, nil
}

// Close closes the Neo4j connection.
func (m *Mirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}

// MirrorEntity merges one node. Existing properties win, matching the
// store's upsert contract.
func (m *Mirror) MirrorEntity(ctx context.Context, label graph.Label, key string, attrs map[string]any) error {
	// Labels cannot be parameterized in Cypher; label.String() comes
	// from a closed enum so interpolation is safe.
	query := fmt.Sprintf(`
		MERGE (n:%s {key: $key})
		ON CREATE SET n += $attrs
	`, label.String())

	params := map[string]any{
		"key":   key,
		"attrs": flattenAttrs(attrs),
	}
	return m.write(ctx, "mirror entity", query, params)
}

// MirrorEdge merges one directed relationship.
//
// Accumulating types add delta to the stored weight on re-merge; the
// rest keep their original weight, mirroring Connect.
func (m *Mirror) MirrorEdge(ctx context.Context, sourceKey, targetKey string, relType graph.RelType, delta float64, order int) error {
	var onMatch string
	if relType.Accumulating() {
		onMatch = "ON MATCH SET r.weight = r.weight + $delta"
	} else {
		onMatch = ""
	}

	query := fmt.Sprintf(`
		MATCH (a {key: $source}), (b {key: $target})
		MERGE (a)-[r:%s]->(b)
		ON CREATE SET r.weight = $delta, r.order = $order
		%s
	`, relType.String(), onMatch)

	params := map[string]any{
		"source": sourceKey,
		"target": targetKey,
		"delta":  delta,
		"order":  order,
	}
	return m.write(ctx, "mirror edge", query, params)
}

// Sync pushes a full store export, overwriting edge weights with the
// store's exact values. Nodes and edges go in batched UNWIND statements.
func (m *Mirror) Sync(ctx context.Context, store *graph.Store) error {
	nodes, edges := store.Export()

	byLabel := make(map[graph.Label][]map[string]any)
	for _, n := range nodes {
		byLabel[n.Label] = append(byLabel[n.Label], map[string]any{
			"key":   n.Key,
			"attrs": flattenAttrs(n.Attrs),
		})
	}
	for label, rows := range byLabel {
		query := fmt.Sprintf(`
			UNWIND $rows AS row
			MERGE (n:%s {key: row.key})
			SET n += row.attrs
		`, label.String())
		if err := m.write(ctx, "sync nodes", query, map[string]any{"rows": rows}); err != nil {
			return err
		}
	}

	byType := make(map[graph.RelType][]map[string]any)
	for _, e := range edges {
		byType[e.Type] = append(byType[e.Type], map[string]any{
			"source": e.SourceKey,
			"target": e.TargetKey,
			"weight": e.Weight,
			"order":  e.Order,
		})
	}
	for relType, rows := range byType {
		query := fmt.Sprintf(`
			UNWIND $rows AS row
			MATCH (a {key: row.source}), (b {key: row.target})
			MERGE (a)-[r:%s]->(b)
			SET r.weight = row.weight, r.order = row.order
		`, relType.String())
		if err := m.write(ctx, "sync edges", query, map[string]any{"rows": rows}); err != nil {
			return err
		}
	}

	m.logger.Info("neo4j mirror synced", "nodes", len(nodes), "edges", len(edges))
	return nil
}

// write runs one Cypher write with retry.
func (m *Mirror) write(ctx context.Context, op, query string, params map[string]any) error {
	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := m.calculateBackoff(attempt - 1)
			m.logger.Warn("neo4j retry",
				"op", op, "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		session := m.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: m.cfg.Database})
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, params)
			return nil, err
		})
		session.Close(ctx)

		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, m.cfg.MaxRetries+1, lastErr)
}

// calculateBackoff returns exponential backoff with jitter.
func (m *Mirror) calculateBackoff(attempt int) time.Duration {
	backoff := m.cfg.RetryBackoff * time.Duration(1<<attempt)
	if backoff > m.cfg.MaxRetryBackoff {
		backoff = m.cfg.MaxRetryBackoff
	}

	jitterRange := float64(backoff) * m.cfg.RetryJitter
	jitter := (rand.Float64()*2 - 1) * jitterRange
	backoff = time.Duration(float64(backoff) + jitter)

	if backoff < 0 {
		backoff = m.cfg.RetryBackoff
	}
	return backoff
}

// flattenAttrs drops values Neo4j cannot store as properties.
func flattenAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
			out[k] = v
		default:
			// Nested structures are not mirrored
		}
	}
	return out
}
