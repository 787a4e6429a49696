// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package neo4j

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{URI: "bolt://localhost:7687"}
	cfg.applyDefaults()

	assert.Equal(t, "neo4j", cfg.Database)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, 10*time.Second, cfg.MaxRetryBackoff)
	assert.InDelta(t, 0.2, cfg.RetryJitter, 1e-9)
}

func TestCalculateBackoff_Bounds(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	m := &Mirror{cfg: cfg}

	for attempt := 0; attempt < 12; attempt++ {
		b := m.calculateBackoff(attempt)
		assert.Greater(t, b, time.Duration(0), "attempt %d", attempt)
		// Cap plus the jitter margin
		max := time.Duration(float64(cfg.MaxRetryBackoff) * (1 + cfg.RetryJitter))
		assert.LessOrEqual(t, b, max, "attempt %d", attempt)
	}
}

func TestFlattenAttrs(t *testing.T) {
	out := flattenAttrs(map[string]any{
		"title":    "Weighted projections",
		"year":     2021,
		"cited":    int64(12),
		"score":    0.5,
		"flagged":  true,
		"nested":   map[string]any{"drop": "me"},
		"keywords": []string{"drop", "me", "too"},
	})

	assert.Equal(t, "Weighted projections", out["title"])
	assert.Equal(t, 2021, out["year"])
	assert.Equal(t, int64(12), out["cited"])
	assert.Equal(t, 0.5, out["score"])
	assert.Equal(t, true, out["flagged"])
	assert.NotContains(t, out, "nested")
	assert.NotContains(t, out, "keywords")
}

func TestFlattenAttrs_Nil(t *testing.T) {
	out := flattenAttrs(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
