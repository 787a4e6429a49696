// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Telemetry.Prometheus)
	assert.False(t, cfg.Neo4j.Enabled())
	assert.False(t, cfg.Semantic.Enabled())
	assert.False(t, cfg.Enrich.Enabled)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bibliograph.yaml")
	data := `
server:
  port: 9100
  ingest_rate_per_second: 2
  ingest_burst: 4
logging:
  level: debug
ingest:
  debounce: 500ms
  rules: [shared_authors, citation_candidates]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 500*time.Millisecond, cfg.Ingest.Debounce)
	assert.Equal(t, []string{"shared_authors", "citation_candidates"}, cfg.Ingest.Rules)

	// Fields absent from the file keep their defaults
	assert.Equal(t, "~/.bibliograph/data", cfg.Storage.DataDir)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"empty data dir", func(c *Config) { c.Storage.DataDir = "" }},
		{"gc ratio above one", func(c *Config) { c.Storage.GCDiscardRatio = 1.5 }},
		{"unknown rule", func(c *Config) { c.Ingest.Rules = []string{"psychic"} }},
		{"bad scheme", func(c *Config) { c.Semantic.Scheme = "gopher" }},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_Neo4jRequiresPassword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Neo4j.URI = "bolt://localhost:7687"

	if HasNeo4jPassword() {
		t.Skip("password enclave already populated by another test")
	}
	assert.Error(t, cfg.Validate())

	SetSecret(EnvNeo4jPassword, "s3cret")
	assert.NoError(t, cfg.Validate())
}

func TestWithSecret_RoundTrip(t *testing.T) {
	SetSecret(EnvOpenAIKey, "sk-test-123")

	var got string
	err := WithOpenAIKey(func(key string) error {
		got = key
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", got)

	// Enclave is re-sealed, a second open must still work
	err = WithOpenAIKey(func(key string) error {
		assert.Equal(t, "sk-test-123", key)
		return nil
	})
	require.NoError(t, err)
}

func TestWithSecret_Missing(t *testing.T) {
	err := withSecret("BIBLIOGRAPH_NO_SUCH_SECRET", func(string) error { return nil })
	assert.Error(t, err)
}
