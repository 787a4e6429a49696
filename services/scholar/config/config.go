// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the scholar service configuration.
//
// Configuration is loaded from a YAML file and validated with
// go-playground/validator. Secrets (the Neo4j password, the OpenAI API
// key) are never stored in plain struct fields; they are resolved from
// the environment into memguard enclaves at load time (see secret.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// configValidate is the package-level validator instance.
//
// validator instances cache struct metadata so a single shared instance
// is the recommended usage.
var configValidate = validator.New()

// Config is the top-level scholar service configuration.
//
// A zero value is not usable; start from DefaultConfig and overlay the
// YAML file. All fields carry validate tags checked by Validate.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	Semantic  SemanticConfig  `yaml:"semantic"`
	Enrich    EnrichConfig    `yaml:"enrich"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Host is the bind address. Empty binds all interfaces.
	Host string `yaml:"host"`

	// Port is the listen port.
	Port int `yaml:"port" validate:"required,gt=0,lte=65535"`

	// ReadTimeout bounds request header+body reads.
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`

	// IngestRatePerSecond limits POST /v1/corpus/ingest requests.
	IngestRatePerSecond float64 `yaml:"ingest_rate_per_second" validate:"gt=0"`

	// IngestBurst is the rate limiter burst size.
	IngestBurst int `yaml:"ingest_burst" validate:"gt=0"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Dir enables file logging when set. Supports ~ expansion.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// StorageConfig configures the badger-backed snapshot store.
type StorageConfig struct {
	// DataDir is the root data directory. The badger store and the
	// writer lock live under it.
	DataDir string `yaml:"data_dir" validate:"required"`

	// InMemory runs badger without disk persistence (tests, demos).
	InMemory bool `yaml:"in_memory"`

	// SyncWrites forces fsync on every commit.
	SyncWrites bool `yaml:"sync_writes"`

	// GCInterval is how often the value-log GC runs. Zero disables it.
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`

	// GCDiscardRatio is passed to badger's RunValueLogGC.
	GCDiscardRatio float64 `yaml:"gc_discard_ratio" validate:"gte=0,lte=1"`
}

// ExpandedDataDir returns DataDir with a leading ~ expanded to the
// user's home directory.
func (c StorageConfig) ExpandedDataDir() string {
	return ExpandPath(c.DataDir)
}

// ExpandPath expands a leading ~ to the user's home directory. Paths
// that do not start with ~ are returned unchanged.
func ExpandPath(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// IngestConfig configures the drop-directory watcher.
type IngestConfig struct {
	// WatchDir is the directory watched for new record files.
	// Empty disables the watcher.
	WatchDir string `yaml:"watch_dir"`

	// Debounce is how long a file must be quiet before it is ingested.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`

	// Rules are the inference rule names run after each ingest.
	Rules []string `yaml:"rules" validate:"dive,oneof=shared_authors shared_keywords collaborations citation_candidates"`
}

// TelemetryConfig configures tracing, metrics and the analytics sink.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC collector address (host:port).
	// Empty disables OTLP export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// StdoutTrace dumps spans to stdout (development).
	StdoutTrace bool `yaml:"stdout_trace"`

	// Prometheus exposes /metrics when true.
	Prometheus bool `yaml:"prometheus"`

	// SampleRatio is the trace sampling ratio.
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`

	// Influx configures the optional analytics-run sink.
	Influx InfluxConfig `yaml:"influx"`
}

// InfluxConfig configures the InfluxDB analytics-run sink.
//
// All fields must be set for the sink to be enabled.
type InfluxConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether the sink is fully configured.
func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Org != "" && c.Bucket != ""
}

// Neo4jConfig configures the optional Neo4j mirror.
//
// The password is NOT part of this struct. It is read from
// BIBLIOGRAPH_NEO4J_PASSWORD into a memguard enclave at load time.
type Neo4jConfig struct {
	// URI is the bolt/neo4j connection URI. Empty disables the mirror.
	URI string `yaml:"uri"`

	// Username for basic auth.
	Username string `yaml:"username"`

	// MaxRetries bounds the mirror's backoff loop.
	MaxRetries int `yaml:"max_retries" validate:"gte=0,lte=10"`
}

// Enabled reports whether the mirror is configured.
func (c Neo4jConfig) Enabled() bool {
	return c.URI != ""
}

// SemanticConfig configures the optional Weaviate relatedness index.
type SemanticConfig struct {
	// Host is the weaviate host (host:port). Empty disables the index.
	Host string `yaml:"host"`

	// Scheme is "http" or "https".
	Scheme string `yaml:"scheme" validate:"omitempty,oneof=http https"`

	// ClassName is the weaviate class holding indexed works.
	ClassName string `yaml:"class_name"`
}

// Enabled reports whether the semantic index is configured.
func (c SemanticConfig) Enabled() bool {
	return c.Host != ""
}

// EnrichConfig configures the optional OpenAI keyword suggester.
//
// The API key is read from BIBLIOGRAPH_OPENAI_API_KEY into a memguard
// enclave at load time, never into this struct.
type EnrichConfig struct {
	// Enabled turns the suggester on. Requires the API key env var.
	Enabled bool `yaml:"enabled"`

	// Model is the chat-completion model name.
	Model string `yaml:"model"`

	// MaxKeywords bounds suggestions per work.
	MaxKeywords int `yaml:"max_keywords" validate:"gte=0,lte=25"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:                "",
			Port:                8085,
			ReadTimeout:         30 * time.Second,
			ShutdownTimeout:     10 * time.Second,
			IngestRatePerSecond: 5,
			IngestBurst:         10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			DataDir:        "~/.bibliograph/data",
			GCInterval:     5 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Ingest: IngestConfig{
			Debounce: 2 * time.Second,
			Rules:    []string{"shared_authors", "shared_keywords"},
		},
		Telemetry: TelemetryConfig{
			Prometheus:  true,
			SampleRatio: 1.0,
		},
		Neo4j: Neo4jConfig{
			Username:   "neo4j",
			MaxRetries: 3,
		},
		Semantic: SemanticConfig{
			Scheme:    "http",
			ClassName: "BibliographWork",
		},
		Enrich: EnrichConfig{
			Model:       "gpt-4o-mini",
			MaxKeywords: 8,
		},
	}
}

// Load reads the YAML file at path, overlays it on DefaultConfig,
// resolves secrets from the environment and validates the result.
//
// A missing file is not an error; defaults are returned. A present but
// malformed or invalid file is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	LoadSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against the validate tags plus a
// few cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Neo4j.Enabled() && !HasNeo4jPassword() {
		return fmt.Errorf("neo4j mirror configured but %s is not set", EnvNeo4jPassword)
	}
	if c.Enrich.Enabled && !HasOpenAIKey() {
		return fmt.Errorf("enrichment enabled but %s is not set", EnvOpenAIKey)
	}
	if c.Telemetry.Influx.Enabled() && !HasInfluxToken() {
		return fmt.Errorf("influx sink configured but %s is not set", EnvInfluxToken)
	}
	return nil
}
