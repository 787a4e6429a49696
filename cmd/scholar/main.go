// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command scholar starts the Bibliograph API server.
//
// The server keeps the corpus graph in memory, restores it from the
// badger snapshot at startup, and saves it back on shutdown.
//
// Usage:
//
//	go run ./cmd/scholar
//	go run ./cmd/scholar -config ~/.bibliograph/config.yaml
//	go run ./cmd/scholar -port 9090 -debug
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8085/v1/corpus/health
//
//	# Ingest a batch of works
//	curl -X POST http://localhost:8085/v1/corpus/ingest \
//	  -H "Content-Type: application/json" \
//	  --data-binary @works.json
//
//	# Run all analytics over one snapshot
//	curl -X POST http://localhost:8085/v1/corpus/analytics/run \
//	  -H "Content-Type: application/json" \
//	  -d '{"projection": {"types": ["SHARES_AUTHOR"], "weighted": true}}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Bibliograph/pkg/logging"
	"github.com/AleutianAI/Bibliograph/services/scholar"
	"github.com/AleutianAI/Bibliograph/services/scholar/config"
	"github.com/AleutianAI/Bibliograph/services/scholar/enrich"
	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
	"github.com/AleutianAI/Bibliograph/services/scholar/ingest"
	"github.com/AleutianAI/Bibliograph/services/scholar/record"
	"github.com/AleutianAI/Bibliograph/services/scholar/semantic"
	badgerstore "github.com/AleutianAI/Bibliograph/services/scholar/storage/badger"
	"github.com/AleutianAI/Bibliograph/services/scholar/storage/lock"
	"github.com/AleutianAI/Bibliograph/services/scholar/storage/neo4j"
	"github.com/AleutianAI/Bibliograph/services/scholar/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to the yaml config file")
	port := flag.Int("port", 0, "Override the configured listen port")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if err := run(*configPath, *port, *debug); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, portOverride int, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "scholar",
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()
	log := logger.Slog()
	slog.SetDefault(log)

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	dataDir := cfg.Storage.ExpandedDataDir()

	var dirLock *lock.Lock
	if !cfg.Storage.InMemory {
		dirLock, err = lock.Acquire(dataDir)
		if err != nil {
			return fmt.Errorf("acquire data lock: %w", err)
		}
		defer func() {
			if err := dirLock.Release(); err != nil {
				log.Warn("lock release failed", "error", err)
			}
		}()
	}

	db, store, err := openStore(ctx, cfg, dataDir, log)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := scholar.NewService(store, log)
	cleanup, err := attachCollaborators(ctx, cfg, svc, log)
	if err != nil {
		return err
	}
	defer cleanup()

	watcher, err := startWatcher(ctx, cfg, svc, log)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	router := scholar.NewRouter(scholar.NewHandlers(svc), scholar.RouterOptions{
		IngestRatePerSecond: cfg.Server.IngestRatePerSecond,
		IngestBurst:         cfg.Server.IngestBurst,
	})

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting Bibliograph server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", "error", err)
	}

	if !cfg.Storage.InMemory {
		if err := badgerstore.SaveSnapshot(shutdownCtx, db, store); err != nil {
			log.Error("snapshot save failed", "error", err)
		} else {
			stats := store.Stats()
			log.Info("snapshot saved", "nodes", stats.Nodes, "edges", stats.Edges)
		}
	}

	config.PurgeSecrets()
	return nil
}

// telemetryConfig maps the service config onto the telemetry package.
func telemetryConfig(cfg *config.Config) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceName = "scholar"
	tc.ServiceVersion = scholar.ServiceVersion
	tc.SampleRatio = cfg.Telemetry.SampleRatio

	tc.TraceExporter = "none"
	if cfg.Telemetry.OTLPEndpoint != "" {
		tc.TraceExporter = "otlp"
		tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
		tc.OTLPInsecure = true
	} else if cfg.Telemetry.StdoutTrace {
		tc.TraceExporter = "stdout"
	}

	tc.MetricExporter = "none"
	if cfg.Telemetry.Prometheus {
		tc.MetricExporter = "prometheus"
	}
	return tc
}

// openStore opens badger and restores the last snapshot, or starts an
// empty store when none exists.
func openStore(ctx context.Context, cfg *config.Config, dataDir string, log *slog.Logger) (*badgerstore.DB, *graph.Store, error) {
	bcfg := badgerstore.DefaultConfig()
	bcfg.Path = dataDir
	bcfg.InMemory = cfg.Storage.InMemory
	bcfg.SyncWrites = cfg.Storage.SyncWrites
	bcfg.GCInterval = cfg.Storage.GCInterval
	bcfg.GCDiscardRatio = cfg.Storage.GCDiscardRatio
	bcfg.Logger = log

	db, err := badgerstore.OpenDB(bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	store, err := badgerstore.LoadSnapshot(ctx, db)
	if err != nil {
		if !errors.Is(err, badgerstore.ErrNoSnapshot) {
			db.Close()
			return nil, nil, fmt.Errorf("load snapshot: %w", err)
		}
		store = graph.NewStore()
		log.Info("no snapshot found, starting empty")
	} else {
		stats := store.Stats()
		log.Info("snapshot restored", "nodes", stats.Nodes, "edges", stats.Edges)
	}
	return db, store, nil
}

// attachCollaborators wires the optional Neo4j mirror, semantic index,
// keyword suggester, and analytics sink onto the service. The returned
// cleanup closes whatever was attached.
func attachCollaborators(ctx context.Context, cfg *config.Config, svc *scholar.Service, log *slog.Logger) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Neo4j.Enabled() {
		var mirror *neo4j.Mirror
		err := config.WithNeo4jPassword(func(password string) error {
			var merr error
			mirror, merr = neo4j.New(ctx, neo4j.Config{
				URI:        cfg.Neo4j.URI,
				Username:   cfg.Neo4j.Username,
				Password:   password,
				MaxRetries: cfg.Neo4j.MaxRetries,
			}, log)
			return merr
		})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("connect neo4j mirror: %w", err)
		}
		svc.WithMirror(mirror)
		closers = append(closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mirror.Close(closeCtx)
		})
		log.Info("neo4j mirror enabled", "uri", cfg.Neo4j.URI)
	}

	if cfg.Semantic.Enabled() {
		idx, err := semantic.New(semantic.Config{
			Host:      cfg.Semantic.Host,
			Scheme:    cfg.Semantic.Scheme,
			ClassName: cfg.Semantic.ClassName,
		}, log)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create semantic index: %w", err)
		}
		if err := idx.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, fmt.Errorf("ensure semantic schema: %w", err)
		}
		svc.WithSemantic(idx)
		log.Info("semantic index enabled", "host", cfg.Semantic.Host)
	}

	if cfg.Enrich.Enabled {
		var suggester *enrich.Suggester
		err := config.WithOpenAIKey(func(key string) error {
			var serr error
			suggester, serr = enrich.NewSuggester(key, cfg.Enrich.Model, cfg.Enrich.MaxKeywords, log)
			return serr
		})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create keyword suggester: %w", err)
		}
		svc.WithSuggester(suggester)
		log.Info("keyword enrichment enabled", "model", cfg.Enrich.Model)
	}

	if cfg.Telemetry.Influx.Enabled() {
		var sink *telemetry.AnalyticsSink
		err := config.WithInfluxToken(func(token string) error {
			sink = telemetry.NewAnalyticsSink(
				cfg.Telemetry.Influx.URL, token,
				cfg.Telemetry.Influx.Org, cfg.Telemetry.Influx.Bucket)
			return nil
		})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create analytics sink: %w", err)
		}
		svc.WithAnalyticsSink(sink)
		closers = append(closers, sink.Close)
		log.Info("influx analytics sink enabled", "url", cfg.Telemetry.Influx.URL)
	}

	return cleanup, nil
}

// startWatcher starts the drop-directory watcher when configured.
func startWatcher(ctx context.Context, cfg *config.Config, svc *scholar.Service, log *slog.Logger) (*ingest.Watcher, error) {
	if cfg.Ingest.WatchDir == "" {
		return nil, nil
	}

	rules, err := ingestRules(cfg.Ingest.Rules)
	if err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, batch *record.Batch) error {
		_, err := svc.IngestBatch(ctx, batch, rules)
		return err
	}

	watcher, err := ingest.NewWatcher(
		config.ExpandPath(cfg.Ingest.WatchDir), handler, log,
		&ingest.Options{Debounce: cfg.Ingest.Debounce})
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	return watcher, nil
}

// ingestRules maps configured rule names to builder rules. nil means
// the builder default.
func ingestRules(names []string) ([]graph.Rule, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rules := make([]graph.Rule, 0, len(names))
	for _, name := range names {
		rule, err := graph.ParseRule(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, name)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
