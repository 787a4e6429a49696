// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest watches a drop directory for bibliographic record
// files and delivers decoded batches to a handler.
//
// # Drop directory contract
//
// Files ending in .json or .ndjson dropped into the watched directory
// are decoded with record.DecodeWorks once writes settle. Successfully
// ingested files move to a processed/ subdirectory; files that fail to
// decode move to failed/. Subdirectories are not watched.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/Bibliograph/services/scholar/record"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Handler receives each decoded batch. A non-nil error marks the
// source file as failed.
type Handler func(ctx context.Context, batch *record.Batch) error

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait after the last event on a file
	// before ingesting it. Default: 1s.
	Debounce time.Duration

	// Extensions are the file suffixes to ingest. Default: .json,
	// .ndjson.
	Extensions []string

	// BufferSize is the event channel capacity. Default: 256.
	BufferSize int
}

// DefaultOptions returns the drop-directory defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:   time.Second,
		Extensions: []string{".json", ".ndjson"},
		BufferSize: 256,
	}
}

// Watcher watches one directory for record files with debouncing.
//
// Thread Safety: safe for concurrent use. The handler is called from a
// single goroutine, one file at a time.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	exts     []string
	logger   *slog.Logger

	events   chan string
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a watcher over dir. Call Start to begin watching.
func NewWatcher(dir string, handler Handler, logger *slog.Logger, opts *Options) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("ingest: watch directory is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("ingest: handler is required")
	}
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".json", ".ndjson"}
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("ingest: create watcher: %w", err)
	}

	return &Watcher{
		dir:      dir,
		watcher:  fw,
		handler:  handler,
		debounce: opts.Debounce,
		exts:     opts.Extensions,
		logger:   logger,
		events:   make(chan string, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Files already present in the directory are
// ingested first, so a backlog left from downtime is not lost. Both
// goroutines exit when Stop is called or ctx is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	for _, sub := range []string{processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0750); err != nil {
			return fmt.Errorf("ingest: create %s dir: %w", sub, err)
		}
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("ingest: watch %s: %w", w.dir, err)
	}

	backlog, err := w.listBacklog()
	if err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx, backlog)

	w.logger.Info("watching drop directory", "dir", w.dir, "backlog", len(backlog))
	return nil
}

// Stop stops the watcher. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// listBacklog returns ingestable files already in the directory.
func (w *Watcher) listBacklog() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", w.dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if w.shouldIngest(path) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// shouldIngest checks the extension filter.
func (w *Watcher) shouldIngest(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range w.exts {
		if ext == want {
			return true
		}
	}
	return false
}

// processEvents funnels create and write events into the debounce
// channel.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.shouldIngest(event.Name) {
				continue
			}
			select {
			case w.events <- event.Name:
			default:
				w.logger.Warn("event buffer full, dropping", "path", event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

// debounceLoop collects touched paths and ingests each once its
// debounce window has passed without further events.
func (w *Watcher) debounceLoop(ctx context.Context, backlog []string) {
	pending := make(map[string]time.Time)
	now := time.Now()
	for _, path := range backlog {
		pending[path] = now.Add(-w.debounce)
	}

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.events:
			pending[path] = time.Now()
		case <-ticker.C:
			cutoff := time.Now().Add(-w.debounce)
			for path, last := range pending {
				if last.After(cutoff) {
					continue
				}
				delete(pending, path)
				w.ingest(ctx, path)
			}
		}
	}
}

// ingest decodes one file, hands the batch off, and files the source
// under processed/ or failed/.
func (w *Watcher) ingest(ctx context.Context, path string) {
	batch, err := IngestFile(path)
	if err != nil {
		w.logger.Error("ingest failed", "path", path, "error", err)
		w.file(path, failedDir)
		return
	}
	if err := w.handler(ctx, batch); err != nil {
		w.logger.Error("batch handler failed", "path", path, "batch", batch.ID, "error", err)
		w.file(path, failedDir)
		return
	}
	w.logger.Info("ingested file",
		"path", path, "batch", batch.ID,
		"works", len(batch.Works), "rejected", batch.Rejected)
	w.file(path, processedDir)
}

// file moves a drop file into a status subdirectory, timestamping the
// name to avoid collisions with redrops.
func (w *Watcher) file(path, sub string) {
	name := fmt.Sprintf("%s.%d", filepath.Base(path), time.Now().UnixNano())
	dst := filepath.Join(w.dir, sub, name)
	if err := os.Rename(path, dst); err != nil {
		w.logger.Warn("could not move drop file", "path", path, "error", err)
	}
}

// IngestFile decodes one record file into a batch. Shared with the CLI
// ingest command.
func IngestFile(path string) (*record.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()
	batch, err := record.DecodeWorks(f, path)
	if err != nil {
		return nil, fmt.Errorf("ingest: decode %s: %w", path, err)
	}
	return batch, nil
}
