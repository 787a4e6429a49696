// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Bibliograph/services/scholar/record"
)

const sampleWorks = `[
  {"title": "Graph Engines", "publication_year": 2020},
  {"title": "Citation Analysis", "publication_year": 2021}
]`

// batchCollector records handled batches for assertions.
type batchCollector struct {
	mu      sync.Mutex
	batches []*record.Batch
	fail    bool
}

func (c *batchCollector) handle(_ context.Context, b *record.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("boom")
	}
	c.batches = append(c.batches, b)
	return nil
}

func (c *batchCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestWatcher(t *testing.T, dir string, c *batchCollector) *Watcher {
	t.Helper()
	w, err := NewWatcher(dir, c.handle, nil, &Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	return w
}

func TestNewWatcher_Validation(t *testing.T) {
	c := &batchCollector{}
	_, err := NewWatcher("", c.handle, nil, nil)
	require.Error(t, err)
	_, err = NewWatcher(t.TempDir(), nil, nil, nil)
	require.Error(t, err)
}

func TestWatcher_IngestsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	c := &batchCollector{}
	w := newTestWatcher(t, dir, c)
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsWatching())

	path := filepath.Join(dir, "works.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleWorks), 0600))

	waitFor(t, func() bool { return c.count() == 1 })
	c.mu.Lock()
	batch := c.batches[0]
	c.mu.Unlock()
	assert.Len(t, batch.Works, 2)
	assert.Equal(t, path, batch.Source)

	waitFor(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	})
	moved, err := filepath.Glob(filepath.Join(dir, processedDir, "works.json.*"))
	require.NoError(t, err)
	assert.Len(t, moved, 1)
}

func TestWatcher_IngestsBacklog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backlog.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(`{"title": "Old Drop"}`), 0600))

	c := &batchCollector{}
	w := newTestWatcher(t, dir, c)
	require.NoError(t, w.Start(context.Background()))

	waitFor(t, func() bool { return c.count() == 1 })
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	c := &batchCollector{}
	w := newTestWatcher(t, dir, c)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "works.json"), []byte(sampleWorks), 0600))

	waitFor(t, func() bool { return c.count() == 1 })
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestWatcher_FilesFailures(t *testing.T) {
	dir := t.TempDir()
	c := &batchCollector{}
	w := newTestWatcher(t, dir, c)
	require.NoError(t, w.Start(context.Background()))

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	waitFor(t, func() bool {
		moved, _ := filepath.Glob(filepath.Join(dir, failedDir, "bad.json.*"))
		return len(moved) == 1
	})
	assert.Equal(t, 0, c.count())
}

func TestWatcher_HandlerErrorFilesFailure(t *testing.T) {
	dir := t.TempDir()
	c := &batchCollector{fail: true}
	w := newTestWatcher(t, dir, c)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "works.json"), []byte(sampleWorks), 0600))

	waitFor(t, func() bool {
		moved, _ := filepath.Glob(filepath.Join(dir, failedDir, "works.json.*"))
		return len(moved) == 1
	})
}

func TestWatcher_StopIdempotent(t *testing.T) {
	c := &batchCollector{}
	w := newTestWatcher(t, t.TempDir(), c)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
	assert.False(t, w.IsWatching())
}

func TestIngestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "works.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleWorks), 0600))

	batch, err := IngestFile(path)
	require.NoError(t, err)
	assert.Len(t, batch.Works, 2)
	assert.NotEmpty(t, batch.ID)

	_, err = IngestFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
