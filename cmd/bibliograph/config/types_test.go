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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:8085", cfg.Server.BaseURL)
	assert.Equal(t, "~/.bibliograph/data", cfg.Storage.DataDir)
	assert.False(t, cfg.Cloud.Enabled())
	assert.Equal(t, "backups", cfg.Cloud.Prefix)
}

func TestCloudEnabled(t *testing.T) {
	cfg := CloudConfig{Bucket: "my-backups"}
	assert.True(t, cfg.Enabled())
}

func TestExpandedDataDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := StorageConfig{DataDir: "~/.bibliograph/data"}
	assert.Equal(t, filepath.Join(home, ".bibliograph", "data"), cfg.ExpandedDataDir())

	cfg = StorageConfig{DataDir: "/var/lib/bibliograph"}
	assert.Equal(t, "/var/lib/bibliograph", cfg.ExpandedDataDir())
}
