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
	"strings"
)

// BibliographConfig is the CLI-side configuration. It is deliberately
// smaller than the service config: the CLI only needs to know where the
// service listens, where the local data directory lives, and where
// cloud backups go.
type BibliographConfig struct {
	// Server points at a running bibliograph service.
	Server ServerConfig `yaml:"server"`

	// Storage locates the local data directory for offline commands
	// (snapshot, reset). It must match the service's storage config.
	Storage StorageConfig `yaml:"storage"`

	// Cloud configures Google Cloud Storage backup uploads.
	Cloud CloudConfig `yaml:"cloud"`
}

type ServerConfig struct {
	// BaseURL is the service root, e.g. http://localhost:8085.
	BaseURL string `yaml:"base_url"`
}

type StorageConfig struct {
	// DataDir is the badger data directory. A leading ~ expands to the
	// user's home directory.
	DataDir string `yaml:"data_dir"`
}

type CloudConfig struct {
	// Project is the GCP project ID.
	Project string `yaml:"project"`

	// Bucket is the GCS bucket for backups. Empty disables uploads.
	Bucket string `yaml:"bucket"`

	// CredentialsFile is the path to a service account key.
	CredentialsFile string `yaml:"credentials_file"`

	// Prefix is the object prefix for uploaded backups.
	Prefix string `yaml:"prefix"`
}

// Enabled reports whether uploads are configured.
func (c CloudConfig) Enabled() bool {
	return c.Bucket != ""
}

// ExpandedDataDir returns DataDir with a leading ~ expanded.
func (c StorageConfig) ExpandedDataDir() string {
	path := c.DataDir
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
		}
	}
	return path
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() BibliographConfig {
	return BibliographConfig{
		Server: ServerConfig{
			BaseURL: "http://localhost:8085",
		},
		Storage: StorageConfig{
			DataDir: "~/.bibliograph/data",
		},
		Cloud: CloudConfig{
			Prefix: "backups",
		},
	}
}
