// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/Bibliograph/cmd/bibliograph/config"
	"github.com/AleutianAI/Bibliograph/cmd/bibliograph/gcs"
	"github.com/AleutianAI/Bibliograph/pkg/ux"
	badgerstore "github.com/AleutianAI/Bibliograph/services/scholar/storage/badger"
	"github.com/AleutianAI/Bibliograph/services/scholar/storage/lock"
)

// openLocalDB opens the data directory for offline snapshot work. The
// same lock the service takes guards against concurrent access, so
// these commands refuse to run while the service is up.
func openLocalDB() (*badgerstore.DB, *lock.Lock, error) {
	dataDir := config.Global.Storage.ExpandedDataDir()
	dirLock, err := lock.Acquire(dataDir)
	if err != nil {
		if info, ok := lock.Holder(dataDir); ok {
			return nil, nil, fmt.Errorf("data directory %s is in use by pid %d on %s (stop the service first)",
				dataDir, info.PID, info.Hostname)
		}
		return nil, nil, fmt.Errorf("lock data directory %s: %w", dataDir, err)
	}

	cfg := badgerstore.DefaultConfig()
	cfg.Path = dataDir
	cfg.GCInterval = 0
	db, err := badgerstore.OpenDB(cfg)
	if err != nil {
		dirLock.Release()
		return nil, nil, err
	}
	return db, dirLock, nil
}

func runSnapshotInfo(cmd *cobra.Command, args []string) {
	start := time.Now()
	db, dirLock, err := openLocalDB()
	if err != nil {
		code, _ := OutputResult(jsonOutput, "snapshot info", start, nil, err)
		os.Exit(code)
	}
	defer dirLock.Release()
	defer db.Close()

	savedAt, nodes, edges, err := badgerstore.SnapshotInfo(cmd.Context(), db)
	data := map[string]any{"saved_at": savedAt, "nodes": nodes, "edges": edges}
	if code, handled := OutputResult(jsonOutput, "snapshot info", start, data, err); handled {
		os.Exit(code)
	}

	ux.Title("Snapshot")
	ux.Info(fmt.Sprintf("saved at  %s", savedAt.Format(time.RFC3339)))
	ux.Info(fmt.Sprintf("nodes     %d", nodes))
	ux.Info(fmt.Sprintf("edges     %d", edges))
}

func runSnapshotBackup(cmd *cobra.Command, args []string) {
	start := time.Now()
	output := fmt.Sprintf("bibliograph-%s.bak", time.Now().Format("2006-01-02_150405"))
	if len(args) == 1 {
		output = args[0]
	}

	db, dirLock, err := openLocalDB()
	if err != nil {
		code, _ := OutputResult(jsonOutput, "snapshot backup", start, nil, err)
		os.Exit(code)
	}
	defer dirLock.Release()
	defer db.Close()

	err = writeBackup(db, output)
	data := map[string]any{"output": output}
	if code, handled := OutputResult(jsonOutput, "snapshot backup", start, data, err); handled {
		os.Exit(code)
	}

	ux.Success(fmt.Sprintf("backup written to %s", output))
}

func writeBackup(db *badgerstore.DB, output string) error {
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create backup file %s: %w", output, err)
	}
	// since=0 writes a full backup rather than an incremental one.
	if _, err := db.Backup(f, 0); err != nil {
		f.Close()
		os.Remove(output)
		return fmt.Errorf("backup database: %w", err)
	}
	return f.Close()
}

func runSnapshotRestore(cmd *cobra.Command, args []string) {
	start := time.Now()
	backupFile := args[0]

	f, err := os.Open(backupFile)
	if err != nil {
		code, _ := OutputResult(jsonOutput, "snapshot restore", start, nil, err)
		os.Exit(code)
	}
	defer f.Close()

	db, dirLock, err := openLocalDB()
	if err != nil {
		code, _ := OutputResult(jsonOutput, "snapshot restore", start, nil, err)
		os.Exit(code)
	}
	defer dirLock.Release()
	defer db.Close()

	err = db.Load(f, 64)
	data := map[string]any{"restored_from": backupFile}
	if code, handled := OutputResult(jsonOutput, "snapshot restore", start, data, err); handled {
		os.Exit(code)
	}

	ux.Success(fmt.Sprintf("restored snapshot from %s", backupFile))
}

func runSnapshotUpload(cmd *cobra.Command, args []string) {
	start := time.Now()
	localPath := args[0]

	cloud := config.Global.Cloud
	if !cloud.Enabled() {
		err := fmt.Errorf("no GCS bucket configured, set cloud.bucket in bibliograph.yaml")
		code, _ := OutputResult(jsonOutput, "snapshot upload", start, nil, err)
		os.Exit(code)
	}

	client, err := gcs.NewClient(cmd.Context(), cloud.Project, cloud.Bucket, cloud.CredentialsFile)
	if err != nil {
		code, _ := OutputResult(jsonOutput, "snapshot upload", start, nil, err)
		os.Exit(code)
	}
	defer client.Close()

	info, err := os.Stat(localPath)
	if err == nil {
		if info.IsDir() {
			err = client.UploadDir(cmd.Context(), localPath, cloud.Prefix)
		} else {
			err = client.UploadFile(cmd.Context(), localPath,
				filepath.Join(cloud.Prefix, filepath.Base(localPath)))
		}
	}
	data := map[string]any{"bucket": cloud.Bucket, "uploaded": localPath}
	if code, handled := OutputResult(jsonOutput, "snapshot upload", start, data, err); handled {
		os.Exit(code)
	}

	ux.Success(fmt.Sprintf("uploaded %s to gs://%s/%s", localPath, cloud.Bucket, cloud.Prefix))
}

func runReset(cmd *cobra.Command, args []string) {
	dataDir := config.Global.Storage.ExpandedDataDir()

	if !resetForce {
		if !ux.IsInteractive() {
			ux.Error("reset needs a terminal to confirm, or pass --force")
			os.Exit(CLIExitError)
		}
		var confirmed bool
		prompt := huh.NewConfirm().
			Title(fmt.Sprintf("Delete all graph data in %s?", dataDir)).
			Description("This removes the snapshot database. A backup is the only way back.").
			Affirmative("Delete").
			Negative("Keep").
			Value(&confirmed)
		if err := prompt.Run(); err != nil {
			ux.Error(fmt.Sprintf("confirmation failed: %v", err))
			os.Exit(CLIExitError)
		}
		if !confirmed {
			ux.Muted("reset cancelled")
			return
		}
	}

	// Take the lock so a running service cannot be yanked out from under.
	dirLock, err := lock.Acquire(dataDir)
	if err != nil {
		if info, ok := lock.Holder(dataDir); ok {
			ux.Error(fmt.Sprintf("data directory is in use by pid %d on %s, stop the service first",
				info.PID, info.Hostname))
		} else {
			ux.Error(fmt.Sprintf("cannot lock %s: %v", dataDir, err))
		}
		os.Exit(CLIExitError)
	}
	dirLock.Release()

	if err := os.RemoveAll(dataDir); err != nil {
		ux.Error(fmt.Sprintf("cannot remove %s: %v", dataDir, err))
		os.Exit(CLIExitError)
	}
	ux.Success(fmt.Sprintf("removed %s", dataDir))
}
