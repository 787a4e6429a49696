// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lock guards the corpus data directory against concurrent
// writers. The engine contract is single-writer: two processes saving
// snapshots into the same badger directory corrupt each other, so the
// service and the CLI both take this lock before opening storage.
//
// Locking uses the platform's advisory file lock (flock on Unix,
// LockFileEx on Windows), which the kernel releases when the holder
// dies. A small JSON info file beside the lock names the holder for
// error messages; it is informational only, the OS lock is the truth.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("data directory is locked")

// lockFileName is the lock file inside the data directory.
const lockFileName = "LOCK"

// infoFileName names the holder-info file beside the lock.
const infoFileName = "LOCK.info"

// Info describes the process holding a lock.
type Info struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock is a held data-directory lock. Release it before exit; the OS
// also releases it if the process dies.
type Lock struct {
	file *os.File
	dir  string
}

// Acquire takes the single-writer lock on dir, creating the directory
// if needed. Returns ErrLocked (wrapped with the holder's identity when
// known) if another process holds it.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0640)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		if errors.Is(err, ErrLocked) {
			if info, infoErr := readInfo(dir); infoErr == nil {
				return nil, fmt.Errorf("%w: held by pid %d on %s since %s",
					ErrLocked, info.PID, info.Hostname, info.AcquiredAt.Format(time.RFC3339))
			}
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	writeInfo(dir)
	return &Lock{file: f, dir: dir}, nil
}

// Release unlocks and removes the holder info. Safe to call once.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	_ = os.Remove(filepath.Join(l.dir, infoFileName))
	err := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	return closeErr
}

// Dir returns the locked directory.
func (l *Lock) Dir() string {
	return l.dir
}

// Holder reports who holds the lock on dir, if anyone. The second
// return is false when no info file exists.
func Holder(dir string) (Info, bool) {
	info, err := readInfo(dir)
	if err != nil {
		return Info{}, false
	}
	return info, true
}

func writeInfo(dir string) {
	hostname, _ := os.Hostname()
	info := Info{
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	// Best effort: the info file only feeds error messages
	_ = os.WriteFile(filepath.Join(dir, infoFileName), data, 0640)
}

func readInfo(dir string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, infoFileName))
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, err
	}
	return info, nil
}
