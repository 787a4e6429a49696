// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
)

// Snapshot key layout. The version segment guards against decoding a
// snapshot written by an incompatible release.
const (
	snapshotPrefix = "bib/v1/"
	metaKey        = snapshotPrefix + "meta"
	nodePrefix     = snapshotPrefix + "node/"
	edgePrefix     = snapshotPrefix + "edge/"
)

// ErrNoSnapshot is returned by LoadSnapshot when the database holds no
// snapshot.
var ErrNoSnapshot = errors.New("no snapshot present")

// snapshotMeta records what a snapshot contains.
type snapshotMeta struct {
	SavedAt time.Time `json:"saved_at"`
	Nodes   int       `json:"nodes"`
	Edges   int       `json:"edges"`
}

// SaveSnapshot persists the entire store.
//
// The previous snapshot is dropped first, then nodes and edges are
// written under sequenced keys so iteration order reproduces export
// order. Writes go through a WriteBatch; a single transaction would
// overflow badger's size limit on large corpora.
func SaveSnapshot(ctx context.Context, db *DB, store *graph.Store) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	nodes, edges := store.Export()

	if err := db.DropPrefix([]byte(snapshotPrefix)); err != nil {
		return fmt.Errorf("drop previous snapshot: %w", err)
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()

	for i, n := range nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode node %d: %w", i, err)
		}
		if err := wb.Set(nodeKey(i), data); err != nil {
			return fmt.Errorf("write node %d: %w", i, err)
		}
	}
	for i, e := range edges {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode edge %d: %w", i, err)
		}
		if err := wb.Set(edgeKey(i), data); err != nil {
			return fmt.Errorf("write edge %d: %w", i, err)
		}
	}

	meta := snapshotMeta{
		SavedAt: time.Now().UTC(),
		Nodes:   len(nodes),
		Edges:   len(edges),
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode snapshot meta: %w", err)
	}
	if err := wb.Set([]byte(metaKey), metaData); err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot rebuilds a store from the latest snapshot.
//
// Returns ErrNoSnapshot when the database is empty. The store options
// are forwarded to the fresh store, so capacity limits survive a
// restart only if the caller passes them again.
func LoadSnapshot(ctx context.Context, db *DB, opts ...graph.StoreOption) (*graph.Store, error) {
	var meta snapshotMeta
	var nodes []graph.NodeExport
	var edges []graph.EdgeExport

	err := db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoSnapshot
		}
		if err != nil {
			return fmt.Errorf("read snapshot meta: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return fmt.Errorf("decode snapshot meta: %w", err)
		}

		nodes = make([]graph.NodeExport, 0, meta.Nodes)
		if err := scanPrefix(txn, nodePrefix, func(val []byte) error {
			var n graph.NodeExport
			if err := json.Unmarshal(val, &n); err != nil {
				return err
			}
			nodes = append(nodes, n)
			return nil
		}); err != nil {
			return fmt.Errorf("scan nodes: %w", err)
		}

		edges = make([]graph.EdgeExport, 0, meta.Edges)
		if err := scanPrefix(txn, edgePrefix, func(val []byte) error {
			var e graph.EdgeExport
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			edges = append(edges, e)
			return nil
		}); err != nil {
			return fmt.Errorf("scan edges: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(nodes) != meta.Nodes || len(edges) != meta.Edges {
		return nil, fmt.Errorf("snapshot truncated: have %d/%d nodes, %d/%d edges",
			len(nodes), meta.Nodes, len(edges), meta.Edges)
	}

	store := graph.NewStore(opts...)
	if err := store.Restore(nodes, edges); err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	return store, nil
}

// SnapshotInfo returns metadata about the stored snapshot without
// loading it. Returns ErrNoSnapshot when absent.
func SnapshotInfo(ctx context.Context, db *DB) (savedAt time.Time, nodes, edges int, err error) {
	var meta snapshotMeta
	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoSnapshot
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	return meta.SavedAt, meta.Nodes, meta.Edges, err
}

// scanPrefix iterates all values under a prefix in key order.
func scanPrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			return fn(val)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Sequenced keys sort lexically in write order.
func nodeKey(i int) []byte {
	return []byte(fmt.Sprintf("%s%012d", nodePrefix, i))
}

func edgeKey(i int) []byte {
	return []byte(fmt.Sprintf("%s%012d", edgePrefix, i))
}
