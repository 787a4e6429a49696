// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph implements the in-memory scholarly property graph engine:
// a deduplicated entity store, a typed weighted relationship store,
// relationship inference rules, projection into dense index-based
// adjacency, and the analytics algorithms (PageRank, Louvain community
// detection, Jaccard node similarity) that run over projections.
//
// # Ownership Model
//
// A Store owns its nodes and edges for the life of the process. Handles
// returned by Upsert/Get remain valid until the Store is discarded; there
// is no deletion API. Projections are value snapshots owned by the caller
// and never write back to the Store.
//
// # Thread Safety
//
// Store methods are safe for concurrent use (RWMutex, single writer).
// Project holds the read lock for the duration of the scan. A Projection
// is immutable after construction and may be shared by any number of
// concurrent algorithm runs.
//
// # Lifecycle
//
//  1. NewStore, then Upsert/Connect during ingestion.
//  2. Inference rules (InferSharedAuthors, InferSharedKeywords,
//     InferCollaborations, InferCitationCandidates) run once per build
//     phase and write derived edges through the same Connect path.
//  3. Project produces an immutable snapshot.
//  4. PageRank/Louvain/NodeSimilarity consume snapshots read-only.
package graph

import "errors"

// Sentinel errors returned by the graph engine.
var (
	// ErrDuplicateKey is returned when an upsert reuses a natural key that
	// already exists under a different label. Keys resolve without a label
	// on the ingestion surface, so this is fatal and never silently fixed.
	ErrDuplicateKey = errors.New("key already exists under a different label")

	// ErrUnknownEntity is returned when a connect call references a key or
	// handle that was never upserted. The edge is refused; the store never
	// holds dangling endpoints.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrEmptyKey is returned when an upsert key is the empty string.
	ErrEmptyKey = errors.New("empty entity key")

	// ErrInvalidHandle is returned when a handle does not belong to the
	// store it is used with.
	ErrInvalidHandle = errors.New("invalid node handle")

	// ErrInvalidLabel is returned when a label value is outside the known
	// enum range.
	ErrInvalidLabel = errors.New("invalid node label")

	// ErrInvalidRelType is returned when a relationship type value is
	// outside the known enum range.
	ErrInvalidRelType = errors.New("invalid relationship type")

	// ErrMaxNodesExceeded is returned when adding a node would exceed the
	// configured node limit.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when adding an edge would exceed the
	// configured edge limit.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrUnknownWeightKey is returned by Project when the requested weight
	// key is neither empty nor "weight".
	ErrUnknownWeightKey = errors.New("unknown projection weight key")

	// ErrNilProjection is returned by algorithms handed a nil projection.
	ErrNilProjection = errors.New("projection is nil")

	// ErrUnknownRule is returned by Infer for a rule name outside the
	// defined rule set.
	ErrUnknownRule = errors.New("unknown inference rule")

	// ErrSelfLoop reports a rejected self-loop. Connect swallows it by
	// design; it is exported for callers that construct edges directly.
	ErrSelfLoop = errors.New("self-loop rejected")
)
