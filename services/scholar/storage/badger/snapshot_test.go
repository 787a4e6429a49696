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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
)

func sampleStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.NewStore()

	p1, err := s.Upsert(graph.LabelPaper, "10.1/p1", map[string]any{
		graph.AttrTitle: "Weighted graph projections", graph.AttrPublished: 2019,
	})
	require.NoError(t, err)
	p2, err := s.Upsert(graph.LabelPaper, "10.1/p2", map[string]any{
		graph.AttrTitle: "Community detection", graph.AttrPublished: 2021,
	})
	require.NoError(t, err)
	a, err := s.Upsert(graph.LabelAuthor, "Grace Hopper", nil)
	require.NoError(t, err)

	require.NoError(t, s.ConnectOrdered(a, p1, graph.RelWrote, 1, 1))
	require.NoError(t, s.ConnectOrdered(a, p2, graph.RelWrote, 1, 1))
	require.NoError(t, s.Connect(p1, p2, graph.RelSharesAuthor, 1))
	require.NoError(t, s.Connect(p2, p1, graph.RelSharesAuthor, 1))
	return s
}

func TestSnapshot_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := sampleStore(t)

	require.NoError(t, SaveSnapshot(ctx, db, store))

	loaded, err := LoadSnapshot(ctx, db)
	require.NoError(t, err)

	assert.Equal(t, store.NodeCount(), loaded.NodeCount())
	assert.Equal(t, store.EdgeCount(), loaded.EdgeCount())

	// Attributes survive
	h, ok := loaded.Get(graph.LabelPaper, "10.1/p1")
	require.True(t, ok)
	attrs, err := loaded.AttributesOf(h)
	require.NoError(t, err)
	assert.Equal(t, "Weighted graph projections", attrs[graph.AttrTitle])

	// Edge weights and order survive exactly
	a, _ := loaded.Get(graph.LabelAuthor, "Grace Hopper")
	neighbors, err := loaded.EdgesOf(a, graph.RelWrote, graph.Outgoing)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, 1, neighbors[0].Order)

	// Projections over the restored store are identical
	want, err := store.Project(graph.ProjectOptions{
		Label: graph.LabelPaper, Types: []graph.RelType{graph.RelSharesAuthor},
	})
	require.NoError(t, err)
	got, err := loaded.Project(graph.ProjectOptions{
		Label: graph.LabelPaper, Types: []graph.RelType{graph.RelSharesAuthor},
	})
	require.NoError(t, err)
	assert.Equal(t, want.NodeCount(), got.NodeCount())
	assert.Equal(t, want.ArcCount(), got.ArcCount())
	assert.Equal(t, want.TotalWeight(), got.TotalWeight())
}

func TestLoadSnapshot_Empty(t *testing.T) {
	db := openTestDB(t)

	_, err := LoadSnapshot(context.Background(), db)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSaveSnapshot_Overwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	big := sampleStore(t)
	require.NoError(t, SaveSnapshot(ctx, db, big))

	small := graph.NewStore()
	_, err := small.Upsert(graph.LabelKeyword, "pagerank", nil)
	require.NoError(t, err)
	require.NoError(t, SaveSnapshot(ctx, db, small))

	loaded, err := LoadSnapshot(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.NodeCount())
	assert.Equal(t, 0, loaded.EdgeCount())
}

func TestSnapshotInfo(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, _, _, err := SnapshotInfo(ctx, db)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	store := sampleStore(t)
	require.NoError(t, SaveSnapshot(ctx, db, store))

	savedAt, nodes, edges, err := SnapshotInfo(ctx, db)
	require.NoError(t, err)
	assert.False(t, savedAt.IsZero())
	assert.Equal(t, store.NodeCount(), nodes)
	assert.Equal(t, store.EdgeCount(), edges)
}
