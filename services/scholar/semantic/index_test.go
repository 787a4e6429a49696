// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestNew_RequiresHost(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	idx, err := New(Config{Host: "localhost:8080"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultClassName, idx.class)
}

func TestWorkID_Deterministic(t *testing.T) {
	a := WorkID("10.1/p1")
	b := WorkID("10.1/p1")
	c := WorkID("10.1/p2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a.String(), 36)
}

func TestParseCandidates(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			"BibliographWork": []interface{}{
				map[string]interface{}{
					"key":   "10.1/p1",
					"title": "Weighted graph projections",
					"_additional": map[string]interface{}{
						"certainty": 0.91,
					},
				},
				map[string]interface{}{
					// Missing key, dropped
					"title": "Orphan",
				},
			},
		},
	}

	candidates, err := parseCandidates(data, "BibliographWork")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "10.1/p1", candidates[0].Key)
	assert.Equal(t, "Weighted graph projections", candidates[0].Title)
	assert.InDelta(t, 0.91, candidates[0].Certainty, 1e-9)
}

func TestParseCandidates_MissingGet(t *testing.T) {
	_, err := parseCandidates(map[string]models.JSONObject{}, "BibliographWork")
	assert.Error(t, err)
}

func TestParseCandidates_EmptyClass(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{},
	}
	candidates, err := parseCandidates(data, "BibliographWork")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
