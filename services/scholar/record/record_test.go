// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package record

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const worksArray = `[
  {
    "doi": "10.1/alpha",
    "title": "Weighted Graph Projections",
    "publication_year": 2021,
    "authorships": [
      {"position": 1, "author": {"display_name": "Ana Souza", "orcid": "0000-0001"}}
    ],
    "venue": {"name": "Journal of Graphs", "type": "journal"},
    "keywords": ["graphs"]
  },
  {"title": "   "},
  {"doi": "10.1/beta", "title": "Second Work", "publication_year": 2019}
]`

func TestDecodeWorks_Array(t *testing.T) {
	batch, err := DecodeWorks(strings.NewReader(worksArray), "test.json")
	require.NoError(t, err)

	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, "test.json", batch.Source)
	require.Len(t, batch.Works, 2)
	assert.Equal(t, 1, batch.Rejected, "the titleless work is dropped, not fatal")

	w := batch.Works[0]
	assert.Equal(t, "10.1/alpha", w.DOI)
	assert.Equal(t, 2021, w.PublicationYear)
	require.Len(t, w.Authorships, 1)
	assert.Equal(t, "Ana Souza", w.Authorships[0].Author.DisplayName)
	assert.Equal(t, "0000-0001", w.Authorships[0].Author.Orcid)
	assert.Equal(t, "Journal of Graphs", w.Venue.Name)
}

func TestDecodeWorks_NDJSON(t *testing.T) {
	input := `{"doi": "10.1/a", "title": "First"}
{"doi": "10.1/b", "title": "Second"}
{"title": ""}
`
	batch, err := DecodeWorks(strings.NewReader(input), "stream")
	require.NoError(t, err)

	require.Len(t, batch.Works, 2)
	assert.Equal(t, "10.1/a", batch.Works[0].DOI)
	assert.Equal(t, "10.1/b", batch.Works[1].DOI)
	assert.Equal(t, 1, batch.Rejected)
}

func TestDecodeWorks_Empty(t *testing.T) {
	batch, err := DecodeWorks(strings.NewReader(""), "empty")
	require.NoError(t, err)
	assert.Empty(t, batch.Works)
}

func TestDecodeWorks_Malformed(t *testing.T) {
	_, err := DecodeWorks(strings.NewReader(`"just a string"`), "bad")
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = DecodeWorks(strings.NewReader(`[{"title": "ok"},`), "bad")
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestWork_Key(t *testing.T) {
	withDOI := Work{DOI: "10.1/x", Title: "Some Title"}
	assert.Equal(t, "10.1/x", withDOI.Key())

	withoutDOI := Work{Title: "  Mixed   CASE   Title "}
	assert.Equal(t, "mixed case title", withoutDOI.Key())
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeTitle("  A   b\tC "))
	assert.Equal(t, "", NormalizeTitle("   "))
}
