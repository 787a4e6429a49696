// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Bibliograph/services/scholar/record"
)

func TestNewSuggester_RequiresKey(t *testing.T) {
	_, err := NewSuggester("", "gpt-4o-mini", 5, nil)
	require.Error(t, err)
}

func TestNewSuggester_Defaults(t *testing.T) {
	s, err := NewSuggester("sk-test", "", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", s.model)
	assert.Equal(t, DefaultMaxKeywords, s.maxKeywords)
	assert.NotNil(t, s.logger)
}

func TestParseKeywords_Newlines(t *testing.T) {
	got := ParseKeywords("graph theory\ncitation analysis\nbibliometrics\n", 5)
	assert.Equal(t, []string{"graph theory", "citation analysis", "bibliometrics"}, got)
}

func TestParseKeywords_CommasAndBullets(t *testing.T) {
	reply := "- Graph Theory, \"Network Science\"\n* 2. community detection"
	got := ParseKeywords(reply, 5)
	assert.Equal(t, []string{"graph theory", "network science", "community detection"}, got)
}

func TestParseKeywords_DedupAndCap(t *testing.T) {
	reply := "pagerank\nPageRank\nlouvain\nmodularity\njaccard\nextra"
	got := ParseKeywords(reply, 4)
	assert.Equal(t, []string{"pagerank", "louvain", "modularity", "jaccard"}, got)
}

func TestParseKeywords_Empty(t *testing.T) {
	assert.Empty(t, ParseKeywords("", 5))
	assert.Empty(t, ParseKeywords("\n\n  ,, \n", 5))
}

func TestBuildPrompt(t *testing.T) {
	w := record.Work{
		Title:           "Community Detection in Citation Networks",
		PublicationYear: 2021,
		Type:            "article",
		Venue:           record.Venue{Name: "J. Informetrics"},
	}
	p := buildPrompt(w, 5)
	assert.Contains(t, p, "Community Detection in Citation Networks")
	assert.Contains(t, p, "J. Informetrics")
	assert.Contains(t, p, "2021")
	assert.Contains(t, p, "up to 5")
}
