// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package format assembles human-readable citation strings from the graph
// engine's query surface. It reads through EdgesOf and AttributesOf only
// and never mutates the store.
package format

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
)

// ErrNotAPaper is returned when the cited handle is not a Paper entity.
var ErrNotAPaper = errors.New("citation target is not a paper")

// APA renders an APA-style reference for a Paper.
//
// Description:
//
//	Authors appear in WROTE byline order as inverted names with an
//	ampersand before the last, then year in parentheses (n.d. when
//	unknown), title, and the journal name in italics markers omitted
//	(plain text output). Missing pieces degrade gracefully.
//
// Example output:
//
//	Souza, A., & Perez, J. (2021). Weighted graph projections. Journal of Graphs.
func APA(s *graph.Store, paper graph.Handle) (string, error) {
	info, err := s.Info(paper)
	if err != nil {
		return "", err
	}
	if info.Label != graph.LabelPaper {
		return "", ErrNotAPaper
	}
	attrs, err := s.AttributesOf(paper)
	if err != nil {
		return "", err
	}

	var parts []string
	if authors := authorList(s, paper); authors != "" {
		parts = append(parts, authors)
	}
	parts = append(parts, "("+yearString(attrs)+").")
	if title, ok := attrs[graph.AttrTitle].(string); ok && title != "" {
		parts = append(parts, sentenceCase(title)+".")
	}
	if journal := journalOf(s, paper); journal != "" {
		parts = append(parts, journal+".")
	}
	return strings.Join(parts, " "), nil
}

// authorList renders the byline: inverted names, comma separated, with
// an ampersand before the last author.
func authorList(s *graph.Store, paper graph.Handle) string {
	writers, err := s.EdgesOf(paper, graph.RelWrote, graph.Incoming)
	if err != nil {
		return ""
	}
	// Byline order; unordered writers sort after ordered ones by handle.
	sort.SliceStable(writers, func(i, j int) bool {
		oi, oj := writers[i].Order, writers[j].Order
		if oi == 0 {
			oi = 1 << 30
		}
		if oj == 0 {
			oj = 1 << 30
		}
		return oi < oj
	})

	var names []string
	seen := make(map[string]bool)
	for _, w := range writers {
		info, err := s.Info(w.Handle)
		if err != nil || info.Label != graph.LabelAuthor {
			// Researcher WROTE edges duplicate the Author byline.
			continue
		}
		name := invertName(info.Key)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", & " + names[len(names)-1]
	}
}

// invertName turns "Ana Clara Souza" into "Souza, A. C.".
func invertName(display string) string {
	fields := strings.Fields(display)
	if len(fields) == 0 {
		return display
	}
	if len(fields) == 1 {
		return fields[0]
	}
	last := fields[len(fields)-1]
	var initials []string
	for _, given := range fields[:len(fields)-1] {
		initials = append(initials, string([]rune(given)[0:1])+".")
	}
	return last + ", " + strings.Join(initials, " ")
}

// yearString renders the publication year, "n.d." when unknown.
func yearString(attrs map[string]any) string {
	switch y := attrs[graph.AttrPublished].(type) {
	case int:
		return fmt.Sprintf("%d", y)
	case int64:
		return fmt.Sprintf("%d", y)
	case float64:
		return fmt.Sprintf("%d", int(y))
	default:
		return "n.d."
	}
}

// journalOf returns the PUBLISHED_IN venue name, if any.
func journalOf(s *graph.Store, paper graph.Handle) string {
	venues, err := s.EdgesOf(paper, graph.RelPublishedIn, graph.Outgoing)
	if err != nil || len(venues) == 0 {
		return ""
	}
	info, err := s.Info(venues[0].Handle)
	if err != nil {
		return ""
	}
	return info.Key
}

// sentenceCase lowercases a title except its first rune, APA style.
func sentenceCase(title string) string {
	runes := []rune(strings.ToLower(title))
	if len(runes) == 0 {
		return title
	}
	return strings.ToUpper(string(runes[0:1])) + string(runes[1:])
}
