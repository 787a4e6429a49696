// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package record defines the raw bibliographic record model consumed by
// the graph builder. Records are shaped like scholarly-catalog API
// payloads; the package decodes and validates them but never touches the
// graph itself.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Decoding errors.
var (
	// ErrMissingTitle marks a work without a usable title; such works
	// cannot be keyed and are rejected.
	ErrMissingTitle = errors.New("work has no title")

	// ErrMalformedInput marks input that is neither a JSON array of works
	// nor an NDJSON stream of work objects.
	ErrMalformedInput = errors.New("malformed works input")
)

// Work is one bibliographic record.
type Work struct {
	// ID is the catalog identifier of the work, when known.
	ID string `json:"id"`

	// DOI is the work's DOI, when known. Preferred natural key.
	DOI string `json:"doi"`

	// Title is the display title. Required.
	Title string `json:"title"`

	// PublicationYear is the year of publication; 0 means unknown.
	PublicationYear int `json:"publication_year"`

	// Type is the catalog work type (article, book-chapter, ...).
	Type string `json:"type"`

	// CitedByCount is the catalog's citation count, when known.
	CitedByCount int `json:"cited_by_count"`

	// Authorships lists the work's authors in byline order.
	Authorships []Authorship `json:"authorships"`

	// Venue is the publication venue, when known.
	Venue Venue `json:"venue"`

	// Keywords are topic terms attached to the work.
	Keywords []string `json:"keywords"`

	// Referenced lists catalog identifiers of cited works, when known.
	Referenced []string `json:"referenced_works"`
}

// Authorship is one author's contribution to a work.
type Authorship struct {
	// Position is the 1-based byline position; 0 means unknown.
	Position int `json:"position"`

	// Author identifies the contributor.
	Author Author `json:"author"`
}

// Author identifies a contributor.
type Author struct {
	// DisplayName is the author's byline name. Natural key for Author
	// entities.
	DisplayName string `json:"display_name"`

	// Orcid is the author's ORCID iD, when known. Natural key for
	// Researcher entities.
	Orcid string `json:"orcid"`
}

// Venue is a publication venue.
type Venue struct {
	// Name is the venue's display name. Natural key for Journal entities.
	Name string `json:"name"`

	// Type is the venue type (journal, conference, repository, ...).
	Type string `json:"type"`
}

// Key returns the work's natural key: the DOI when present, otherwise the
// normalized title.
func (w *Work) Key() string {
	if w.DOI != "" {
		return w.DOI
	}
	return NormalizeTitle(w.Title)
}

// Validate checks that the work can be keyed and ingested.
func (w *Work) Validate() error {
	if strings.TrimSpace(w.Title) == "" {
		return ErrMissingTitle
	}
	return nil
}

// NormalizeTitle lowercases a title and collapses runs of whitespace so
// near-identical titles dedupe to one Paper.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Batch is one decoded ingestion unit.
type Batch struct {
	// ID is a fresh uuid identifying the batch in logs and events.
	ID string `json:"id"`

	// Source names where the records came from (file path, API, upload).
	Source string `json:"source"`

	// Works are the validated records.
	Works []Work `json:"works"`

	// Rejected counts records dropped by validation.
	Rejected int `json:"rejected"`
}

// DecodeWorks parses a JSON array of works or an NDJSON stream of work
// objects.
//
// Description:
//
//	Works failing validation are dropped and counted in Batch.Rejected
//	rather than failing the whole batch; a partially usable upload still
//	ingests.
//
// Errors:
//
//	ErrMalformedInput - wrapped with the decoder's position detail.
func DecodeWorks(r io.Reader, source string) (*Batch, error) {
	dec := json.NewDecoder(r)

	batch := &Batch{
		ID:     uuid.NewString(),
		Source: source,
	}

	tok, err := dec.Token()
	if err == io.EOF {
		return batch, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	if delim, ok := tok.(json.Delim); ok && delim == '[' {
		for dec.More() {
			var w Work
			if err := dec.Decode(&w); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
			}
			batch.add(w)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		return batch, nil
	}

	// NDJSON: the first token opened an object; re-decode from a fresh
	// stream position is not possible, so reassemble the first object by
	// hand and stream the rest.
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrMalformedInput
	}
	var first Work
	if err := decodeOpenObject(dec, &first); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	batch.add(first)
	for {
		var w Work
		if err := dec.Decode(&w); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		batch.add(w)
	}
	return batch, nil
}

// add validates and appends one work.
func (b *Batch) add(w Work) {
	if err := w.Validate(); err != nil {
		b.Rejected++
		return
	}
	b.Works = append(b.Works, w)
}

// decodeOpenObject decodes the remainder of an object whose opening brace
// was already consumed by a Token call.
func decodeOpenObject(dec *json.Decoder, w *Work) error {
	raw := map[string]json.RawMessage{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return ErrMalformedInput
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return err
		}
		raw[key] = val
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return err
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, w)
}
