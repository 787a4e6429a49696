// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package enrich suggests keywords for works that arrive without any.
//
// Suggestions are advisory. Callers decide whether to attach them to a
// work before it reaches the graph builder; nothing in this package
// mutates the store.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/Bibliograph/services/scholar/record"
)

// DefaultMaxKeywords bounds a suggestion list when the caller does not.
const DefaultMaxKeywords = 5

// Suggester proposes topic keywords for a work using a chat completion.
type Suggester struct {
	client      *openai.Client
	model       string
	maxKeywords int
	logger      *slog.Logger
}

// NewSuggester builds a Suggester. The API key is resolved by the
// caller; this package never reads the environment.
func NewSuggester(apiKey, model string, maxKeywords int, logger *slog.Logger) (*Suggester, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("enrich: api key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Suggester{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxKeywords: maxKeywords,
		logger:      logger,
	}, nil
}

const systemPrompt = "You are a bibliographic cataloger. Given the metadata of a " +
	"scholarly work, reply with a short list of topic keywords, one per line, " +
	"lowercase, no numbering, no commentary."

// SuggestKeywords asks the model for topic keywords for w. Results are
// normalized the same way ingestion normalizes keywords, deduplicated,
// and capped at the configured maximum.
func (s *Suggester) SuggestKeywords(ctx context.Context, w record.Work) ([]string, error) {
	if w.Title == "" {
		return nil, fmt.Errorf("enrich: work has no title")
	}
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(w, s.maxKeywords)},
		},
	}
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		s.logger.Error("keyword suggestion call failed", "model", s.model, "error", err)
		return nil, fmt.Errorf("enrich: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("enrich: model returned no choices")
	}
	keywords := ParseKeywords(resp.Choices[0].Message.Content, s.maxKeywords)
	s.logger.Debug("suggested keywords", "title", w.Title, "count", len(keywords))
	return keywords, nil
}

// buildPrompt renders the work metadata the model sees.
func buildPrompt(w record.Work, max int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest up to %d topic keywords for this work.\n\n", max)
	fmt.Fprintf(&b, "Title: %s\n", w.Title)
	if w.Venue.Name != "" {
		fmt.Fprintf(&b, "Venue: %s\n", w.Venue.Name)
	}
	if w.PublicationYear != 0 {
		b.WriteString("Year: " + strconv.Itoa(w.PublicationYear) + "\n")
	}
	if w.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", w.Type)
	}
	return b.String()
}

// ParseKeywords turns a model reply into at most max normalized
// keywords. It tolerates comma separated replies, bullet markers, and
// surrounding quotes.
func ParseKeywords(reply string, max int) []string {
	if max <= 0 {
		max = DefaultMaxKeywords
	}
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		for _, part := range strings.Split(line, ",") {
			term := cleanTerm(part)
			if term == "" {
				continue
			}
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			out = append(out, term)
			if len(out) == max {
				return out
			}
		}
	}
	return out
}

// cleanTerm strips list markers and quoting, then applies the same
// normalization ingestion uses for keyword terms.
func cleanTerm(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•")
	for len(s) > 0 && (s[0] >= '0' && s[0] <= '9') {
		s = s[1:]
	}
	s = strings.TrimLeft(s, ".) ")
	s = strings.Trim(s, "\"'`")
	return record.NormalizeTitle(s)
}
