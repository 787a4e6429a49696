// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package semantic maintains an optional Weaviate index of paper
// titles for text-similarity lookups.
//
// The index is advisory: Related returns candidate papers for
// RELATED_TO suggestions, and nothing touches the graph store unless
// the caller applies those suggestions through the normal connect
// surface. When Weaviate is unconfigured the service simply runs
// without the suggestions endpoint.
package semantic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/Bibliograph/services/scholar/record"
)

// DefaultClassName is the Weaviate class holding indexed works.
const DefaultClassName = "BibliographWork"

// Config holds Weaviate connection settings.
type Config struct {
	// Host is the weaviate host (host:port).
	Host string

	// Scheme is "http" or "https".
	Scheme string

	// ClassName overrides DefaultClassName.
	ClassName string
}

// Candidate is one related-paper suggestion.
type Candidate struct {
	// Key is the paper's natural key in the graph store.
	Key string `json:"key"`

	// Title is the indexed display title.
	Title string `json:"title"`

	// Certainty is weaviate's similarity certainty (0..1).
	Certainty float64 `json:"certainty"`
}

// Index wraps the Weaviate client for work indexing and lookup.
type Index struct {
	client *weaviate.Client
	class  string
	logger *slog.Logger
}

// New creates an Index. It does not contact the server; call
// EnsureSchema before first use.
func New(cfg Config, logger *slog.Logger) (*Index, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("weaviate host is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.ClassName == "" {
		cfg.ClassName = DefaultClassName
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	return &Index{client: client, class: cfg.ClassName, logger: logger}, nil
}

// EnsureSchema creates the work class if it does not exist.
func (i *Index) EnsureSchema(ctx context.Context) error {
	_, err := i.client.Schema().ClassGetter().WithClassName(i.class).Do(ctx)
	if err == nil {
		i.logger.Debug("weaviate schema present", "class", i.class)
		return nil
	}

	class := &models.Class{
		Class:       i.class,
		Description: "A scholarly work indexed for title similarity.",
		Vectorizer:  "text2vec-transformers",
		Properties: []*models.Property{
			{
				Name:        "key",
				DataType:    []string{"text"},
				Description: "Natural key of the paper in the corpus graph.",
			},
			{
				Name:        "title",
				DataType:    []string{"text"},
				Description: "Display title, the vectorized field.",
			},
			{
				Name:        "year",
				DataType:    []string{"int"},
				Description: "Publication year, 0 when unknown.",
			},
		},
	}

	if err := i.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create weaviate class %s: %w", i.class, err)
	}
	i.logger.Info("weaviate schema created", "class", i.class)
	return nil
}

// IndexWorks pushes a batch of works. Object ids are v5 UUIDs derived
// from the work key, so re-indexing the same work overwrites instead
// of duplicating.
func (i *Index) IndexWorks(ctx context.Context, works []record.Work) (int, error) {
	if len(works) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, 0, len(works))
	for _, w := range works {
		key := w.Key()
		if key == "" || w.Title == "" {
			continue
		}
		objects = append(objects, &models.Object{
			Class: i.class,
			ID:    WorkID(key),
			Properties: map[string]interface{}{
				"key":   key,
				"title": w.Title,
				"year":  w.PublicationYear,
			},
		})
	}
	if len(objects) == 0 {
		return 0, nil
	}

	resp, err := i.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch index works: %w", err)
	}

	indexed := 0
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			i.logger.Warn("weaviate object rejected",
				"id", obj.ID, "error", obj.Result.Errors.Error[0].Message)
			continue
		}
		indexed++
	}

	i.logger.Debug("works indexed", "requested", len(objects), "indexed", indexed)
	return indexed, nil
}

// Related returns up to k papers whose titles are semantically close
// to the query text. The query paper itself may appear in the results;
// callers filter by key.
func (i *Index) Related(ctx context.Context, query string, k int) ([]Candidate, error) {
	if k <= 0 {
		k = 10
	}

	nearText := i.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "key"},
		{Name: "title"},
		{Name: "_additional { certainty }"},
	}

	result, err := i.client.GraphQL().Get().
		WithClassName(i.class).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("related query: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("related query: %s", result.Errors[0].Message)
	}

	return parseCandidates(result.Data, i.class)
}

// WorkID derives the deterministic weaviate object id for a work key.
func WorkID(key string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("bibliograph/"+key)).String())
}

// parseCandidates walks the GraphQL response shape.
func parseCandidates(data map[string]models.JSONObject, class string) ([]Candidate, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("malformed response: missing Get")
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		props, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		c := Candidate{}
		if key, ok := props["key"].(string); ok {
			c.Key = key
		}
		if title, ok := props["title"].(string); ok {
			c.Title = title
		}
		if add, ok := props["_additional"].(map[string]interface{}); ok {
			if certainty, ok := add["certainty"].(float64); ok {
				c.Certainty = certainty
			}
		}
		if c.Key != "" {
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}
