// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scholar

import (
	"errors"
	"net/http"

	"github.com/AleutianAI/Bibliograph/services/scholar/graph"
	"github.com/AleutianAI/Bibliograph/services/scholar/record"
)

// Service-level sentinel errors.
var (
	// ErrNotFound is returned when an entity lookup resolves nothing.
	ErrNotFound = errors.New("entity not found")

	// ErrSemanticDisabled is returned when a semantic endpoint is called
	// without a configured index.
	ErrSemanticDisabled = errors.New("semantic index not configured")

	// ErrEnrichDisabled is returned when a keyword suggestion is requested
	// without a configured suggester.
	ErrEnrichDisabled = errors.New("keyword enrichment not configured")

	// ErrInvalidOrientation is returned for a projection orientation other
	// than directed or undirected.
	ErrInvalidOrientation = errors.New("invalid projection orientation")
)

// mapError translates domain errors into an HTTP status and error code.
// Unrecognized errors map to 500 INTERNAL.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, graph.ErrUnknownEntity):
		return http.StatusNotFound, "UNKNOWN_ENTITY"
	case errors.Is(err, graph.ErrDuplicateKey):
		return http.StatusConflict, "DUPLICATE_KEY"
	case errors.Is(err, graph.ErrEmptyKey):
		return http.StatusBadRequest, "EMPTY_KEY"
	case errors.Is(err, graph.ErrInvalidLabel):
		return http.StatusBadRequest, "INVALID_LABEL"
	case errors.Is(err, graph.ErrInvalidRelType):
		return http.StatusBadRequest, "INVALID_REL_TYPE"
	case errors.Is(err, graph.ErrUnknownRule):
		return http.StatusBadRequest, "UNKNOWN_RULE"
	case errors.Is(err, graph.ErrUnknownWeightKey):
		return http.StatusBadRequest, "UNKNOWN_WEIGHT_KEY"
	case errors.Is(err, ErrInvalidOrientation):
		return http.StatusBadRequest, "INVALID_ORIENTATION"
	case errors.Is(err, graph.ErrMaxNodesExceeded):
		return http.StatusInsufficientStorage, "MAX_NODES_EXCEEDED"
	case errors.Is(err, graph.ErrMaxEdgesExceeded):
		return http.StatusInsufficientStorage, "MAX_EDGES_EXCEEDED"
	case errors.Is(err, record.ErrMalformedInput):
		return http.StatusBadRequest, "MALFORMED_INPUT"
	case errors.Is(err, ErrSemanticDisabled), errors.Is(err, ErrEnrichDisabled):
		return http.StatusServiceUnavailable, "FEATURE_DISABLED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
