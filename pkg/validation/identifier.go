// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided identifiers that end up
// in store keys, vector index filters, or time-series tags. Using these
// validators keeps hostile input out of downstream query strings.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxKeyLength bounds entity keys. DOIs and normalized titles are
// comfortably below this; anything longer is garbage or an attack.
const MaxKeyLength = 512

// ValidateKey validates a user-supplied entity key.
//
// Valid keys:
//   - 1 to MaxKeyLength characters
//   - no control characters or newlines
//   - not entirely whitespace
//
// Returns an error if the key is invalid.
//
// Example:
//
//	if err := validation.ValidateKey(req.Key); err != nil {
//	    return fmt.Errorf("invalid key: %w", err)
//	}
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("key exceeds %d characters", MaxKeyLength)
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("key contains control characters")
		}
	}
	return nil
}

// NormalizeORCID strips the resolver prefix from an ORCID iD so the
// same researcher keys identically whether the catalog sent
// "https://orcid.org/0000-0002-1825-0097" or the bare iD. The checksum
// letter is uppercased. Inputs that look nothing like an ORCID are
// returned trimmed but otherwise untouched; catalogs disagree enough
// about iD hygiene that rejecting here would drop real records.
func NormalizeORCID(orcid string) string {
	s := strings.TrimSpace(orcid)
	for _, prefix := range []string{"https://orcid.org/", "http://orcid.org/", "orcid.org/"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			s = rest
			break
		}
	}
	return strings.ToUpper(s)
}
