// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKey(t *testing.T) {
	valid := []string{
		"10.1016/j.joi.2019.01.003",
		"ada lovelace",
		"Journal of Informetrics",
		"0000-0002-1825-0097",
	}
	for _, key := range valid {
		assert.NoError(t, ValidateKey(key), key)
	}

	invalid := []string{
		"",
		"   ",
		"key\nwith newline",
		"key\x00with nul",
		strings.Repeat("x", MaxKeyLength+1),
	}
	for _, key := range invalid {
		assert.Error(t, ValidateKey(key))
	}
}

func TestNormalizeORCID(t *testing.T) {
	cases := map[string]string{
		"https://orcid.org/0000-0002-1825-0097": "0000-0002-1825-0097",
		"http://orcid.org/0000-0002-1825-0097":  "0000-0002-1825-0097",
		"orcid.org/0000-0001-5109-3700":         "0000-0001-5109-3700",
		"0000-0002-1694-233x":                   "0000-0002-1694-233X",
		" 0000-0001 ":                           "0000-0001",
		"":                                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeORCID(in), in)
	}
}
