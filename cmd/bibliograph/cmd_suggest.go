// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/Bibliograph/pkg/ux"
	"github.com/AleutianAI/Bibliograph/services/scholar"
	"github.com/spf13/cobra"
)

func runRelated(cmd *cobra.Command, args []string) {
	start := time.Now()
	query := strings.Join(args, " ")

	q := url.Values{}
	q.Set("query", query)
	q.Set("k", strconv.Itoa(relatedK))

	var resp scholar.RelatedResponse
	err := api().getJSON(cmd.Context(), "/v1/corpus/suggestions/related?"+q.Encode(), &resp)
	if code, handled := OutputResult(jsonOutput, "suggest related", start, resp, err); handled {
		os.Exit(code)
	}

	ux.Title(fmt.Sprintf("Related to %q", query))
	for _, c := range resp.Candidates {
		ux.Info(fmt.Sprintf("%.4f  %s  %s", c.Certainty, c.Key, c.Title))
	}
}

func runSuggestKeywords(cmd *cobra.Command, args []string) {
	start := time.Now()
	req := scholar.KeywordSuggestRequest{
		Title: strings.Join(args, " "),
		Venue: suggestVenue,
		Year:  suggestYear,
		Type:  suggestType,
	}

	var resp scholar.KeywordSuggestResponse
	err := api().postJSON(cmd.Context(), "/v1/corpus/suggestions/keywords", req, &resp)
	if code, handled := OutputResult(jsonOutput, "suggest keywords", start, resp, err); handled {
		os.Exit(code)
	}

	for _, kw := range resp.Keywords {
		fmt.Printf("%s %s\n", ux.IconBullet, kw)
	}
}
