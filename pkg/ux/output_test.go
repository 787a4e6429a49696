// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"io"
	"os"
	"strings"
	"testing"
)

// capture redirects stdout while fn runs and returns what it wrote.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()
	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(out)
}

func TestSuccess_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := capture(t, func() { Success("ingested") })
	if out != "OK: ingested\n" {
		t.Errorf("output = %q", out)
	}
}

func TestInfo_MachineModeIsPlain(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := capture(t, func() { Info("nodes=12") })
	if out != "nodes=12\n" {
		t.Errorf("output = %q", out)
	}
}

func TestMuted_MachineModeIsSilent(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := capture(t, func() { Muted("stopping watcher") })
	if out != "" {
		t.Errorf("output = %q", out)
	}
}

func TestFileStatus_MachineModeIsTabSeparated(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := capture(t, func() { FileStatus("drop/works.json", IconSuccess, "works=3") })
	fields := strings.Split(strings.TrimSpace(out), "\t")
	if len(fields) != 3 || fields[1] != "drop/works.json" {
		t.Errorf("output = %q", out)
	}
}

func TestSummary_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := capture(t, func() { Summary(5, 1, 6) })
	if out != "SUMMARY: accepted=5 rejected=1 total=6\n" {
		t.Errorf("output = %q", out)
	}
}

func TestIconRender_PassesThroughPlainIcons(t *testing.T) {
	if IconArrow.Render() != string(IconArrow) {
		t.Errorf("IconArrow.Render() = %q", IconArrow.Render())
	}
}
