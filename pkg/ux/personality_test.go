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
	"os"
	"testing"
)

func TestSetPersonality_AndGet(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonality(Personality{Level: PersonalityMinimal})
	if got := GetPersonality().Level; got != PersonalityMinimal {
		t.Errorf("Level = %q, want %q", got, PersonalityMinimal)
	}

	SetPersonalityLevel(PersonalityMachine)
	if got := GetPersonality().Level; got != PersonalityMachine {
		t.Errorf("Level = %q, want %q", got, PersonalityMachine)
	}
}

func TestParsePersonalityLevel(t *testing.T) {
	cases := map[string]PersonalityLevel{
		"full":    PersonalityFull,
		"f":       PersonalityFull,
		"STD":     PersonalityStandard,
		"minimal": PersonalityMinimal,
		"quiet":   PersonalityMachine,
		"machine": PersonalityMachine,
		"bogus":   PersonalityStandard,
	}
	for in, want := range cases {
		if got := ParsePersonalityLevel(in); got != want {
			t.Errorf("ParsePersonalityLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInitPersonality_EnvOverride(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	os.Setenv("BIBLIOGRAPH_PERSONALITY", "minimal")
	defer os.Unsetenv("BIBLIOGRAPH_PERSONALITY")

	InitPersonality()
	if got := GetPersonality().Level; got != PersonalityMinimal {
		t.Errorf("Level = %q, want %q", got, PersonalityMinimal)
	}
}

func TestInitPersonality_NonTerminalGetsMachine(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	os.Unsetenv("BIBLIOGRAPH_PERSONALITY")

	// Under go test stdout is not a terminal, so the fallback applies.
	InitPersonality()
	if isTerminal() {
		t.Skip("stdout is a terminal")
	}
	if got := GetPersonality().Level; got != PersonalityMachine {
		t.Errorf("Level = %q, want %q", got, PersonalityMachine)
	}
}
