// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import "testing"

func TestNormalize_RejectsEmptyRecords(t *testing.T) {
	var nilInput *InputFinding
	if _, ok := nilInput.Normalize("f"); ok {
		t.Error("nil input must be rejected")
	}
	if _, ok := (&InputFinding{}).Normalize("f"); ok {
		t.Error("record with no pattern and no value must be rejected")
	}
	if _, ok := (&InputFinding{Value: "   "}).Normalize("f"); ok {
		t.Error("whitespace-only value with no pattern must be rejected")
	}
}

func TestNormalize_AppliesDefaults(t *testing.T) {
	in := &InputFinding{PatternID: "p", Value: "v", Confidence: 1.7, Severity: "absurd"}

	f, ok := in.Normalize("fallback.txt")
	if !ok {
		t.Fatal("expected record to normalize")
	}
	if f.Pattern.Severity != SeverityMedium {
		t.Errorf("expected default severity medium, got %q", f.Pattern.Severity)
	}
	if f.Pattern.Category != CategorySecrets {
		t.Errorf("expected default category secrets, got %q", f.Pattern.Category)
	}
	if f.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %v", f.Confidence)
	}
	if len(f.Locations) != 1 || f.Locations[0].File != "fallback.txt" {
		t.Errorf("expected synthesized location with fallback file, got %+v", f.Locations)
	}
	if f.OccurrenceCount != 1 {
		t.Errorf("expected occurrence count 1, got %d", f.OccurrenceCount)
	}
}

func TestNormalize_KeepsAccumulatedCount(t *testing.T) {
	in := &InputFinding{
		PatternID:       "p",
		Value:           "v",
		OccurrenceCount: 5,
		Locations:       []Location{{File: "a", Line: 1}, {File: "b", Line: 2}},
	}

	f, ok := in.Normalize("")
	if !ok {
		t.Fatal("expected record to normalize")
	}
	if f.OccurrenceCount != 5 {
		t.Errorf("pre-merged count must survive, got %d", f.OccurrenceCount)
	}
	if len(f.Locations) != 2 {
		t.Errorf("expected 2 locations, got %d", len(f.Locations))
	}
}

func TestMaxSeverity(t *testing.T) {
	if got := MaxSeverity(SeverityLow, SeverityCritical); got != SeverityCritical {
		t.Errorf("expected critical, got %q", got)
	}
	if got := MaxSeverity(SeverityHigh, "unknown"); got != SeverityHigh {
		t.Errorf("unknown severity must never win, got %q", got)
	}
}

func TestFindingClone_Independent(t *testing.T) {
	f := &Finding{Value: "v", Locations: []Location{{File: "a", Line: 1}}}
	c := f.Clone()
	c.Locations[0].Line = 99
	c.Value = "changed"

	if f.Locations[0].Line != 1 || f.Value != "v" {
		t.Error("clone must not share state with the original")
	}
}
