// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import "strings"

// InputFinding is the loosely-structured record accepted at the
// deduplication boundary. Orchestrators hand these over from per-file or
// per-URL scans and nothing about them is trusted: any field may be missing
// and whole entries may be nil. Normalize turns one into a canonical Finding
// or rejects it, never panicking.
type InputFinding struct {
	PatternID       string       `json:"patternId"`
	PatternName     string       `json:"patternName,omitempty"`
	Category        Category     `json:"category,omitempty"`
	Severity        Severity     `json:"severity,omitempty"`
	Value           string       `json:"value"`
	FullMatch       string       `json:"fullMatch,omitempty"`
	File            string       `json:"file,omitempty"`
	Line            int          `json:"line,omitempty"`
	Column          int          `json:"column,omitempty"`
	Index           int          `json:"index,omitempty"`
	Confidence      float64      `json:"confidence,omitempty"`
	OccurrenceCount int          `json:"occurrenceCount,omitempty"`
	Locations       []Location   `json:"locations,omitempty"`
	Context         MatchContext `json:"context,omitempty"`
}

// FromFinding converts a pipeline Finding back into the loose boundary form,
// carrying the file path on each recorded location.
func FromFinding(f *Finding, file string) *InputFinding {
	if f == nil {
		return nil
	}
	in := &InputFinding{
		PatternID:       f.Pattern.ID,
		PatternName:     f.Pattern.Name,
		Category:        f.Pattern.Category,
		Severity:        f.Pattern.Severity,
		Value:           f.Value,
		FullMatch:       f.FullMatch,
		File:            file,
		Index:           f.Start,
		Confidence:      f.Confidence,
		OccurrenceCount: f.OccurrenceCount,
		Context:         f.Context,
	}
	in.Locations = make([]Location, len(f.Locations))
	copy(in.Locations, f.Locations)
	return in
}

// Normalize converts the loose record into a canonical Finding. It returns
// ok=false for entries missing both a pattern id and a value; those are soft
// validation failures the engine silently skips. Defaults: severity "medium",
// category "secrets", occurrence count derived from the location list.
func (in *InputFinding) Normalize(defaultFile string) (*Finding, bool) {
	if in == nil {
		return nil, false
	}
	value := strings.TrimSpace(in.Value)
	if in.PatternID == "" && value == "" {
		return nil, false
	}

	severity := in.Severity
	if !IsValidSeverity(severity) {
		severity = SeverityMedium
	}
	category := in.Category
	if !IsValidCategory(category) {
		category = CategorySecrets
	}

	confidence := in.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	file := in.File
	if file == "" {
		file = defaultFile
	}

	f := &Finding{
		Pattern: PatternSummary{
			ID:       in.PatternID,
			Name:     in.PatternName,
			Category: category,
			Severity: severity,
		},
		Value:      in.Value,
		FullMatch:  in.FullMatch,
		Start:      in.Index,
		Length:     len(in.Value),
		Context:    in.Context,
		Confidence: confidence,
	}

	if len(in.Locations) > 0 {
		f.Locations = make([]Location, len(in.Locations))
		copy(f.Locations, in.Locations)
		for i := range f.Locations {
			if f.Locations[i].File == "" {
				f.Locations[i].File = file
			}
		}
	} else {
		f.Locations = []Location{{File: file, Line: in.Line, Column: in.Column, Index: in.Index}}
	}

	// A pre-merged record keeps its accumulated count; a bare occurrence
	// counts once per recorded location.
	if in.OccurrenceCount > len(f.Locations) {
		f.OccurrenceCount = in.OccurrenceCount
	} else {
		f.OccurrenceCount = len(f.Locations)
	}

	return f, true
}
