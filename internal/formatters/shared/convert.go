// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package shared holds the output structures common to the structured
// formatters, so JSON and YAML renderings stay field-for-field identical.
package shared

import (
	"osprey-scan/internal/dedup"
	"osprey-scan/internal/detector"
	"osprey-scan/internal/formatters"
)

// RedactedValue replaces matched text when the caller did not ask to see it.
const RedactedValue = "[REDACTED]"

// Report is the top-level structured output document.
type Report struct {
	Count    int        `json:"count" yaml:"count"`
	Findings []Finding  `json:"findings" yaml:"findings"`
	Summary  *ScanStats `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Finding is the externally-visible rendering of one finding.
type Finding struct {
	Pattern             PatternInfo `json:"pattern" yaml:"pattern"`
	Value               string      `json:"value" yaml:"value"`
	Confidence          float64     `json:"confidence" yaml:"confidence"`
	OccurrenceCount     int         `json:"occurrenceCount" yaml:"occurrenceCount"`
	Locations           []Location  `json:"locations" yaml:"locations"`
	Context             string      `json:"context,omitempty" yaml:"context,omitempty"`
	DeduplicationStatus string      `json:"deduplicationStatus,omitempty" yaml:"deduplicationStatus,omitempty"`
	FallbackReason      string      `json:"fallbackReason,omitempty" yaml:"fallbackReason,omitempty"`
}

// PatternInfo identifies the pattern behind a finding.
type PatternInfo struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Severity string `json:"severity" yaml:"severity"`
}

// Location is one occurrence of a finding.
type Location struct {
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
}

// ScanStats is the deduplication summary rendered into reports.
type ScanStats struct {
	TotalFindings     int    `json:"totalFindings" yaml:"totalFindings"`
	UniqueFindings    int    `json:"uniqueFindings" yaml:"uniqueFindings"`
	DuplicatesRemoved int    `json:"duplicatesRemoved" yaml:"duplicatesRemoved"`
	DeduplicationRate string `json:"deduplicationRate" yaml:"deduplicationRate"`
	DeduplicationTime int64  `json:"deduplicationTime" yaml:"deduplicationTime"`
}

// BuildReport converts findings and the optional deduplication summary into
// the shared output document, redacting values unless requested.
func BuildReport(findings []*detector.Finding, summary *dedup.Summary, options formatters.FormatterOptions) Report {
	report := Report{
		Count:    len(findings),
		Findings: make([]Finding, 0, len(findings)),
	}

	for _, f := range findings {
		value := f.Value
		if !options.ShowMatch {
			value = RedactedValue
		}

		out := Finding{
			Pattern: PatternInfo{
				ID:       f.Pattern.ID,
				Name:     f.Pattern.Name,
				Category: string(f.Pattern.Category),
				Severity: string(f.Pattern.Severity),
			},
			Value:               value,
			Confidence:          f.Confidence,
			OccurrenceCount:     f.OccurrenceCount,
			Locations:           make([]Location, 0, len(f.Locations)),
			DeduplicationStatus: f.DeduplicationStatus,
			FallbackReason:      f.FallbackReason,
		}
		if options.Verbose && options.ShowMatch {
			out.Context = f.Context.Full
		}
		for _, loc := range f.Locations {
			out.Locations = append(out.Locations, Location{
				File:   loc.File,
				Line:   loc.Line,
				Column: loc.Column,
			})
		}
		report.Findings = append(report.Findings, out)
	}

	if summary != nil && options.ShowStats {
		report.Summary = &ScanStats{
			TotalFindings:     summary.TotalFindings,
			UniqueFindings:    summary.UniqueFindings,
			DuplicatesRemoved: summary.DuplicatesRemoved,
			DeduplicationRate: summary.DeduplicationRate,
			DeduplicationTime: summary.DeduplicationTime,
		}
	}

	return report
}
