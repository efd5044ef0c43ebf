// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

// Category classifies what kind of exposure a pattern detects.
type Category string

const (
	CategorySecrets        Category = "secrets"
	CategoryVulnerability  Category = "vulnerabilities"
	CategoryConfigurations Category = "configurations"
)

// ValidCategories lists the accepted pattern categories.
var ValidCategories = []Category{CategorySecrets, CategoryVulnerability, CategoryConfigurations}

// IsValidCategory reports whether c is an accepted category.
func IsValidCategory(c Category) bool {
	for _, v := range ValidCategories {
		if c == v {
			return true
		}
	}
	return false
}

// Severity is the ordinal risk classification of a finding (critical > high > medium > low).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank orders severities for max-severity merges. Unknown values rank
// below "low" so malformed input can never displace a real severity.
var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// IsValidSeverity reports whether s is an accepted severity.
func IsValidSeverity(s Severity) bool {
	_, ok := severityRank[s]
	return ok
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[a] >= severityRank[b] {
		return a
	}
	return b
}

// MatchContext holds the text surrounding a match.
type MatchContext struct {
	Before string `json:"before"`
	After  string `json:"after"`
	Full   string `json:"full"`
}

// RawMatch is a single regex hit before scoring and merging. It is ephemeral,
// created per scan call and discarded once the pipeline returns.
type RawMatch struct {
	Value     string       `json:"value"`
	FullMatch string       `json:"fullMatch"`
	Start     int          `json:"start"`
	Length    int          `json:"length"`
	Context   MatchContext `json:"context"`
	Groups    []string     `json:"groups,omitempty"`
}

// End returns the exclusive end index of the match range.
func (m RawMatch) End() int {
	return m.Start + m.Length
}

// Location records one occurrence of a finding's value.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Index  int    `json:"index"`
}

// PatternSummary carries the identifying pattern fields on a finding without
// referencing the compiled pattern itself.
type PatternSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
}

// Finding is a scored occurrence of a pattern match, possibly spanning
// multiple locations after merging.
type Finding struct {
	Pattern         PatternSummary `json:"pattern"`
	Value           string         `json:"value"`
	FullMatch       string         `json:"fullMatch,omitempty"`
	Start           int            `json:"start"`
	Length          int            `json:"length"`
	Context         MatchContext   `json:"context"`
	Confidence      float64        `json:"confidence"`
	OccurrenceCount int            `json:"occurrenceCount"`
	Locations       []Location     `json:"locations"`

	// Fallback tagging applied by the deduplication engine when the merge
	// routine could not run and inputs were passed through unmodified.
	DeduplicationStatus string `json:"deduplicationStatus,omitempty"`
	FallbackReason      string `json:"fallbackReason,omitempty"`
}

// HasLocation reports whether the finding already records an identical
// (file, line, column) occurrence.
func (f *Finding) HasLocation(loc Location) bool {
	for _, l := range f.Locations {
		if l.File == loc.File && l.Line == loc.Line && l.Column == loc.Column {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the finding. The deduplication engine hands
// out clones so cached records cannot be mutated by callers.
func (f *Finding) Clone() *Finding {
	out := *f
	out.Locations = make([]Location, len(f.Locations))
	copy(out.Locations, f.Locations)
	return &out
}
