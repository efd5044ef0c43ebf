// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package patterns

import (
	"fmt"
	"regexp"
	"strings"

	"osprey-scan/internal/detector"
)

// DefaultConfidence is applied to definitions registered without a base confidence.
const DefaultConfidence = 0.8

// ValidatorFunc is a pattern-attached predicate asserting that an extracted
// value is plausible (checksum, structure, known prefix). A panicking
// validator is treated by the scorer as "did not validate", never propagated.
type ValidatorFunc func(value string) bool

// FilterKind selects how a false-positive filter is evaluated.
type FilterKind string

const (
	// FilterRegex discards a candidate when the expression matches its
	// extracted value or full match text.
	FilterRegex FilterKind = "regex"
	// FilterKeyword discards a candidate when the keyword appears
	// (case-insensitively) in the surrounding context window.
	FilterKeyword FilterKind = "keyword"
)

// Filter is a typed false-positive filter attached to a pattern definition.
// Exactly one of Pattern/Keyword is set depending on Kind; filters are
// validated and compiled at registration time.
type Filter struct {
	Kind    FilterKind
	Pattern string
	Keyword string

	re *regexp.Regexp
}

// Discards reports whether the filter rejects the candidate match.
func (f *Filter) Discards(value, fullMatch string, ctx detector.MatchContext) bool {
	switch f.Kind {
	case FilterRegex:
		return f.re.MatchString(value) || f.re.MatchString(fullMatch)
	case FilterKeyword:
		return strings.Contains(strings.ToLower(ctx.Full), strings.ToLower(f.Keyword))
	}
	return false
}

// Definition describes one detection pattern. Definitions are immutable after
// registration; the registry hands out pointers that must not be mutated.
type Definition struct {
	ID           string
	Name         string
	Category     detector.Category
	Severity     detector.Severity
	Regex        string
	ExtractGroup int
	Confidence   float64
	MinLength    int
	MaxLength    int
	Validator    ValidatorFunc
	Filters      []Filter

	compiled *regexp.Regexp
}

// Compiled returns the compiled regular expression for the definition.
func (d *Definition) Compiled() *regexp.Regexp {
	return d.compiled
}

// Summary returns the identifying fields carried on findings.
func (d *Definition) Summary() detector.PatternSummary {
	return detector.PatternSummary{
		ID:       d.ID,
		Name:     d.Name,
		Category: d.Category,
		Severity: d.Severity,
	}
}

// ValidationError reports a malformed pattern definition at registration.
// Registration is startup-time work, so these are intentionally fatal.
type ValidationError struct {
	PatternID string
	Field     string
	Message   string
}

func (e *ValidationError) Error() string {
	if e.PatternID != "" {
		return fmt.Sprintf("pattern %q: invalid %s: %s", e.PatternID, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid pattern %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a pattern validation error.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// Registry is a validated, immutable catalog of pattern definitions indexed
// by id and by category. Patterns register once at startup and live for the
// process lifetime; registration order is preserved because the match finder
// processes patterns in that order.
type Registry struct {
	ordered    []*Definition
	byID       map[string]*Definition
	byCategory map[detector.Category][]*Definition
}

// NewRegistry creates an empty pattern registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:       make(map[string]*Definition),
		byCategory: make(map[detector.Category][]*Definition),
	}
}

// Register validates def, applies defaults, compiles its expression and
// filters, and indexes it. A *ValidationError is returned for any missing or
// invalid field.
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return &ValidationError{Field: "id", Message: "required"}
	}
	if _, exists := r.byID[def.ID]; exists {
		return &ValidationError{PatternID: def.ID, Field: "id", Message: "already registered"}
	}
	if def.Name == "" {
		return &ValidationError{PatternID: def.ID, Field: "name", Message: "required"}
	}
	if def.Regex == "" {
		return &ValidationError{PatternID: def.ID, Field: "regex", Message: "required"}
	}

	compiled, err := regexp.Compile(def.Regex)
	if err != nil {
		return &ValidationError{PatternID: def.ID, Field: "regex", Message: err.Error()}
	}
	def.compiled = compiled

	if def.Category == "" {
		def.Category = detector.CategorySecrets
	} else if !detector.IsValidCategory(def.Category) {
		return &ValidationError{PatternID: def.ID, Field: "category", Message: fmt.Sprintf("unknown category %q", def.Category)}
	}

	if def.Severity == "" {
		def.Severity = detector.SeverityMedium
	} else if !detector.IsValidSeverity(def.Severity) {
		return &ValidationError{PatternID: def.ID, Field: "severity", Message: fmt.Sprintf("unknown severity %q", def.Severity)}
	}

	if def.Confidence == 0 {
		def.Confidence = DefaultConfidence
	}
	if def.Confidence < 0 || def.Confidence > 1 {
		return &ValidationError{PatternID: def.ID, Field: "confidence", Message: "must be within [0,1]"}
	}

	if def.ExtractGroup < 0 || def.ExtractGroup > compiled.NumSubexp() {
		return &ValidationError{PatternID: def.ID, Field: "extractGroup", Message: fmt.Sprintf("group %d out of range (pattern has %d)", def.ExtractGroup, compiled.NumSubexp())}
	}

	if def.MinLength < 0 || def.MaxLength < 0 || (def.MaxLength > 0 && def.MinLength > def.MaxLength) {
		return &ValidationError{PatternID: def.ID, Field: "length", Message: "invalid min/max length bounds"}
	}

	if def.Filters == nil {
		def.Filters = []Filter{}
	}
	for i := range def.Filters {
		f := &def.Filters[i]
		switch f.Kind {
		case FilterRegex:
			if f.Pattern == "" {
				return &ValidationError{PatternID: def.ID, Field: "filters", Message: "regex filter requires a pattern"}
			}
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return &ValidationError{PatternID: def.ID, Field: "filters", Message: err.Error()}
			}
			f.re = re
		case FilterKeyword:
			if f.Keyword == "" {
				return &ValidationError{PatternID: def.ID, Field: "filters", Message: "keyword filter requires a keyword"}
			}
		default:
			return &ValidationError{PatternID: def.ID, Field: "filters", Message: fmt.Sprintf("unknown filter kind %q", f.Kind)}
		}
	}

	stored := def
	r.ordered = append(r.ordered, &stored)
	r.byID[stored.ID] = &stored
	r.byCategory[stored.Category] = append(r.byCategory[stored.Category], &stored)
	return nil
}

// RegisterAll registers each definition in order, returning the first
// validation failure. Intended for startup, where failing fast is the point.
func (r *Registry) RegisterAll(defs []Definition) error {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the definition registered under id.
func (r *Registry) Get(id string) (*Definition, bool) {
	def, ok := r.byID[id]
	return def, ok
}

// ByCategory returns definitions of one category in registration order.
func (r *Registry) ByCategory(c detector.Category) []*Definition {
	return r.byCategory[c]
}

// All returns every definition in registration order.
func (r *Registry) All() []*Definition {
	return r.ordered
}

// Select returns definitions for the requested categories in overall
// registration order. An empty category list selects everything.
func (r *Registry) Select(categories []detector.Category) []*Definition {
	if len(categories) == 0 {
		return r.ordered
	}
	want := make(map[detector.Category]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	var out []*Definition
	for _, def := range r.ordered {
		if want[def.Category] {
			out = append(out, def)
		}
	}
	return out
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	return len(r.ordered)
}
