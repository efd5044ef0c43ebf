// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package scoring estimates how likely a raw match is a true positive by
// combining pattern confidence with context, entropy, validator, length,
// category/severity bias, and learned feedback.
package scoring

import (
	"regexp"
	"strings"

	"osprey-scan/internal/detector"
	"osprey-scan/internal/feedback"
	"osprey-scan/internal/patterns"
)

const (
	adjAssignment    = 0.15
	adjEnvAccess     = 0.20
	adjConfigAccess  = 0.10
	adjFalseVocab    = -0.30
	adjComment       = -0.20
	adjMinLength     = 0.10
	adjValidator     = 0.15
	adjHighEntropy   = 0.10
	adjLowEntropy    = -0.20
	highEntropyLimit = 3.5
	lowEntropyLimit  = 2.0
)

// falsePositiveVocabulary lowers confidence when it appears near a match.
var falsePositiveVocabulary = []string{
	"example", "placeholder", "test", "demo", "sample", "mock", "fake", "dummy",
}

var (
	// assignmentIdiom matches an identifier being assigned right before the
	// match, e.g. `api_key = "` or `"token":`.
	assignmentIdiom = regexp.MustCompile(`[\w$"'\]\.]+\s*[:=]\s*["'` + "`" + `]?\s*$`)

	// envAccessIdiom matches environment variable access immediately before
	// the match across common languages.
	envAccessIdiom = regexp.MustCompile(`(?i)(process\.env\.?|os\.environ|getenv\s*\(|ENV\[)[^\n]*$`)

	// configAccessIdiom matches configuration-object access near the match.
	configAccessIdiom = regexp.MustCompile(`(?i)\b(config|settings|options|cfg|conf)[\.\[][^\n]*$`)

	// commentOpener matches a line/block/HTML/hash comment opener directly
	// before the match.
	commentOpener = regexp.MustCompile(`(//|/\*|<!--|#)[^\n]*$`)
)

// Scorer computes bounded confidence scores for raw matches. A nil feedback
// store disables the learned adjustment.
type Scorer struct {
	feedback *feedback.Store
}

// NewScorer creates a scorer consulting the given learning store.
func NewScorer(store *feedback.Store) *Scorer {
	return &Scorer{feedback: store}
}

// Score returns the clamped [0,1] confidence for match under def, along with
// the per-factor adjustments that produced it.
func (s *Scorer) Score(def *patterns.Definition, match detector.RawMatch) (float64, map[string]float64) {
	factors := make(map[string]float64, 8)
	confidence := def.Confidence
	factors["base"] = def.Confidence

	if adj := contextAdjustment(match.Context); adj != 0 {
		factors["context"] = adj
		confidence += adj
	}

	if def.MinLength > 0 && len(match.Value) >= def.MinLength {
		factors["length"] = adjMinLength
		confidence += adjMinLength
	}

	if def.Validator != nil && safeValidate(def.Validator, match.Value) {
		factors["validator"] = adjValidator
		confidence += adjValidator
	}

	entropy := ShannonEntropy(match.Value)
	switch {
	case entropy > highEntropyLimit:
		factors["entropy"] = adjHighEntropy
		confidence += adjHighEntropy
	case entropy < lowEntropyLimit:
		factors["entropy"] = adjLowEntropy
		confidence += adjLowEntropy
	}

	if s.feedback != nil {
		if adj := s.feedback.Adjustment(def.ID, match.Value); adj != 0 {
			factors["feedback"] = adj
			confidence += adj
		}
	}

	if adj := categoryAdjustment(def.Category, factors["context"]); adj != 0 {
		factors["category"] = adj
		confidence += adj
	}
	if adj := severityAdjustment(def.Severity); adj != 0 {
		factors["severity"] = adj
		confidence += adj
	}

	return Clamp01(confidence), factors
}

// contextAdjustment scores the surroundings of a match. The positive idioms
// are mutually exclusive; the vocabulary and comment penalties stack.
func contextAdjustment(ctx detector.MatchContext) float64 {
	adj := 0.0

	switch {
	case assignmentIdiom.MatchString(ctx.Before):
		adj += adjAssignment
	case envAccessIdiom.MatchString(ctx.Before):
		adj += adjEnvAccess
	case configAccessIdiom.MatchString(ctx.Before):
		adj += adjConfigAccess
	}

	surrounding := strings.ToLower(ctx.Before + " " + ctx.After)
	for _, word := range falsePositiveVocabulary {
		if strings.Contains(surrounding, word) {
			adj += adjFalseVocab
			break
		}
	}

	if commentOpener.MatchString(ctx.Before) {
		adj += adjComment
	}

	return adj
}

// categoryAdjustment biases scoring per category: secrets demand positive
// context evidence, configurations are scanned more leniently.
func categoryAdjustment(category detector.Category, contextAdj float64) float64 {
	switch category {
	case detector.CategorySecrets:
		if contextAdj <= 0 {
			return -0.05
		}
		return 0
	case detector.CategoryConfigurations:
		return 0.05
	default:
		return 0
	}
}

// severityAdjustment demands a stronger baseline from critical findings and
// is more permissive for low-severity ones.
func severityAdjustment(severity detector.Severity) float64 {
	switch severity {
	case detector.SeverityCritical:
		return -0.05
	case detector.SeverityLow:
		return 0.05
	default:
		return 0
	}
}

// safeValidate runs a pattern validator, treating a panic as "did not
// validate" rather than propagating it into the scan.
func safeValidate(fn patterns.ValidatorFunc, value string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return fn(value)
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
