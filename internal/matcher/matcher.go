// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package matcher turns one pattern and one content blob into raw,
// non-overlapping matches with context windows.
package matcher

import (
	"osprey-scan/internal/detector"
	"osprey-scan/internal/patterns"
)

const (
	// DefaultContextWindow is the radius, in characters, of the context
	// extracted around each match.
	DefaultContextWindow = 50

	// DefaultMaxMatches caps accepted matches per pattern so pathological
	// input (minified bundles, generated data) stays bounded.
	DefaultMaxMatches = 20
)

// Options tunes a single matching pass.
type Options struct {
	ContextWindow int
	MaxMatches    int
}

// normalize fills in defaults for unset options.
func (o Options) normalize() Options {
	if o.ContextWindow <= 0 {
		o.ContextWindow = DefaultContextWindow
	}
	if o.MaxMatches <= 0 {
		o.MaxMatches = DefaultMaxMatches
	}
	return o
}

// Find runs def's expression over content and returns accepted raw matches
// in position order. A candidate is rejected when it overlaps a range in the
// shared global ledger (claimed by an earlier-accepted pattern), overlaps a
// range accepted earlier in this same pass, exceeds the pattern's maximum
// length, or trips one of the pattern's false-positive filters.
//
// Accepted matches claim ranges only in the per-pattern ledger here;
// promotion into the global ledger is the pipeline's job, after the match
// clears the confidence threshold.
func Find(def *patterns.Definition, content string, global *Ledger, opts Options) []detector.RawMatch {
	opts = opts.normalize()
	re := def.Compiled()

	var accepted []detector.RawMatch
	own := NewLedger()

	// One pass over the whole content; re-searching a sliced suffix would
	// let ^ and (?m) anchors match mid-line at the slice boundary.
	for _, loc := range re.FindAllStringSubmatchIndex(content, -1) {
		if len(accepted) >= opts.MaxMatches {
			break
		}

		start, end := loc[0], loc[1]
		if end == start {
			continue
		}

		if global != nil && global.Overlaps(start, end) {
			continue
		}
		if own.Overlaps(start, end) {
			continue
		}

		fullMatch := content[start:end]
		value := fullMatch
		groups := captureGroups(content, loc)
		if def.ExtractGroup > 0 {
			g := groupText(content, loc, def.ExtractGroup)
			if g == "" {
				continue
			}
			value = g
		}

		if def.MaxLength > 0 && len(value) > def.MaxLength {
			continue
		}

		ctx := extractContext(content, start, end, opts.ContextWindow)

		discarded := false
		for i := range def.Filters {
			if def.Filters[i].Discards(value, fullMatch, ctx) {
				discarded = true
				break
			}
		}
		if discarded {
			continue
		}

		accepted = append(accepted, detector.RawMatch{
			Value:     value,
			FullMatch: fullMatch,
			Start:     start,
			Length:    end - start,
			Context:   ctx,
			Groups:    groups,
		})
		own.Claim(start, end)
	}

	return accepted
}

// groupText returns the text of capture group n, or "" when the group did
// not participate in the match.
func groupText(content string, loc []int, n int) string {
	if 2*n+1 >= len(loc) {
		return ""
	}
	s, e := loc[2*n], loc[2*n+1]
	if s < 0 || e < 0 {
		return ""
	}
	return content[s:e]
}

// captureGroups collects all participating capture group texts for the match.
func captureGroups(content string, loc []int) []string {
	if len(loc) <= 2 {
		return nil
	}
	groups := make([]string, 0, len(loc)/2-1)
	for i := 2; i+1 < len(loc); i += 2 {
		s, e := loc[i], loc[i+1]
		if s < 0 || e < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, content[s:e])
	}
	return groups
}

// extractContext returns the window of text surrounding [start,end) with the
// given radius, clamped at content edges.
func extractContext(content string, start, end, radius int) detector.MatchContext {
	beforeStart := start - radius
	if beforeStart < 0 {
		beforeStart = 0
	}
	afterEnd := end + radius
	if afterEnd > len(content) {
		afterEnd = len(content)
	}
	return detector.MatchContext{
		Before: content[beforeStart:start],
		After:  content[end:afterEnd],
		Full:   content[beforeStart:afterEnd],
	}
}
