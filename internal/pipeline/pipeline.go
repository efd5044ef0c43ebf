// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pipeline orchestrates a single content scan: pattern selection,
// matching against a shared position ledger, confidence scoring, local
// deduplication, and confidence-ordered output.
package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"osprey-scan/internal/detector"
	"osprey-scan/internal/feedback"
	"osprey-scan/internal/matcher"
	"osprey-scan/internal/observability"
	"osprey-scan/internal/patterns"
	"osprey-scan/internal/scoring"
)

const (
	// DefaultConfidenceThreshold drops matches the scorer considers more
	// likely noise than signal.
	DefaultConfidenceThreshold = 0.5

	// proximityWindow is the maximum distance, in characters, between two
	// same-value matches of one pattern for them to count as one finding.
	proximityWindow = 10

	// resultCacheSize bounds the content-level result cache.
	resultCacheSize = 128
)

// Options tunes a single ScanContent call.
type Options struct {
	// FilePath is recorded on finding locations; empty for anonymous content.
	FilePath string

	// Categories restricts which patterns run; empty runs all of them.
	Categories []detector.Category

	// ConfidenceThreshold drops findings scoring below it. Zero means the
	// default threshold.
	ConfidenceThreshold float64

	// MaxMatches and ContextWindow are passed to the match finder; zero
	// means the finder's defaults.
	MaxMatches    int
	ContextWindow int

	// DisableLocalDedup skips proximity collapsing, occurrence aggregation
	// and cross-pattern suppression, returning every scored match.
	DisableLocalDedup bool
}

func (o Options) normalize() Options {
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return o
}

// signature renders the options fields that affect scan results, for use in
// the result cache key.
func (o Options) signature() string {
	cats := make([]string, len(o.Categories))
	for i, c := range o.Categories {
		cats[i] = string(c)
	}
	return fmt.Sprintf("%s|%s|%.4f|%d|%d|%t",
		o.FilePath, strings.Join(cats, ","), o.ConfidenceThreshold,
		o.MaxMatches, o.ContextWindow, o.DisableLocalDedup)
}

// MatchingError wraps a failure inside one pattern's matching or scoring
// pass. The scan continues with the remaining patterns.
type MatchingError struct {
	PatternID string
	Err       error
}

func (e *MatchingError) Error() string {
	return fmt.Sprintf("pattern %q: matching failed: %v", e.PatternID, e.Err)
}

func (e *MatchingError) Unwrap() error {
	return e.Err
}

// Pipeline runs registered patterns over content and produces scored,
// locally-deduplicated findings. Safe for concurrent use.
type Pipeline struct {
	registry *patterns.Registry
	scorer   *scoring.Scorer
	observer *observability.StandardObserver

	mu    sync.Mutex
	cache *resultCache
}

// NewPipeline creates a pipeline over the given registry. The feedback store
// may be nil to scan without learned adjustments.
func NewPipeline(registry *patterns.Registry, store *feedback.Store, observer *observability.StandardObserver) *Pipeline {
	return &Pipeline{
		registry: registry,
		scorer:   scoring.NewScorer(store),
		observer: observer,
		cache:    newResultCache(resultCacheSize),
	}
}

// ScanContent scans one content blob and returns findings ordered by
// descending confidence. A pattern whose matching pass panics is skipped and
// reported through the returned errors; the rest of the scan is unaffected.
func (p *Pipeline) ScanContent(content string, opts Options) ([]*detector.Finding, []error) {
	opts = opts.normalize()
	done := p.observer.StartTiming("pipeline", "scan_content")

	key := cacheKey(content, opts)
	p.mu.Lock()
	cached := p.cache.get(key)
	p.mu.Unlock()
	if cached != nil {
		done(true, map[string]interface{}{"cache": "hit", "findings": len(cached)})
		return cached, nil
	}

	defs := p.registry.Select(opts.Categories)
	lines := newLineIndex(content)
	global := matcher.NewLedger()
	mopts := matcher.Options{ContextWindow: opts.ContextWindow, MaxMatches: opts.MaxMatches}

	var findings []*detector.Finding
	var errs []error
	order := make(map[string]int, len(defs))

	for i, def := range defs {
		order[def.ID] = i
		scored, err := p.scanPattern(def, content, global, lines, opts, mopts)
		if err != nil {
			errs = append(errs, err)
			p.observer.LogOperation(observability.OperationRecord{
				Component: "pipeline",
				Operation: "scan_pattern",
				Error:     err.Error(),
			})
			continue
		}
		if !opts.DisableLocalDedup {
			scored = collapseProximate(scored)
		}
		findings = append(findings, scored...)
	}

	if !opts.DisableLocalDedup {
		findings = aggregateOccurrences(findings)
		findings = suppressCrossPattern(findings, order)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Confidence != findings[j].Confidence {
			return findings[i].Confidence > findings[j].Confidence
		}
		return findings[i].Start < findings[j].Start
	})

	p.mu.Lock()
	p.cache.put(key, findings)
	p.mu.Unlock()

	done(len(errs) == 0, map[string]interface{}{"cache": "miss", "findings": len(findings), "patterns": len(defs)})
	return findings, errs
}

// ClearCache drops all cached scan results, e.g. after feedback changes the
// scoring inputs.
func (p *Pipeline) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.clear()
}

// scanPattern runs one pattern, scores its matches, and promotes accepted
// ranges into the global ledger so later patterns cannot claim them.
func (p *Pipeline) scanPattern(def *patterns.Definition, content string, global *matcher.Ledger, lines *lineIndex, opts Options, mopts matcher.Options) (out []*detector.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &MatchingError{PatternID: def.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	raw := matcher.Find(def, content, global, mopts)
	for _, m := range raw {
		confidence, _ := p.scorer.Score(def, m)
		if confidence < opts.ConfidenceThreshold {
			continue
		}
		global.Claim(m.Start, m.End())

		line, column := lines.locate(m.Start)
		out = append(out, &detector.Finding{
			Pattern:         def.Summary(),
			Value:           m.Value,
			FullMatch:       m.FullMatch,
			Start:           m.Start,
			Length:          m.Length,
			Context:         m.Context,
			Confidence:      confidence,
			OccurrenceCount: 1,
			Locations: []detector.Location{{
				File:   opts.FilePath,
				Line:   line,
				Column: column,
				Index:  m.Start,
			}},
		})
	}
	return out, nil
}

// collapseProximate folds same-value matches of one pattern that sit within
// the proximity window into a single finding. The richer finding wins: more
// surrounding context first, then the longer value, then the earlier match.
func collapseProximate(findings []*detector.Finding) []*detector.Finding {
	if len(findings) < 2 {
		return findings
	}
	var kept []*detector.Finding
	for _, f := range findings {
		merged := false
		for i, k := range kept {
			if normalizeValue(f.Value) != normalizeValue(k.Value) {
				continue
			}
			if distance(f.Start, k.Start) > proximityWindow {
				continue
			}
			if richer(f, k) {
				kept[i] = f
			}
			merged = true
			break
		}
		if !merged {
			kept = append(kept, f)
		}
	}
	return kept
}

// richer reports whether a should replace b when the two describe the same
// proximate value.
func richer(a, b *detector.Finding) bool {
	if la, lb := len(a.Context.Full), len(b.Context.Full); la != lb {
		return la > lb
	}
	if la, lb := len(a.Value), len(b.Value); la != lb {
		return la > lb
	}
	return a.Start < b.Start
}

// aggregateOccurrences merges repeated occurrences of one pattern's value at
// distinct positions into a single finding carrying every location. The
// earliest occurrence stays the representative; confidence is the maximum
// across occurrences.
func aggregateOccurrences(findings []*detector.Finding) []*detector.Finding {
	type groupKey struct {
		patternID string
		value     string
	}
	index := make(map[groupKey]*detector.Finding, len(findings))
	var out []*detector.Finding

	for _, f := range findings {
		key := groupKey{f.Pattern.ID, normalizeValue(f.Value)}
		existing := index[key]
		if existing == nil {
			index[key] = f
			out = append(out, f)
			continue
		}
		if f.Confidence > existing.Confidence {
			existing.Confidence = f.Confidence
		}
		for _, loc := range f.Locations {
			if !existing.HasLocation(loc) {
				existing.Locations = append(existing.Locations, loc)
			}
		}
		existing.OccurrenceCount = len(existing.Locations)
	}
	return out
}

// suppressCrossPattern drops findings whose value was also claimed by a
// higher-confidence pattern. Ties keep the pattern registered first.
func suppressCrossPattern(findings []*detector.Finding, order map[string]int) []*detector.Finding {
	best := make(map[string]*detector.Finding, len(findings))
	for _, f := range findings {
		key := normalizeValue(f.Value)
		current := best[key]
		if current == nil {
			best[key] = f
			continue
		}
		if f.Confidence > current.Confidence {
			best[key] = f
			continue
		}
		if f.Confidence == current.Confidence && order[f.Pattern.ID] < order[current.Pattern.ID] {
			best[key] = f
		}
	}

	out := findings[:0]
	for _, f := range findings {
		if best[normalizeValue(f.Value)] == f {
			out = append(out, f)
		}
	}
	return out
}

func normalizeValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// cacheKey hashes the content together with the result-affecting options.
func cacheKey(content string, opts Options) string {
	d := xxhash.New()
	d.WriteString(content)
	d.WriteString("\x00")
	d.WriteString(opts.signature())
	return strconv.FormatUint(d.Sum64(), 16)
}

// resultCache is a bounded scan-result cache with insertion-order eviction.
// Values are cloned on the way in and out so callers can mutate freely.
type resultCache struct {
	bound int
	order []string
	items map[string][]*detector.Finding
}

func newResultCache(bound int) *resultCache {
	return &resultCache{
		bound: bound,
		items: make(map[string][]*detector.Finding, bound),
	}
}

func (c *resultCache) get(key string) []*detector.Finding {
	stored, ok := c.items[key]
	if !ok {
		return nil
	}
	return cloneFindings(stored)
}

func (c *resultCache) put(key string, findings []*detector.Finding) {
	if _, exists := c.items[key]; !exists {
		if len(c.items) >= c.bound {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.items, oldest)
		}
		c.order = append(c.order, key)
	}
	c.items[key] = cloneFindings(findings)
}

func (c *resultCache) clear() {
	c.order = c.order[:0]
	c.items = make(map[string][]*detector.Finding, c.bound)
}

func cloneFindings(in []*detector.Finding) []*detector.Finding {
	out := make([]*detector.Finding, len(in))
	for i, f := range in {
		out[i] = f.Clone()
	}
	return out
}
