// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package dedup collapses duplicate findings across files and scans while
// preserving provenance. The engine is resilient by contract: whatever goes
// wrong inside the merge routine, callers always get back at least their
// original inputs.
package dedup

import (
	"fmt"
	"sync"
	"time"

	"osprey-scan/internal/detector"
	"osprey-scan/internal/fingerprint"
	"osprey-scan/internal/observability"
	"osprey-scan/internal/resilience"
)

const (
	// StatusFallback tags findings passed through untouched because the
	// merge routine could not run safely.
	StatusFallback = "fallback"

	// ReasonBreakerOpen tags fallbacks short-circuited by an open breaker.
	ReasonBreakerOpen = "circuit_breaker_open"

	DefaultCacheSize     = 1000
	DefaultTimeout       = 5 * time.Second
	DefaultMemoryLimitMB = 100

	// perFindingOverheadBytes approximates per-record bookkeeping cost when
	// estimating batch memory.
	perFindingOverheadBytes = 256
)

// Config tunes one engine instance.
type Config struct {
	CacheSize               int
	Timeout                 time.Duration
	MemoryLimitMB           int
	CircuitBreakerThreshold int
	CircuitBreakerResetTime time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	breaker := resilience.DefaultCircuitBreakerConfig()
	return Config{
		CacheSize:               DefaultCacheSize,
		Timeout:                 DefaultTimeout,
		MemoryLimitMB:           DefaultMemoryLimitMB,
		CircuitBreakerThreshold: breaker.FailureThreshold,
		CircuitBreakerResetTime: breaker.ResetTimeout,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MemoryLimitMB <= 0 {
		c.MemoryLimitMB = d.MemoryLimitMB
	}
	if c.CircuitBreakerThreshold <= 0 {
		c.CircuitBreakerThreshold = d.CircuitBreakerThreshold
	}
	if c.CircuitBreakerResetTime <= 0 {
		c.CircuitBreakerResetTime = d.CircuitBreakerResetTime
	}
	return c
}

// Engine performs file-level and scan-level deduplication. Instances are
// independent: each owns its cache, breaker, and statistics, and is safe for
// concurrent use.
type Engine struct {
	config   Config
	observer *observability.StandardObserver

	mu      sync.Mutex
	cache   *recordCache
	breaker *resilience.CircuitBreaker

	totalFindings     int64
	uniqueFindings    int64
	duplicatesRemoved int64
	fallbackCount     int64
	errorCount        int64
	runCount          int64
	totalDurationMs   int64
	lastDurationMs    int64
	maxDurationMs     int64
	lastError         *ErrorDetail
}

// NewEngine creates a deduplication engine. A nil observer disables
// operation logging.
func NewEngine(config Config, observer *observability.StandardObserver) *Engine {
	cfg := config.normalize()
	return &Engine{
		config:   cfg,
		observer: observer,
		cache:    newRecordCache(cfg.CacheSize),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.CircuitBreakerThreshold,
			ResetTimeout:     cfg.CircuitBreakerResetTime,
		}),
	}
}

// DeduplicateFileFindings merges duplicate findings within one file's scan
// results. filePath fills in the provenance of findings that don't carry
// their own.
func (e *Engine) DeduplicateFileFindings(findings []*detector.InputFinding, filePath string) []*detector.Finding {
	merged, _ := e.run("file", findings, filePath)
	return merged
}

// DeduplicateScanFindings merges duplicate findings across an entire scan
// and reports summary statistics for the call.
func (e *Engine) DeduplicateScanFindings(findings []*detector.InputFinding) ([]*detector.Finding, Summary) {
	return e.run("scan", findings, "")
}

// run executes one deduplication operation with the full resilience
// envelope: breaker short-circuit, memory guard, soft timeout, panic
// recovery, and guaranteed pass-through fallback.
func (e *Engine) run(op string, findings []*detector.InputFinding, filePath string) ([]*detector.Finding, Summary) {
	start := time.Now()
	finish := func(success bool, out []*detector.Finding) ([]*detector.Finding, Summary) {
		elapsed := time.Since(start)
		summary := e.record(success, len(findings), len(out), elapsed)
		if e.observer != nil {
			e.observer.LogOperation(observability.OperationRecord{
				Component:  "dedup_engine",
				Operation:  op,
				DurationMs: elapsed.Milliseconds(),
				Success:    success,
				MatchCount: len(out),
			})
		}
		return out, summary
	}

	if len(findings) == 0 {
		return finish(true, []*detector.Finding{})
	}

	if !e.breaker.Allow() {
		// Rejected by an already-open breaker: fall back without counting
		// a new failure.
		e.noteFallback(ReasonBreakerOpen, nil)
		return finish(false, passthrough(findings, ReasonBreakerOpen))
	}

	if reason, exceeded := e.exceedsMemoryLimit(findings); exceeded {
		// Deterministic input-size guard, short-circuits without running
		// (and without charging the breaker for oversized input).
		e.noteFallback(resilience.ReasonPerformanceLimit, &ErrorDetail{
			Message:   reason,
			Timestamp: time.Now(),
			Operation: op,
		})
		return finish(false, passthrough(findings, resilience.ReasonPerformanceLimit))
	}

	merged, err := e.merge(findings, filePath, start.Add(e.config.Timeout))
	if err != nil {
		e.breaker.RecordFailure()
		e.noteFallback(resilience.FallbackReason(err), &ErrorDetail{
			Message:   err.Error(),
			Timestamp: time.Now(),
			Operation: op,
		})
		return finish(false, passthrough(findings, resilience.FallbackReason(err)))
	}

	e.breaker.RecordSuccess()
	return finish(true, merged)
}

// merge is the core routine: fingerprint each input and fold it into the
// batch's staged record, seeded from the cross-call cache when a prior run
// saw the same fingerprint. The staged records are committed to the cache
// only once the whole batch succeeds, so a timeout or panic leaves the cache
// untouched, and every normalized input yields an output record even when
// the batch cardinality exceeds the cache bound (eviction can under-merge a
// later call, never drop a result from this one). Malformed entries are
// skipped silently; the soft timeout is checked between findings.
func (e *Engine) merge(findings []*detector.InputFinding, filePath string, deadline time.Time) (out []*detector.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &resilience.DeduplicationError{Op: "merge", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	var touched []string
	batch := make(map[string]*detector.Finding)

	for _, in := range findings {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, &resilience.ResourceLimitError{
				Limit:   "time",
				Message: fmt.Sprintf("deduplication exceeded %s budget", e.config.Timeout),
			}
		}

		f, ok := in.Normalize(filePath)
		if !ok {
			continue
		}

		key := fingerprint.Compute(f.Pattern.ID, f.Locations[0].File, f.Value)
		record, seen := batch[key]
		if !seen {
			touched = append(touched, key)
			if cached := e.cache.get(key); cached != nil {
				record = cached.Clone()
			}
		}
		if record == nil {
			record = f.Clone()
		} else {
			mergeInto(record, f)
		}
		batch[key] = record
	}

	out = make([]*detector.Finding, 0, len(touched))
	for _, key := range touched {
		record := batch[key]
		e.cache.put(key, record)
		out = append(out, record.Clone())
	}
	return out, nil
}

// mergeInto folds src into the cached record: max confidence, max severity,
// summed occurrence counts, and locations appended unless an identical
// (file, line, column) is already present.
func mergeInto(record, src *detector.Finding) {
	if src.Confidence > record.Confidence {
		record.Confidence = src.Confidence
	}
	record.Pattern.Severity = detector.MaxSeverity(record.Pattern.Severity, src.Pattern.Severity)
	record.OccurrenceCount += src.OccurrenceCount
	for _, loc := range src.Locations {
		if !record.HasLocation(loc) {
			record.Locations = append(record.Locations, loc)
		}
	}
	if record.Pattern.Name == "" {
		record.Pattern.Name = src.Pattern.Name
	}
}

// passthrough implements the fallback guarantee: every input comes back,
// same order and length, tagged but otherwise untouched. Field values are
// copied verbatim; nothing is validated or defaulted here.
func passthrough(findings []*detector.InputFinding, reason string) []*detector.Finding {
	out := make([]*detector.Finding, 0, len(findings))
	for _, in := range findings {
		f := &detector.Finding{
			DeduplicationStatus: StatusFallback,
			FallbackReason:      reason,
		}
		if in != nil {
			f.Pattern = detector.PatternSummary{
				ID:       in.PatternID,
				Name:     in.PatternName,
				Category: in.Category,
				Severity: in.Severity,
			}
			f.Value = in.Value
			f.FullMatch = in.FullMatch
			f.Start = in.Index
			f.Length = len(in.Value)
			f.Context = in.Context
			f.Confidence = in.Confidence
			f.OccurrenceCount = in.OccurrenceCount
			if len(in.Locations) > 0 {
				f.Locations = make([]detector.Location, len(in.Locations))
				copy(f.Locations, in.Locations)
			} else if in.File != "" || in.Line != 0 {
				f.Locations = []detector.Location{{File: in.File, Line: in.Line, Column: in.Column, Index: in.Index}}
			}
		}
		out = append(out, f)
	}
	return out
}

// exceedsMemoryLimit estimates the batch's in-memory footprint and reports
// whether it blows the configured budget.
func (e *Engine) exceedsMemoryLimit(findings []*detector.InputFinding) (string, bool) {
	limit := int64(e.config.MemoryLimitMB) * 1024 * 1024
	var estimate int64
	for _, in := range findings {
		estimate += perFindingOverheadBytes
		if in == nil {
			continue
		}
		estimate += int64(len(in.Value) + len(in.FullMatch) + len(in.Context.Full))
		estimate += int64(len(in.Locations)) * 64
		if estimate > limit {
			return fmt.Sprintf("estimated batch size exceeds %dMB", e.config.MemoryLimitMB), true
		}
	}
	return "", false
}

// record updates cumulative statistics for one finished operation and
// returns the per-call summary.
func (e *Engine) record(success bool, total, unique int, elapsed time.Duration) Summary {
	removed := total - unique
	if removed < 0 {
		removed = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ms := elapsed.Milliseconds()
	e.runCount++
	e.totalDurationMs += ms
	e.lastDurationMs = ms
	if ms > e.maxDurationMs {
		e.maxDurationMs = ms
	}
	e.totalFindings += int64(total)
	e.uniqueFindings += int64(unique)
	if success {
		e.duplicatesRemoved += int64(removed)
	}

	return Summary{
		TotalFindings:     total,
		UniqueFindings:    unique,
		DuplicatesRemoved: removed,
		DeduplicationRate: ratePercent(int64(removed), int64(total)),
		DeduplicationTime: ms,
	}
}

// noteFallback records fallback bookkeeping shared by all short-circuit and
// failure paths.
func (e *Engine) noteFallback(reason string, detail *ErrorDetail) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallbackCount++
	if reason != ReasonBreakerOpen && reason != resilience.ReasonPerformanceLimit {
		e.errorCount++
	}
	if detail != nil {
		e.lastError = detail
	}
}

// Stats returns a snapshot of the engine's cumulative statistics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	var avg int64
	if e.runCount > 0 {
		avg = e.totalDurationMs / e.runCount
	}
	stats := Stats{
		TotalFindings:     e.totalFindings,
		UniqueFindings:    e.uniqueFindings,
		DuplicatesRemoved: e.duplicatesRemoved,
		DeduplicationRate: ratePercent(e.duplicatesRemoved, e.totalFindings),
		LastDurationMs:    e.lastDurationMs,
		AverageDurationMs: avg,
		MaxDurationMs:     e.maxDurationMs,
		CacheSize:         e.cache.len(),
		FallbackCount:     e.fallbackCount,
		ErrorCount:        e.errorCount,
		CircuitBreaker:    e.breaker.GetStats(),
	}
	if e.lastError != nil {
		detail := *e.lastError
		stats.LastError = &detail
	}
	return stats
}

// ClearCache empties the fingerprint cache, typically between logical scans.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.clear()
}

// Breaker exposes the engine's circuit breaker for inspection and manual
// reset.
func (e *Engine) Breaker() *resilience.CircuitBreaker {
	return e.breaker
}
