// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osprey-scan/internal/detector"
	"osprey-scan/internal/resilience"
)

func input(patternID, value, file string, line int) *detector.InputFinding {
	return &detector.InputFinding{
		PatternID:  patternID,
		Value:      value,
		File:       file,
		Line:       line,
		Column:     1,
		Severity:   detector.SeverityMedium,
		Category:   detector.CategorySecrets,
		Confidence: 0.8,
	}
}

func TestDeduplicateFileFindings_MergesDuplicates(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	a := input("p", "AKIA1234", "src/app.js", 10)
	a.Confidence = 0.7
	b := input("p", "AKIA1234", "src/app.js", 42)
	b.Confidence = 0.9
	b.Severity = detector.SeverityHigh

	out := e.DeduplicateFileFindings([]*detector.InputFinding{a, b}, "src/app.js")
	require.Len(t, out, 1)

	f := out[0]
	assert.Equal(t, 0.9, f.Confidence, "merge keeps the max confidence")
	assert.Equal(t, detector.SeverityHigh, f.Pattern.Severity, "merge keeps the max severity")
	assert.Equal(t, 2, f.OccurrenceCount)
	require.Len(t, f.Locations, 2)
	assert.Empty(t, f.DeduplicationStatus)
}

func TestDeduplicateFileFindings_DistinctValuesStaySeparate(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	out := e.DeduplicateFileFindings([]*detector.InputFinding{
		input("p", "value-one", "f.js", 1),
		input("p", "value-two", "f.js", 2),
		input("q", "value-one", "f.js", 3),
	}, "f.js")

	assert.Len(t, out, 3, "different values and different patterns never merge")
}

func TestDeduplicateFileFindings_IdenticalLocationNotDoubled(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	a := input("p", "tok", "f.js", 7)
	b := input("p", "tok", "f.js", 7)

	out := e.DeduplicateFileFindings([]*detector.InputFinding{a, b}, "f.js")
	require.Len(t, out, 1)
	assert.Len(t, out[0].Locations, 1, "identical (file,line,column) must not repeat")
	assert.Equal(t, 2, out[0].OccurrenceCount, "occurrence count still accumulates")
}

func TestDeduplicateScanFindings_Summary(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	findings := []*detector.InputFinding{
		input("p", "dup", "a.js", 1),
		input("p", "dup", "a.js", 2),
		input("p", "uniq", "a.js", 3),
		input("p", "uniq2", "a.js", 4),
	}
	out, summary := e.DeduplicateScanFindings(findings)

	assert.Len(t, out, 3)
	assert.Equal(t, 4, summary.TotalFindings)
	assert.Equal(t, 3, summary.UniqueFindings)
	assert.Equal(t, 1, summary.DuplicatesRemoved)
	assert.Equal(t, "25.0%", summary.DeduplicationRate)
}

func TestDeduplicateScanFindings_Idempotent(t *testing.T) {
	findings := []*detector.InputFinding{
		input("p", "dup", "a.js", 1),
		input("p", "dup", "a.js", 2),
		input("p", "uniq", "b.js", 3),
	}

	first, _ := NewEngine(DefaultConfig(), nil).DeduplicateScanFindings(findings)

	again := make([]*detector.InputFinding, 0, len(first))
	for _, f := range first {
		again = append(again, detector.FromFinding(f, ""))
	}
	second, summary := NewEngine(DefaultConfig(), nil).DeduplicateScanFindings(again)

	require.Len(t, second, len(first))
	assert.Equal(t, 0, summary.DuplicatesRemoved)
	for i := range first {
		assert.Equal(t, first[i].Value, second[i].Value)
		assert.Equal(t, first[i].OccurrenceCount, second[i].OccurrenceCount)
		assert.Equal(t, first[i].Confidence, second[i].Confidence)
		assert.Len(t, second[i].Locations, len(first[i].Locations))
	}
}

func TestDeduplicate_EmptyInput(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	out, summary := e.DeduplicateScanFindings(nil)

	require.NotNil(t, out)
	assert.Len(t, out, 0)
	assert.Equal(t, "0.0%", summary.DeduplicationRate)
}

func TestDeduplicate_MalformedEntriesSkipped(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	out := e.DeduplicateFileFindings([]*detector.InputFinding{
		nil,
		{},
		input("p", "kept", "f.js", 1),
	}, "f.js")

	require.Len(t, out, 1)
	assert.Equal(t, "kept", out[0].Value)
}

func TestDeduplicate_OpenBreakerPassesThrough(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	for i := 0; i < 3; i++ {
		e.Breaker().RecordFailure()
	}
	require.Equal(t, resilience.StateOpen, e.Breaker().GetState())

	findings := []*detector.InputFinding{
		input("p", "dup", "f.js", 1),
		input("p", "dup", "f.js", 2),
	}
	out := e.DeduplicateFileFindings(findings, "f.js")

	require.Len(t, out, 2, "fallback preserves input length")
	for i, f := range out {
		assert.Equal(t, StatusFallback, f.DeduplicationStatus)
		assert.Equal(t, ReasonBreakerOpen, f.FallbackReason)
		assert.Equal(t, findings[i].Value, f.Value, "fallback preserves input order")
	}

	stats := e.Stats()
	assert.Equal(t, int64(1), stats.FallbackCount)
	assert.Equal(t, int64(0), stats.ErrorCount, "open-breaker rejections are not new failures")
}

func TestDeduplicate_TimeoutFallsBackAndChargesBreaker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = time.Nanosecond
	e := NewEngine(cfg, nil)

	findings := []*detector.InputFinding{input("p", "v", "f.js", 1)}
	for i := 0; i < 3; i++ {
		out := e.DeduplicateFileFindings(findings, "f.js")
		require.Len(t, out, 1)
		assert.Equal(t, StatusFallback, out[0].DeduplicationStatus)
		assert.Equal(t, resilience.ReasonPerformanceLimit, out[0].FallbackReason)
	}

	assert.Equal(t, resilience.StateOpen, e.Breaker().GetState(), "repeated timeouts open the breaker")

	stats := e.Stats()
	assert.Equal(t, int64(3), stats.FallbackCount)
	require.NotNil(t, stats.LastError)
	assert.Contains(t, stats.LastError.Message, "time limit exceeded")
	assert.Equal(t, 0, stats.CacheSize, "an abandoned batch must not leave partial records behind")
}

func TestDeduplicate_MemoryGuardPassesThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryLimitMB = 1
	e := NewEngine(cfg, nil)

	huge := input("p", strings.Repeat("x", 2*1024*1024), "f.js", 1)
	out := e.DeduplicateFileFindings([]*detector.InputFinding{huge}, "f.js")

	require.Len(t, out, 1)
	assert.Equal(t, StatusFallback, out[0].DeduplicationStatus)
	assert.Equal(t, resilience.ReasonPerformanceLimit, out[0].FallbackReason)
	assert.Equal(t, resilience.StateClosed, e.Breaker().GetState(), "oversized input does not charge the breaker")
}

func TestDeduplicate_CacheEvictionKeepsEveryResult(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheSize = 100
	e := NewEngine(cfg, nil)

	findings := make([]*detector.InputFinding, 0, 150)
	for i := 0; i < 150; i++ {
		findings = append(findings, input("p", fmt.Sprintf("value-%d", i), "f.js", i+1))
	}
	out, summary := e.DeduplicateScanFindings(findings)

	// Eviction may cost a later call a merge opportunity, never this call a
	// result.
	require.Len(t, out, 150)
	assert.Equal(t, 0, summary.DuplicatesRemoved)
	assert.Equal(t, 100, e.Stats().CacheSize)
}

func TestDeduplicate_FilePhaseThenScanPhase(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	fileOut := e.DeduplicateFileFindings([]*detector.InputFinding{
		input("p", "v", "f.js", 1),
	}, "f.js")
	require.Len(t, fileOut, 1)

	e.ClearCache()
	out, summary := e.DeduplicateScanFindings([]*detector.InputFinding{
		detector.FromFinding(fileOut[0], ""),
	})

	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].OccurrenceCount, "a record must not merge with its own earlier-phase copy")
	assert.Len(t, out[0].Locations, 1)
	assert.Equal(t, 0, summary.DuplicatesRemoved)
}

func TestDeduplicate_ScaleRun(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	findings := make([]*detector.InputFinding, 0, 10000)
	for i := 0; i < 10000; i++ {
		findings = append(findings, input("p", fmt.Sprintf("value-%d", i%500), "f.js", i+1))
	}

	out, summary := e.DeduplicateScanFindings(findings)
	require.NotEmpty(t, out)
	assert.Equal(t, 10000, summary.TotalFindings)
	assert.Equal(t, resilience.StateClosed, e.Breaker().GetState())
	assert.Equal(t, int64(0), e.Stats().ErrorCount)
}

func TestClearCache(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	e.DeduplicateFileFindings([]*detector.InputFinding{input("p", "v", "f.js", 1)}, "f.js")
	require.Equal(t, 1, e.Stats().CacheSize)

	e.ClearCache()
	assert.Equal(t, 0, e.Stats().CacheSize)
}

func TestMergedResultsAreClones(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	out := e.DeduplicateFileFindings([]*detector.InputFinding{input("p", "v", "f.js", 1)}, "f.js")
	require.Len(t, out, 1)
	out[0].Value = "mutated"
	out[0].Locations[0].Line = 999

	again := e.DeduplicateFileFindings([]*detector.InputFinding{input("p", "v", "f.js", 1)}, "f.js")
	require.Len(t, again, 1)
	assert.Equal(t, "v", again[0].Value, "cached record must be isolated from caller mutation")
	assert.Equal(t, 1, again[0].Locations[0].Line)
}
