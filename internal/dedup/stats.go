// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"fmt"
	"time"

	"osprey-scan/internal/resilience"
)

// Summary accompanies a scan-level deduplication result.
type Summary struct {
	TotalFindings     int    `json:"totalFindings"`
	UniqueFindings    int    `json:"uniqueFindings"`
	DuplicatesRemoved int    `json:"duplicatesRemoved"`
	DeduplicationRate string `json:"deduplicationRate"`
	DeduplicationTime int64  `json:"deduplicationTime"` // milliseconds
}

// ErrorDetail captures the most recent engine failure.
type ErrorDetail struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
}

// Stats is the engine's cumulative statistics surface.
type Stats struct {
	TotalFindings     int64  `json:"totalFindings"`
	UniqueFindings    int64  `json:"uniqueFindings"`
	DuplicatesRemoved int64  `json:"duplicatesRemoved"`
	DeduplicationRate string `json:"deduplicationRate"`

	LastDurationMs    int64 `json:"lastDurationMs"`
	AverageDurationMs int64 `json:"averageDurationMs"`
	MaxDurationMs     int64 `json:"maxDurationMs"`

	CacheSize     int   `json:"cacheSize"`
	FallbackCount int64 `json:"fallbackCount"`
	ErrorCount    int64 `json:"errorCount"`

	CircuitBreaker resilience.CircuitBreakerStats `json:"circuitBreaker"`
	LastError      *ErrorDetail                   `json:"lastError,omitempty"`
}

// ratePercent renders removed/total as a one-decimal percentage string.
func ratePercent(removed, total int64) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(removed)/float64(total)*100)
}
