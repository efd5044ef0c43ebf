// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("expected CLOSED after 2 failures, got %v", got)
	}

	cb.RecordFailure()
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("expected OPEN after 3 failures, got %v", got)
	}
	if cb.Allow() {
		t.Error("expected Allow to reject calls while OPEN")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if got := cb.GetState(); got != StateClosed {
		t.Errorf("expected CLOSED, got %v", got)
	}
}

func TestCircuitBreaker_HalfOpenTrialAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})

	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("expected rejection while OPEN")
	}

	time.Sleep(15 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("expected trial call after reset timeout")
	}
	if got := cb.GetState(); got != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %v", got)
	}

	cb.RecordSuccess()
	if got := cb.GetState(); got != StateClosed {
		t.Errorf("expected CLOSED after successful trial, got %v", got)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})

	cb.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("expected trial call after reset timeout")
	}

	cb.RecordFailure()
	if got := cb.GetState(); got != StateOpen {
		t.Errorf("expected OPEN after failed trial, got %v", got)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	cb.RecordFailure()
	cb.Reset()

	if got := cb.GetState(); got != StateClosed {
		t.Errorf("expected CLOSED after reset, got %v", got)
	}
	if !cb.Allow() {
		t.Error("expected Allow after reset")
	}
	if stats := cb.GetStats(); stats.FailureCount != 0 {
		t.Errorf("expected failure count 0, got %d", stats.FailureCount)
	}
}

func TestCircuitBreaker_StatsSnapshot(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 5, ResetTimeout: time.Minute})
	cb.RecordFailure()

	stats := cb.GetStats()
	if stats.State != "CLOSED" {
		t.Errorf("expected state CLOSED, got %q", stats.State)
	}
	if stats.FailureCount != 1 {
		t.Errorf("expected failure count 1, got %d", stats.FailureCount)
	}
	if stats.Threshold != 5 {
		t.Errorf("expected threshold 5, got %d", stats.Threshold)
	}
}

func TestFallbackReason_Classification(t *testing.T) {
	limit := &ResourceLimitError{Limit: "time", Message: "budget exceeded"}
	if got := FallbackReason(limit); got != ReasonPerformanceLimit {
		t.Errorf("expected %q for resource limit, got %q", ReasonPerformanceLimit, got)
	}

	dedup := &DeduplicationError{Op: "merge", Err: errors.New("boom")}
	if got := FallbackReason(dedup); got != "deduplication_error" {
		t.Errorf("expected deduplication_error, got %q", got)
	}

	wrapped := &DeduplicationError{Op: "merge", Err: &ResourceLimitError{Limit: "memory", Message: "too big"}}
	if got := FallbackReason(wrapped); got != ReasonPerformanceLimit {
		t.Errorf("expected wrapped resource limit to classify as %q, got %q", ReasonPerformanceLimit, got)
	}
}
