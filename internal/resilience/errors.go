// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"errors"
	"fmt"
)

// ReasonPerformanceLimit tags fallbacks caused by time or memory budgets.
const ReasonPerformanceLimit = "performance_limit"

// DeduplicationError wraps a failure inside the merge routine. It never
// propagates out of the engine; it drives the fallback path and the circuit
// breaker instead.
type DeduplicationError struct {
	Op  string
	Err error
}

func (e *DeduplicationError) Error() string {
	return fmt.Sprintf("deduplication %s failed: %v", e.Op, e.Err)
}

func (e *DeduplicationError) Unwrap() error {
	return e.Err
}

// ResourceLimitError reports an exceeded time or memory budget. Treated as a
// soft failure: the operation falls back, the scan continues.
type ResourceLimitError struct {
	Limit   string
	Message string
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("%s limit exceeded: %s", e.Limit, e.Message)
}

// IsResourceLimit checks whether err is (or wraps) a resource limit error.
func IsResourceLimit(err error) bool {
	var rle *ResourceLimitError
	return errors.As(err, &rle)
}

// FallbackReason maps an engine error to the reason string carried on
// passed-through findings: budget overruns report "performance_limit",
// anything else reports its error class.
func FallbackReason(err error) string {
	if err == nil {
		return ""
	}
	if IsResourceLimit(err) {
		return ReasonPerformanceLimit
	}
	var de *DeduplicationError
	if errors.As(err, &de) {
		return "deduplication_error"
	}
	return fmt.Sprintf("%T", err)
}
