// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package fingerprint produces the deterministic identity hash used to
// recognize the same finding across files, scans, and user feedback.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// NormalizePath canonicalizes a file path for hashing: separators become
// forward slashes and a leading "./" is stripped, so "./src/x.js",
// "src/x.js" and `src\x.js` all fingerprint identically.
func NormalizePath(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return p
}

// NormalizeValue canonicalizes a matched value for hashing.
func NormalizeValue(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Compute returns the 256-bit hex fingerprint of (patternID, filePath,
// value). Missing fields hash as empty strings so a degenerate but
// deterministic fingerprint is always produced.
func Compute(patternID, filePath, value string) string {
	composite := strings.Join([]string{
		patternID,
		NormalizePath(filePath),
		NormalizeValue(value),
	}, "|")
	hash := sha256.Sum256([]byte(composite))
	return fmt.Sprintf("%x", hash)
}

// FeedbackKey returns the path-independent fingerprint of (patternID, value)
// used by the learning store, where corrections apply to a value wherever it
// appears.
func FeedbackKey(patternID, value string) string {
	return Compute(patternID, "", value)
}
