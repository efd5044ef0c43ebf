// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package feedback records user corrections (false positive / true positive)
// and feeds them back into confidence scoring.
package feedback

import (
	"sync"
	"time"

	"osprey-scan/internal/fingerprint"
)

const (
	// perVoteAdjustment is the confidence shift contributed by each net
	// feedback vote; the total feedback adjustment is clamped to
	// ±maxAdjustment.
	perVoteAdjustment = 0.05
	maxAdjustment     = 0.25

	// seedValueAdjustment applies to values on the known-placeholder seed
	// list that have no recorded votes of their own.
	seedValueAdjustment = -0.25
)

// Record tracks accumulated feedback for one (pattern, value) identity.
type Record struct {
	Fingerprint    string            `json:"fingerprint"`
	FalsePositives int               `json:"falsePositives"`
	TruePositives  int               `json:"truePositives"`
	LastFeedback   time.Time         `json:"lastFeedback"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Export is the durable, plain-serializable form of the whole store.
// Persistence of the exported object is the caller's concern.
type Export struct {
	FalsePositivePatterns []string           `json:"falsePositivePatterns"`
	TruePositivePatterns  []string           `json:"truePositivePatterns"`
	FeedbackData          map[string]*Record `json:"feedbackData"`
	Timestamp             time.Time          `json:"timestamp"`
}

// Store is a process-wide learning store. It grows without bound until
// exported and cleared; all methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	records  map[string]*Record
	fpValues map[string]bool
	tpValues map[string]bool
}

// seedFalsePositives is the built-in list of placeholder values that ship as
// known false positives after a clear.
var seedFalsePositives = []string{
	"xxxxxxxxxxxxxxxx",
	"0000000000000000",
	"1234567890abcdef",
	"your_api_key_here",
	"insert_key_here",
	"replace_with_actual",
	"example_secret_key",
	"placeholder_token",
	"sample_password",
	"dummy_credential",
	"fake_access_token",
	"test_api_key_here",
}

// NewStore creates a learning store pre-seeded with known placeholder values.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.records = make(map[string]*Record)
	s.fpValues = make(map[string]bool, len(seedFalsePositives))
	s.tpValues = make(map[string]bool)
	for _, v := range seedFalsePositives {
		s.fpValues[fingerprint.NormalizeValue(v)] = true
	}
}

// RecordFeedback registers one user correction for a value matched by the
// given pattern. isFalsePositive=true votes the finding down, false votes it
// up. Metadata is retained on the record, last write wins per key.
func (s *Store) RecordFeedback(patternID, value string, isFalsePositive bool, metadata map[string]string) {
	key := fingerprint.FeedbackKey(patternID, value)
	normalized := fingerprint.NormalizeValue(value)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		rec = &Record{Fingerprint: key}
		s.records[key] = rec
	}
	if isFalsePositive {
		rec.FalsePositives++
		s.fpValues[normalized] = true
	} else {
		rec.TruePositives++
		s.tpValues[normalized] = true
	}
	rec.LastFeedback = time.Now()
	if len(metadata) > 0 {
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			rec.Metadata[k] = v
		}
	}
}

// Adjustment returns the confidence delta the scorer applies for a
// (pattern, value) identity. More false-positive votes pull confidence down,
// more true-positive votes pull it up; seeded placeholder values with no
// votes of their own get the full negative adjustment.
func (s *Store) Adjustment(patternID, value string) float64 {
	key := fingerprint.FeedbackKey(patternID, value)
	normalized := fingerprint.NormalizeValue(value)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[key]; ok {
		adj := perVoteAdjustment * float64(rec.TruePositives-rec.FalsePositives)
		if adj > maxAdjustment {
			return maxAdjustment
		}
		if adj < -maxAdjustment {
			return -maxAdjustment
		}
		return adj
	}
	if s.fpValues[normalized] && !s.tpValues[normalized] {
		return seedValueAdjustment
	}
	return 0
}

// Export serializes the whole store into a plain object suitable for
// JSON/YAML persistence by the caller.
func (s *Store) Export() *Export {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &Export{
		FalsePositivePatterns: make([]string, 0, len(s.fpValues)),
		TruePositivePatterns:  make([]string, 0, len(s.tpValues)),
		FeedbackData:          make(map[string]*Record, len(s.records)),
		Timestamp:             time.Now(),
	}
	for v := range s.fpValues {
		out.FalsePositivePatterns = append(out.FalsePositivePatterns, v)
	}
	for v := range s.tpValues {
		out.TruePositivePatterns = append(out.TruePositivePatterns, v)
	}
	for k, rec := range s.records {
		cp := *rec
		if rec.Metadata != nil {
			cp.Metadata = make(map[string]string, len(rec.Metadata))
			for mk, mv := range rec.Metadata {
				cp.Metadata[mk] = mv
			}
		}
		out.FeedbackData[k] = &cp
	}
	return out
}

// Import restores a previously exported store, replacing current contents.
// A nil export clears to the seed state.
func (s *Store) Import(data *Export) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	if data == nil {
		return
	}
	for _, v := range data.FalsePositivePatterns {
		s.fpValues[fingerprint.NormalizeValue(v)] = true
	}
	for _, v := range data.TruePositivePatterns {
		s.tpValues[fingerprint.NormalizeValue(v)] = true
	}
	for k, rec := range data.FeedbackData {
		if rec == nil {
			continue
		}
		cp := *rec
		s.records[k] = &cp
	}
}

// Clear resets the store to the built-in seed of known placeholder values.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Len returns the number of feedback records currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
