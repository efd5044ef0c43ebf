// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package matcher

// Ledger tracks claimed [start,end) character ranges within one content
// scan. A shared instance is used across patterns so competing patterns can
// never both report overlapping text; per-pattern instances guard a single
// pattern's own pass.
type Ledger struct {
	ranges [][2]int
}

// NewLedger creates an empty position ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Overlaps reports whether [start,end) intersects any claimed range.
func (l *Ledger) Overlaps(start, end int) bool {
	for _, r := range l.ranges {
		if start < r[1] && r[0] < end {
			return true
		}
	}
	return false
}

// Claim marks [start,end) as taken. Empty ranges are ignored.
func (l *Ledger) Claim(start, end int) {
	if end <= start {
		return
	}
	l.ranges = append(l.ranges, [2]int{start, end})
}

// Len returns the number of claimed ranges.
func (l *Ledger) Len() int {
	return len(l.ranges)
}
