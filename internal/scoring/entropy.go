// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scoring

import "math"

// ShannonEntropy computes base-2 entropy over the character frequency of s.
// Random tokens land above 3.5, English words and repeated filler below 2.0.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}
	entropy := 0.0
	n := float64(total)
	for _, c := range counts {
		p := float64(c) / n
		entropy += -p * math.Log2(p)
	}
	return entropy
}
