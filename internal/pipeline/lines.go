// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"sort"
	"strings"
)

// lineIndex maps byte offsets in a content blob to 1-based line and column
// numbers. Built once per scan so repeated lookups are binary searches
// instead of rescans.
type lineIndex struct {
	starts []int
}

func newLineIndex(content string) *lineIndex {
	starts := []int{0}
	offset := 0
	for {
		i := strings.IndexByte(content[offset:], '\n')
		if i < 0 {
			break
		}
		offset += i + 1
		starts = append(starts, offset)
	}
	return &lineIndex{starts: starts}
}

// locate returns the 1-based line and column containing offset.
func (ix *lineIndex) locate(offset int) (line, column int) {
	n := sort.Search(len(ix.starts), func(i int) bool {
		return ix.starts[i] > offset
	})
	line = n
	column = offset - ix.starts[n-1] + 1
	return line, column
}
