// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package dedup

import "osprey-scan/internal/detector"

// recordCache is a bounded fingerprint→record map with insertion-order
// eviction. Evicting a live fingerprint can only cause under-merging (the
// value reappears as a fresh record), never an incorrect merge, which is the
// accepted trade-off for bounding memory on extreme-cardinality scans.
//
// Not safe for concurrent use; the engine serializes access.
type recordCache struct {
	bound int
	order []string
	items map[string]*detector.Finding
}

func newRecordCache(bound int) *recordCache {
	return &recordCache{
		bound: bound,
		items: make(map[string]*detector.Finding, bound),
	}
}

func (c *recordCache) get(key string) *detector.Finding {
	return c.items[key]
}

func (c *recordCache) put(key string, f *detector.Finding) {
	if _, exists := c.items[key]; exists {
		c.items[key] = f
		return
	}
	if len(c.items) >= c.bound {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.items[key] = f
	c.order = append(c.order, key)
}

func (c *recordCache) len() int {
	return len(c.items)
}

func (c *recordCache) clear() {
	c.order = c.order[:0]
	c.items = make(map[string]*detector.Finding, c.bound)
}
