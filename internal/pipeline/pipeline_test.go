// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osprey-scan/internal/detector"
	"osprey-scan/internal/patterns"
)

func newTestPipeline(t *testing.T, defs ...patterns.Definition) *Pipeline {
	t.Helper()
	r := patterns.NewRegistry()
	require.NoError(t, r.RegisterAll(defs))
	return NewPipeline(r, nil, nil)
}

func TestScanContent_EarlierPatternClaimsOverlap(t *testing.T) {
	p := newTestPipeline(t,
		patterns.Definition{
			ID: "secret-assignment", Name: "Secret Assignment",
			Regex:        `secret[_-]?key\s*=\s*"([^"]+)"`,
			ExtractGroup: 1,
			Category:     detector.CategoryVulnerability,
		},
		patterns.Definition{
			ID: "bare-key", Name: "Bare Key",
			Regex:    `key`,
			Category: detector.CategoryVulnerability,
		},
	)

	findings, errs := p.ScanContent(`secret_key = "abc123XYZ"`, Options{})
	require.Empty(t, errs)
	require.Len(t, findings, 1, "the overlapping later pattern must be suppressed")
	assert.Equal(t, "secret-assignment", findings[0].Pattern.ID)
	assert.Equal(t, "abc123XYZ", findings[0].Value)
}

func TestScanContent_ThresholdDropsWeakMatches(t *testing.T) {
	p := newTestPipeline(t, patterns.Definition{
		ID: "weak", Name: "Weak",
		Regex:      `lowconf`,
		Confidence: 0.3,
		Category:   detector.CategoryVulnerability,
	})

	findings, errs := p.ScanContent("lowconf appears here", Options{})
	require.Empty(t, errs)
	assert.Empty(t, findings, "matches below the confidence threshold are dropped")
}

func TestScanContent_BelowThresholdDoesNotClaimPositions(t *testing.T) {
	p := newTestPipeline(t,
		patterns.Definition{
			ID: "weak", Name: "Weak",
			Regex:      `token_[a-z0-9]+`,
			Confidence: 0.3,
			Category:   detector.CategoryVulnerability,
		},
		patterns.Definition{
			ID: "strong", Name: "Strong",
			Regex:      `token_[a-z0-9]+`,
			Confidence: 0.9,
			Category:   detector.CategoryVulnerability,
		},
	)

	findings, errs := p.ScanContent("x token_abc123 y", Options{})
	require.Empty(t, errs)
	require.Len(t, findings, 1, "rejected matches must not block later patterns")
	assert.Equal(t, "strong", findings[0].Pattern.ID)
}

func TestScanContent_ConfidenceDescendingOrder(t *testing.T) {
	p := newTestPipeline(t,
		patterns.Definition{
			ID: "medium", Name: "Medium",
			Regex:      `alpha_token`,
			Confidence: 0.6,
			Category:   detector.CategoryVulnerability,
		},
		patterns.Definition{
			ID: "high", Name: "High",
			Regex:      `beta_token`,
			Confidence: 0.95,
			Category:   detector.CategoryVulnerability,
		},
	)

	findings, errs := p.ScanContent("alpha_token then beta_token", Options{})
	require.Empty(t, errs)
	require.Len(t, findings, 2)
	assert.Equal(t, "high", findings[0].Pattern.ID)
	assert.True(t, findings[0].Confidence >= findings[1].Confidence)
}

func TestScanContent_ProximateDuplicatesCollapse(t *testing.T) {
	p := newTestPipeline(t, patterns.Definition{
		ID: "tok", Name: "Token",
		Regex:      `abcd1234`,
		Confidence: 0.9,
		Category:   detector.CategoryVulnerability,
	})

	findings, errs := p.ScanContent("abcd1234 abcd1234", Options{})
	require.Empty(t, errs)
	require.Len(t, findings, 1, "same value within the proximity window is one finding")
	assert.Equal(t, 1, findings[0].OccurrenceCount)
}

func TestScanContent_DistantDuplicatesAggregate(t *testing.T) {
	p := newTestPipeline(t, patterns.Definition{
		ID: "tok", Name: "Token",
		Regex:      `abcd1234`,
		Confidence: 0.9,
		Category:   detector.CategoryVulnerability,
	})

	content := "abcd1234 ................................ \nabcd1234"
	findings, errs := p.ScanContent(content, Options{FilePath: "src/x.js"})
	require.Empty(t, errs)
	require.Len(t, findings, 1, "same value at distant positions is one finding with two locations")

	f := findings[0]
	assert.Equal(t, 2, f.OccurrenceCount)
	require.Len(t, f.Locations, 2)
	assert.Equal(t, 1, f.Locations[0].Line)
	assert.Equal(t, 2, f.Locations[1].Line)
	assert.Equal(t, "src/x.js", f.Locations[0].File)
}

func TestScanContent_CrossPatternValueSuppressed(t *testing.T) {
	p := newTestPipeline(t,
		patterns.Definition{
			ID: "lower", Name: "Lower",
			Regex:      `qrst7890`,
			Confidence: 0.6,
			Category:   detector.CategoryVulnerability,
		},
		patterns.Definition{
			ID: "upper", Name: "Upper",
			Regex:      `QRST7890`,
			Confidence: 0.9,
			Category:   detector.CategoryVulnerability,
		},
	)

	findings, errs := p.ScanContent("qrst7890 and QRST7890", Options{})
	require.Empty(t, errs)
	require.Len(t, findings, 1, "the same normalized value across patterns keeps one finding")
	assert.Equal(t, "upper", findings[0].Pattern.ID, "higher confidence wins")
}

func TestScanContent_LocalDedupCanBeDisabled(t *testing.T) {
	p := newTestPipeline(t, patterns.Definition{
		ID: "tok", Name: "Token",
		Regex:      `abcd1234`,
		Confidence: 0.9,
		Category:   detector.CategoryVulnerability,
	})

	findings, errs := p.ScanContent("abcd1234 abcd1234", Options{DisableLocalDedup: true})
	require.Empty(t, errs)
	assert.Len(t, findings, 2)
}

func TestScanContent_CategorySelection(t *testing.T) {
	p := newTestPipeline(t,
		patterns.Definition{
			ID: "sec", Name: "Sec",
			Regex:      `secretvalue123 =`,
			Confidence: 0.9,
			Category:   detector.CategorySecrets,
		},
		patterns.Definition{
			ID: "vuln", Name: "Vuln",
			Regex:      `eval\(userInput\)`,
			Confidence: 0.9,
			Category:   detector.CategoryVulnerability,
		},
	)

	content := "secretvalue123 = 1; eval(userInput)"
	findings, errs := p.ScanContent(content, Options{
		Categories: []detector.Category{detector.CategoryVulnerability},
	})
	require.Empty(t, errs)
	require.Len(t, findings, 1)
	assert.Equal(t, "vuln", findings[0].Pattern.ID)
}

func TestScanContent_CachedResultsAreIsolated(t *testing.T) {
	p := newTestPipeline(t, patterns.Definition{
		ID: "tok", Name: "Token",
		Regex:      `abcd1234`,
		Confidence: 0.9,
		Category:   detector.CategoryVulnerability,
	})

	opts := Options{FilePath: "f.js"}
	first, errs := p.ScanContent("abcd1234", opts)
	require.Empty(t, errs)
	require.Len(t, first, 1)
	first[0].Value = "mutated"

	second, _ := p.ScanContent("abcd1234", opts)
	require.Len(t, second, 1)
	assert.Equal(t, "abcd1234", second[0].Value, "cache must hand out isolated clones")
}

func TestScanContent_EmptyContent(t *testing.T) {
	p := newTestPipeline(t, patterns.Definition{
		ID: "tok", Name: "Token",
		Regex:      `abcd1234`,
		Confidence: 0.9,
		Category:   detector.CategoryVulnerability,
	})

	findings, errs := p.ScanContent("", Options{})
	require.Empty(t, errs)
	assert.Empty(t, findings)
}

func TestLineIndex_Locate(t *testing.T) {
	ix := newLineIndex("first\nsecond\nthird")

	cases := []struct {
		offset, line, column int
	}{
		{0, 1, 1},
		{4, 1, 5},
		{6, 2, 1},
		{12, 2, 7},
		{13, 3, 1},
	}
	for _, c := range cases {
		line, column := ix.locate(c.offset)
		assert.Equal(t, c.line, line, "offset %d line", c.offset)
		assert.Equal(t, c.column, column, "offset %d column", c.offset)
	}
}
