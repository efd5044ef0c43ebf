// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package patterns

import (
	"os"
	"path/filepath"
	"testing"

	"osprey-scan/internal/detector"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadFile_RegistersDefinitions(t *testing.T) {
	path := writeCatalog(t, `
version: "1"
patterns:
  - id: acme-token
    name: Acme API Token
    category: secrets
    severity: high
    regex: 'acme_[a-z0-9]{16}'
    confidence: 0.9
    min_length: 21
    filters:
      - keyword: example
      - regex: '^acme_0{16}$'
`)

	r := NewRegistry()
	if err := LoadFile(r, path); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	def, ok := r.Get("acme-token")
	if !ok {
		t.Fatal("catalog pattern not registered")
	}
	if def.Severity != detector.SeverityHigh || def.Confidence != 0.9 {
		t.Errorf("fields not carried over: severity=%q confidence=%v", def.Severity, def.Confidence)
	}
	if len(def.Filters) != 2 {
		t.Errorf("expected 2 filters, got %d", len(def.Filters))
	}
}

func TestLoadFile_InvalidEntryFailsFast(t *testing.T) {
	path := writeCatalog(t, `
patterns:
  - id: broken
    name: Broken
    regex: '(unclosed'
`)

	r := NewRegistry()
	if err := LoadFile(r, path); !IsValidationError(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestLoadFile_FilterRequiresRegexOrKeyword(t *testing.T) {
	path := writeCatalog(t, `
patterns:
  - id: p
    name: p
    regex: 'x'
    filters:
      - {}
`)

	r := NewRegistry()
	if err := LoadFile(r, path); !IsValidationError(err) {
		t.Errorf("expected filter validation error, got %v", err)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	r := NewRegistry()
	if err := LoadFile(r, filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing catalog file")
	}
}
