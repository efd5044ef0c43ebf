// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected default config, got error: %v", err)
	}

	if cfg.Defaults.Format != "text" {
		t.Errorf("expected default format text, got %q", cfg.Defaults.Format)
	}
	if cfg.Defaults.ConfidenceThreshold != 0.5 {
		t.Errorf("expected default threshold 0.5, got %v", cfg.Defaults.ConfidenceThreshold)
	}
	if !cfg.Deduplication.Enabled {
		t.Error("expected deduplication enabled by default")
	}
	if cfg.Deduplication.CacheSize != 1000 {
		t.Errorf("expected default cache size 1000, got %d", cfg.Deduplication.CacheSize)
	}
	if cfg.DedupTimeout() != 5*time.Second {
		t.Errorf("expected default dedup timeout 5s, got %v", cfg.DedupTimeout())
	}
	if cfg.GetProfile("precommit") == nil {
		t.Error("expected built-in precommit profile")
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
defaults:
  format: json
  confidence_threshold: 0.7
  categories:
    - secrets
deduplication:
  cache_size: 50
  circuit_breaker_threshold: 5
profiles:
  audit:
    format: yaml
    verbose: true
    description: full audit output
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Defaults.Format != "json" {
		t.Errorf("expected format json, got %q", cfg.Defaults.Format)
	}
	if cfg.Defaults.ConfidenceThreshold != 0.7 {
		t.Errorf("expected threshold 0.7, got %v", cfg.Defaults.ConfidenceThreshold)
	}
	if cfg.Deduplication.CacheSize != 50 {
		t.Errorf("expected cache size 50, got %d", cfg.Deduplication.CacheSize)
	}
	if !cfg.Deduplication.Enabled {
		t.Error("deduplication.enabled must keep its default when absent from the file")
	}

	profile := cfg.GetProfile("audit")
	if profile == nil {
		t.Fatal("expected audit profile")
	}
	if profile.Format != "yaml" || !profile.Verbose {
		t.Errorf("profile fields not loaded: %+v", profile)
	}
}

func TestLoadConfig_ExplicitDedupDisable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
deduplication:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Deduplication.Enabled {
		t.Error("explicit enabled: false must be honored")
	}
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"threshold above 1", "defaults:\n  confidence_threshold: 1.5\n"},
		{"negative cache size", "deduplication:\n  cache_size: -1\n"},
		{"bad profile threshold", "profiles:\n  p:\n    confidence_threshold: 2\n"},
	}
	for _, c := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(c.content), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}
}

func TestLoadConfigOrDefault_BadFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("defaults: [not a map"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadConfigOrDefault(path)
	if cfg == nil {
		t.Fatal("expected fallback config, got nil")
	}
	if cfg.Defaults.Format != "text" {
		t.Errorf("expected default format after fallback, got %q", cfg.Defaults.Format)
	}
}
