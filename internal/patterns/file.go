// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package patterns

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"osprey-scan/internal/detector"
)

// fileDefinition is the YAML form of a pattern definition. Validator
// predicates are code-only and cannot be expressed in a catalog file.
type fileDefinition struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Category     string       `yaml:"category,omitempty"`
	Severity     string       `yaml:"severity,omitempty"`
	Regex        string       `yaml:"regex"`
	ExtractGroup int          `yaml:"extract_group,omitempty"`
	Confidence   float64      `yaml:"confidence,omitempty"`
	MinLength    int          `yaml:"min_length,omitempty"`
	MaxLength    int          `yaml:"max_length,omitempty"`
	Filters      []fileFilter `yaml:"filters,omitempty"`
}

type fileFilter struct {
	Regex   string `yaml:"regex,omitempty"`
	Keyword string `yaml:"keyword,omitempty"`
}

// catalogFile is the top-level structure of a pattern catalog file.
type catalogFile struct {
	Version  string           `yaml:"version"`
	Patterns []fileDefinition `yaml:"patterns"`
}

// LoadFile reads a YAML pattern catalog and registers every definition into
// r, failing fast on the first invalid entry.
func LoadFile(r *Registry, path string) error {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("error reading pattern catalog: %w", err)
	}

	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("error parsing pattern catalog: %w", err)
	}

	defs := make([]Definition, 0, len(catalog.Patterns))
	for _, fd := range catalog.Patterns {
		def := Definition{
			ID:           fd.ID,
			Name:         fd.Name,
			Category:     detector.Category(fd.Category),
			Severity:     detector.Severity(fd.Severity),
			Regex:        fd.Regex,
			ExtractGroup: fd.ExtractGroup,
			Confidence:   fd.Confidence,
			MinLength:    fd.MinLength,
			MaxLength:    fd.MaxLength,
		}
		for _, ff := range fd.Filters {
			switch {
			case ff.Regex != "":
				def.Filters = append(def.Filters, Filter{Kind: FilterRegex, Pattern: ff.Regex})
			case ff.Keyword != "":
				def.Filters = append(def.Filters, Filter{Kind: FilterKeyword, Keyword: ff.Keyword})
			default:
				return &ValidationError{PatternID: fd.ID, Field: "filters", Message: "filter requires regex or keyword"}
			}
		}
		defs = append(defs, def)
	}

	return r.RegisterAll(defs)
}
