// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveFile writes the exported store as indented JSON at path, creating
// parent directories as needed.
func (s *Store) SaveFile(path string) error {
	data, err := json.MarshalIndent(s.Export(), "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing feedback data: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating feedback directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("error writing feedback file: %w", err)
	}
	return nil
}

// LoadFile restores the store from a file written by SaveFile. A missing
// file leaves the store in its seed state and is not an error.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error reading feedback file: %w", err)
	}

	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("error parsing feedback file: %w", err)
	}
	s.Import(&export)
	return nil
}
