// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Default scan settings
	Defaults struct {
		Format              string   `yaml:"format"`
		Categories          []string `yaml:"categories"`
		ConfidenceThreshold float64  `yaml:"confidence_threshold"`
		MaxMatches          int      `yaml:"max_matches"`
		ContextWindow       int      `yaml:"context_window"`
		Verbose             bool     `yaml:"verbose"`
		Debug               bool     `yaml:"debug"`
		NoColor             bool     `yaml:"no_color"`
		Recursive           bool     `yaml:"recursive"`
		IncludePatterns     []string `yaml:"include_patterns"`
		ExcludePatterns     []string `yaml:"exclude_patterns"`
	} `yaml:"defaults"`

	// Patterns points at an optional YAML pattern catalog loaded on top of
	// the built-in definitions.
	Patterns struct {
		File string `yaml:"file"`
	} `yaml:"patterns"`

	// Deduplication tunes the resilient deduplication engine.
	Deduplication struct {
		Enabled                 bool `yaml:"enabled"`
		CacheSize               int  `yaml:"cache_size"`
		TimeoutMs               int  `yaml:"timeout_ms"`
		MemoryLimitMB           int  `yaml:"memory_limit_mb"`
		CircuitBreakerThreshold int  `yaml:"circuit_breaker_threshold"`
		CircuitBreakerResetSec  int  `yaml:"circuit_breaker_reset_sec"`
	} `yaml:"deduplication"`

	// Feedback locates the persisted learning data.
	Feedback struct {
		File string `yaml:"file"`
	} `yaml:"feedback"`

	// Profiles for different scanning scenarios
	Profiles map[string]Profile `yaml:"profiles"`
}

// Profile represents a scanning profile with specific settings
type Profile struct {
	Format              string   `yaml:"format"`
	Categories          []string `yaml:"categories"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	MaxMatches          int      `yaml:"max_matches"`
	ContextWindow       int      `yaml:"context_window"`
	Verbose             bool     `yaml:"verbose"`
	Debug               bool     `yaml:"debug"`
	NoColor             bool     `yaml:"no_color"`
	Recursive           bool     `yaml:"recursive"`
	IncludePatterns     []string `yaml:"include_patterns"`
	ExcludePatterns     []string `yaml:"exclude_patterns"`
	Description         string   `yaml:"description"`
}

// LoadConfig loads configuration from the specified file path
func LoadConfig(configPath string) (*Config, error) {
	// Default configuration
	config := &Config{
		Profiles: make(map[string]Profile),
	}

	// Set default values
	config.Defaults.Format = "text"
	config.Defaults.ConfidenceThreshold = 0.5
	config.Defaults.MaxMatches = 20
	config.Defaults.ContextWindow = 50
	config.Defaults.ExcludePatterns = []string{
		"**/node_modules/**",
		"**/.git/**",
		"**/vendor/**",
	}

	config.Deduplication.Enabled = true
	config.Deduplication.CacheSize = 1000
	config.Deduplication.TimeoutMs = 5000
	config.Deduplication.MemoryLimitMB = 100
	config.Deduplication.CircuitBreakerThreshold = 3
	config.Deduplication.CircuitBreakerResetSec = 30

	// Add default pre-commit profile
	config.Profiles["precommit"] = Profile{
		Format:              "text",
		Categories:          []string{"secrets"},
		ConfidenceThreshold: 0.7,
		NoColor:             true,
		Description:         "Optimized for pre-commit hooks: secrets only, high confidence, concise output",
	}

	// If no config file specified, return default config
	if configPath == "" {
		return config, nil
	}

	cleanPath := filepath.Clean(configPath)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Store default values before unmarshaling
	defaultDedupEnabled := config.Deduplication.Enabled

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Restore defaults if not explicitly set in config file. YAML
	// unmarshaling zeroes bool fields that are absent from the file.
	if !containsField(data, "deduplication", "enabled") {
		config.Deduplication.Enabled = defaultDedupEnabled
	}

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// FindConfigFile looks for a configuration file in standard locations
func FindConfigFile() string {
	// Check current directory first - prioritize config.yaml
	if fileExists("config.yaml") {
		return "config.yaml"
	}
	if fileExists("osprey.yaml") {
		return "osprey.yaml"
	}
	if fileExists("osprey.yml") {
		return "osprey.yml"
	}

	// Project-specific config
	if fileExists(".osprey-scan.yaml") {
		return ".osprey-scan.yaml"
	}
	if fileExists(".osprey-scan.yml") {
		return ".osprey-scan.yml"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeConfig := filepath.Join(home, ".osprey.yaml")
	if fileExists(homeConfig) {
		return homeConfig
	}
	homeConfig = filepath.Join(home, ".osprey.yml")
	if fileExists(homeConfig) {
		return homeConfig
	}

	// XDG config directory
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	xdgConfigFile := filepath.Join(xdgConfig, "osprey-scan", "config.yaml")
	if fileExists(xdgConfigFile) {
		return xdgConfigFile
	}
	xdgConfigFile = filepath.Join(xdgConfig, "osprey-scan", "config.yml")
	if fileExists(xdgConfigFile) {
		return xdgConfigFile
	}

	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}

// ListProfiles returns a list of available profile names
func (c *Config) ListProfiles() []string {
	profiles := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		profiles = append(profiles, name)
	}
	return profiles
}

// GetProfile returns a profile by name, or nil if not found
func (c *Config) GetProfile(name string) *Profile {
	if profile, exists := c.Profiles[name]; exists {
		return &profile
	}
	return nil
}

// DedupTimeout returns the deduplication soft timeout as a duration.
func (c *Config) DedupTimeout() time.Duration {
	return time.Duration(c.Deduplication.TimeoutMs) * time.Millisecond
}

// DedupResetTimeout returns the circuit breaker reset timeout as a duration.
func (c *Config) DedupResetTimeout() time.Duration {
	return time.Duration(c.Deduplication.CircuitBreakerResetSec) * time.Second
}

// containsField checks if a nested field exists in the YAML data
func containsField(data []byte, path ...string) bool {
	var yamlData map[string]interface{}
	err := yaml.Unmarshal(data, &yamlData)
	if err != nil {
		return false
	}

	current := yamlData
	for i, key := range path {
		if i == len(path)-1 {
			_, exists := current[key]
			return exists
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return false
		}
	}
	return false
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if t := config.Defaults.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("defaults.confidence_threshold must be within [0,1], got %v", t)
	}
	if config.Defaults.MaxMatches < 0 {
		return fmt.Errorf("defaults.max_matches cannot be negative")
	}
	if config.Defaults.ContextWindow < 0 {
		return fmt.Errorf("defaults.context_window cannot be negative")
	}

	if config.Deduplication.CacheSize < 0 {
		return fmt.Errorf("deduplication.cache_size cannot be negative")
	}
	if config.Deduplication.TimeoutMs < 0 {
		return fmt.Errorf("deduplication.timeout_ms cannot be negative")
	}
	if config.Deduplication.MemoryLimitMB < 0 {
		return fmt.Errorf("deduplication.memory_limit_mb cannot be negative")
	}

	for name, profile := range config.Profiles {
		if t := profile.ConfidenceThreshold; t < 0 || t > 1 {
			return fmt.Errorf("profile %q: confidence_threshold must be within [0,1], got %v", name, t)
		}
	}

	return nil
}

// LoadConfigOrDefault loads configuration from configFile (or searches standard
// locations when configFile is empty). If loading fails, it returns a default
// configuration so callers never crash on a missing or bad config file.
func LoadConfigOrDefault(configFile string) *Config {
	configPath := configFile
	if configPath == "" {
		configPath = FindConfigFile()
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		cfg, _ = LoadConfig("")
	}
	return cfg
}
