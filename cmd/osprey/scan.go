// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"osprey-scan/internal/config"
	"osprey-scan/internal/dedup"
	"osprey-scan/internal/detector"
	"osprey-scan/internal/feedback"
	"osprey-scan/internal/formatters"
	"osprey-scan/internal/observability"
	"osprey-scan/internal/patterns"
	"osprey-scan/internal/pipeline"
)

var (
	flagProfile       string
	flagCategories    string
	flagThreshold     float64
	flagMaxMatches    int
	flagContextWindow int
	flagInclude       string
	flagExclude       string
	flagRecursive     bool
	flagNoDedup       bool
	flagStats         bool
	flagPatternsFile  string
	flagFeedbackFile  string
	flagOutput        string
	flagFailOn        string
	flagMaxBytes      int64
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan [path...]",
		Short: "Scan files or directories for findings",
		RunE:  runScan,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagProfile, "profile", "", "apply a named profile from the config file")
	cmd.Flags().StringVar(&flagCategories, "categories", "", "comma-separated categories: secrets,vulnerabilities,configurations")
	cmd.Flags().Float64Var(&flagThreshold, "confidence-threshold", 0, "drop findings scoring below this (0-1)")
	cmd.Flags().IntVar(&flagMaxMatches, "max-matches", 0, "max accepted matches per pattern per file")
	cmd.Flags().IntVar(&flagContextWindow, "context-window", 0, "context radius around each match in characters")
	cmd.Flags().StringVar(&flagInclude, "include", "", "comma-separated include globs")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated exclude globs")
	cmd.Flags().BoolVarP(&flagRecursive, "recursive", "r", false, "recurse into directories")
	cmd.Flags().BoolVar(&flagNoDedup, "no-dedup", false, "disable the deduplication engine")
	cmd.Flags().BoolVar(&flagStats, "stats", false, "append deduplication statistics to the output")
	cmd.Flags().StringVar(&flagPatternsFile, "patterns-file", "", "YAML pattern catalog loaded on top of the built-ins")
	cmd.Flags().StringVar(&flagFeedbackFile, "feedback-file", "", "feedback data consulted during scoring")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "exit non-zero on findings at or above this severity: low|medium|high|critical")
	cmd.Flags().Int64Var(&flagMaxBytes, "max-bytes", 1<<20, "skip files larger than this")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfigOrDefault(flagConfig)
	settings := resolveScanSettings(cmd, cfg)

	registry, err := buildRegistry(settings.patternsFile)
	if err != nil {
		return err
	}

	store := feedback.NewStore()
	if settings.feedbackFile != "" {
		if err := store.LoadFile(settings.feedbackFile); err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
	}

	level := observability.ObservabilityOff
	if settings.debug {
		level = observability.ObservabilityDebug
	}
	observer := observability.NewStandardObserver(level, os.Stderr)

	pipe := pipeline.NewPipeline(registry, store, observer)
	engine := dedup.NewEngine(dedup.Config{
		CacheSize:               cfg.Deduplication.CacheSize,
		Timeout:                 cfg.DedupTimeout(),
		MemoryLimitMB:           cfg.Deduplication.MemoryLimitMB,
		CircuitBreakerThreshold: cfg.Deduplication.CircuitBreakerThreshold,
		CircuitBreakerResetTime: cfg.DedupResetTimeout(),
	}, observer)

	if len(args) == 0 {
		args = []string{"."}
	}
	files, err := collectFiles(args, settings)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to scan")
	}

	var all []*detector.Finding
	for _, file := range files {
		findings, scanErrs := scanFile(pipe, file, settings)
		for _, serr := range scanErrs {
			fmt.Fprintln(os.Stderr, "warning:", serr)
		}
		if settings.dedupEnabled {
			findings = engine.DeduplicateFileFindings(toInputs(findings), file)
		}
		all = append(all, findings...)
	}

	var summary *dedup.Summary
	if settings.dedupEnabled {
		// The scan-level pass re-reads the fingerprints the file-level phase
		// seeded; without a fresh cache every finding would merge with its
		// own cached copy and double its occurrence count.
		engine.ClearCache()
		deduped, s := engine.DeduplicateScanFindings(toInputs(all))
		all = deduped
		summary = &s
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Confidence > all[j].Confidence
	})

	output, err := formatters.Export(settings.format, all, summary, formatters.FormatterOptions{
		Verbose:   settings.verbose,
		NoColor:   settings.noColor,
		ShowMatch: flagShowMatch,
		ShowStats: flagStats,
	})
	if err != nil {
		return err
	}

	if flagOutput != "" {
		if err := os.WriteFile(flagOutput, []byte(output+"\n"), 0o644); err != nil {
			return fmt.Errorf("error writing output file: %w", err)
		}
	} else {
		fmt.Println(output)
	}

	if flagFailOn != "" && shouldFail(all, detector.Severity(flagFailOn)) {
		os.Exit(1)
	}
	return nil
}

// scanSettings is the merged view of config file, profile, and flags.
// Precedence: flags > profile > config defaults.
type scanSettings struct {
	format        string
	categories    []detector.Category
	threshold     float64
	maxMatches    int
	contextWindow int
	includes      []string
	excludes      []string
	recursive     bool
	dedupEnabled  bool
	patternsFile  string
	feedbackFile  string
	verbose       bool
	noColor       bool
	debug         bool
}

func resolveScanSettings(cmd *cobra.Command, cfg *config.Config) scanSettings {
	s := scanSettings{
		format:        cfg.Defaults.Format,
		threshold:     cfg.Defaults.ConfidenceThreshold,
		maxMatches:    cfg.Defaults.MaxMatches,
		contextWindow: cfg.Defaults.ContextWindow,
		includes:      cfg.Defaults.IncludePatterns,
		excludes:      cfg.Defaults.ExcludePatterns,
		recursive:     cfg.Defaults.Recursive,
		dedupEnabled:  cfg.Deduplication.Enabled,
		patternsFile:  cfg.Patterns.File,
		feedbackFile:  cfg.Feedback.File,
		verbose:       cfg.Defaults.Verbose,
		noColor:       cfg.Defaults.NoColor,
		debug:         cfg.Defaults.Debug,
	}
	s.categories = parseCategories(strings.Join(cfg.Defaults.Categories, ","))

	if flagProfile != "" {
		if p := cfg.GetProfile(flagProfile); p != nil {
			if p.Format != "" {
				s.format = p.Format
			}
			if len(p.Categories) > 0 {
				s.categories = parseCategories(strings.Join(p.Categories, ","))
			}
			if p.ConfidenceThreshold > 0 {
				s.threshold = p.ConfidenceThreshold
			}
			if p.MaxMatches > 0 {
				s.maxMatches = p.MaxMatches
			}
			if p.ContextWindow > 0 {
				s.contextWindow = p.ContextWindow
			}
			if len(p.IncludePatterns) > 0 {
				s.includes = p.IncludePatterns
			}
			if len(p.ExcludePatterns) > 0 {
				s.excludes = p.ExcludePatterns
			}
			s.recursive = s.recursive || p.Recursive
			s.verbose = s.verbose || p.Verbose
			s.noColor = s.noColor || p.NoColor
			s.debug = s.debug || p.Debug
		} else {
			fmt.Fprintf(os.Stderr, "warning: profile %q not found in config\n", flagProfile)
		}
	}

	if flagFormat != "" {
		s.format = flagFormat
	}
	if s.format == "" {
		s.format = "text"
	}
	if flagCategories != "" {
		s.categories = parseCategories(flagCategories)
	}
	if cmd.Flags().Changed("confidence-threshold") {
		s.threshold = flagThreshold
	}
	if flagMaxMatches > 0 {
		s.maxMatches = flagMaxMatches
	}
	if flagContextWindow > 0 {
		s.contextWindow = flagContextWindow
	}
	if flagInclude != "" {
		s.includes = splitList(flagInclude)
	}
	if flagExclude != "" {
		s.excludes = splitList(flagExclude)
	}
	if cmd.Flags().Changed("recursive") {
		s.recursive = flagRecursive
	}
	if flagNoDedup {
		s.dedupEnabled = false
	}
	if flagPatternsFile != "" {
		s.patternsFile = flagPatternsFile
	}
	if flagFeedbackFile != "" {
		s.feedbackFile = flagFeedbackFile
	}
	s.verbose = s.verbose || flagVerbose
	s.debug = s.debug || flagDebug

	// Default to plain output when not writing to a terminal.
	s.noColor = s.noColor || flagNoColor || !term.IsTerminal(int(os.Stdout.Fd()))

	return s
}

func buildRegistry(patternsFile string) (*patterns.Registry, error) {
	registry, err := patterns.NewBuiltinRegistry()
	if err != nil {
		return nil, fmt.Errorf("error building pattern registry: %w", err)
	}
	if patternsFile != "" {
		if err := patterns.LoadFile(registry, patternsFile); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func scanFile(pipe *pipeline.Pipeline, file string, settings scanSettings) ([]*detector.Finding, []error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, []error{fmt.Errorf("error reading %s: %w", file, err)}
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, nil
	}

	return pipe.ScanContent(string(data), pipeline.Options{
		FilePath:            filepath.ToSlash(file),
		Categories:          settings.categories,
		ConfidenceThreshold: settings.threshold,
		MaxMatches:          settings.maxMatches,
		ContextWindow:       settings.contextWindow,
	})
}

// collectFiles expands the path arguments into the list of scannable files,
// honoring include/exclude globs and the recursion setting.
func collectFiles(paths []string, settings scanSettings) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	add := func(path string) {
		slashed := filepath.ToSlash(path)
		if seen[slashed] {
			return
		}
		if !matchesGlobs(slashed, settings.includes, true) {
			return
		}
		if matchesGlobs(slashed, settings.excludes, false) {
			return
		}
		seen[slashed] = true
		files = append(files, path)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}

		if settings.recursive {
			err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					if matchesGlobs(filepath.ToSlash(p)+"/", settings.excludes, false) {
						return filepath.SkipDir
					}
					return nil
				}
				if ok, serr := skippable(p, flagMaxBytes); serr == nil && !ok {
					add(p)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("error walking %s: %w", path, err)
			}
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("error listing %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			p := filepath.Join(path, entry.Name())
			if ok, serr := skippable(p, flagMaxBytes); serr == nil && !ok {
				add(p)
			}
		}
	}

	return files, nil
}

// skippable reports whether the file should be skipped for size reasons.
func skippable(path string, maxBytes int64) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return true, err
	}
	return maxBytes > 0 && info.Size() > maxBytes, nil
}

// matchesGlobs reports whether path matches any of the globs. An empty glob
// list returns emptyResult, so includes default to everything and excludes
// default to nothing.
func matchesGlobs(path string, globs []string, emptyResult bool) bool {
	if len(globs) == 0 {
		return emptyResult
	}
	for _, glob := range globs {
		if ok, err := doublestar.Match(glob, path); err == nil && ok {
			return true
		}
		// Also try matching against the base name so simple globs like
		// "*.env" work without a leading **/.
		if ok, err := doublestar.Match(glob, filepath.Base(path)); err == nil && ok {
			return true
		}
	}
	return false
}

func toInputs(findings []*detector.Finding) []*detector.InputFinding {
	inputs := make([]*detector.InputFinding, 0, len(findings))
	for _, f := range findings {
		file := ""
		if len(f.Locations) > 0 {
			file = f.Locations[0].File
		}
		inputs = append(inputs, detector.FromFinding(f, file))
	}
	return inputs
}

func parseCategories(s string) []detector.Category {
	var out []detector.Category
	for _, part := range splitList(s) {
		c := detector.Category(part)
		if !detector.IsValidCategory(c) {
			fmt.Fprintf(os.Stderr, "warning: unknown category %q ignored\n", part)
			continue
		}
		out = append(out, c)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// shouldFail reports whether any finding is at or above the given severity.
func shouldFail(findings []*detector.Finding, threshold detector.Severity) bool {
	if !detector.IsValidSeverity(threshold) {
		return false
	}
	for _, f := range findings {
		if detector.MaxSeverity(f.Pattern.Severity, threshold) == f.Pattern.Severity {
			return true
		}
	}
	return false
}
