// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"osprey-scan/internal/config"
	"osprey-scan/internal/feedback"
)

var (
	flagFeedbackPath    string
	flagFeedbackPattern string
	flagFeedbackValue   string
	flagFalsePositive   bool
	flagTruePositive    bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Manage scoring feedback data",
	}
	rootCmd.AddCommand(cmd)
	cmd.PersistentFlags().StringVar(&flagFeedbackPath, "file", "", "feedback data file (default: feedback.file from config)")

	record := &cobra.Command{
		Use:   "record",
		Short: "Record a correction for a (pattern, value) pair",
		RunE:  runFeedbackRecord,
	}
	record.Flags().StringVar(&flagFeedbackPattern, "pattern", "", "pattern id the finding was reported under")
	record.Flags().StringVar(&flagFeedbackValue, "value", "", "the matched value being corrected")
	record.Flags().BoolVar(&flagFalsePositive, "false-positive", false, "mark the finding as a false positive")
	record.Flags().BoolVar(&flagTruePositive, "true-positive", false, "confirm the finding as a true positive")
	cmd.AddCommand(record)

	export := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the stored feedback data as JSON to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFeedbackExport,
	}
	cmd.AddCommand(export)

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored feedback data with a previously exported file",
		Args:  cobra.ExactArgs(1),
		RunE:  runFeedbackImport,
	}
	cmd.AddCommand(importCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Reset feedback data to the built-in seed",
		RunE:  runFeedbackClear,
	})
}

func feedbackPath() (string, error) {
	if flagFeedbackPath != "" {
		return flagFeedbackPath, nil
	}
	cfg := config.LoadConfigOrDefault(flagConfig)
	if cfg.Feedback.File != "" {
		return cfg.Feedback.File, nil
	}
	return "", fmt.Errorf("no feedback file configured; pass --file or set feedback.file in the config")
}

func runFeedbackRecord(_ *cobra.Command, _ []string) error {
	if flagFeedbackPattern == "" || flagFeedbackValue == "" {
		return fmt.Errorf("--pattern and --value are required")
	}
	if flagFalsePositive == flagTruePositive {
		return fmt.Errorf("exactly one of --false-positive or --true-positive is required")
	}

	path, err := feedbackPath()
	if err != nil {
		return err
	}

	store := feedback.NewStore()
	if err := store.LoadFile(path); err != nil {
		return err
	}
	store.RecordFeedback(flagFeedbackPattern, flagFeedbackValue, flagFalsePositive, nil)
	if err := store.SaveFile(path); err != nil {
		return err
	}

	kind := "true positive"
	if flagFalsePositive {
		kind = "false positive"
	}
	fmt.Printf("recorded %s for pattern %q (%d records)\n", kind, flagFeedbackPattern, store.Len())
	return nil
}

func runFeedbackExport(_ *cobra.Command, args []string) error {
	path, err := feedbackPath()
	if err != nil {
		return err
	}

	store := feedback.NewStore()
	if err := store.LoadFile(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(store.Export(), "", "  ")
	if err != nil {
		return err
	}
	if len(args) == 1 {
		return os.WriteFile(args[0], append(data, '\n'), 0o600)
	}
	fmt.Println(string(data))
	return nil
}

func runFeedbackImport(_ *cobra.Command, args []string) error {
	path, err := feedbackPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("error reading %s: %w", args[0], err)
	}
	var export feedback.Export
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("error parsing %s: %w", args[0], err)
	}

	store := feedback.NewStore()
	store.Import(&export)
	if err := store.SaveFile(path); err != nil {
		return err
	}
	fmt.Printf("imported %d feedback records\n", store.Len())
	return nil
}

func runFeedbackClear(_ *cobra.Command, _ []string) error {
	path, err := feedbackPath()
	if err != nil {
		return err
	}

	store := feedback.NewStore()
	if err := store.SaveFile(path); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "feedback data reset to seed state")
	return nil
}
