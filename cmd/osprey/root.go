// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"osprey-scan/internal/version"

	// Register output formatters.
	_ "osprey-scan/internal/formatters/json"
	_ "osprey-scan/internal/formatters/text"
	_ "osprey-scan/internal/formatters/yaml"
)

var (
	flagConfig    string
	flagFormat    string
	flagNoColor   bool
	flagVerbose   bool
	flagDebug     bool
	flagShowMatch bool
)

// rootCmd is the base Cobra command for the osprey CLI.
var rootCmd = &cobra.Command{
	Use:           "osprey",
	Short:         "Detect secrets, vulnerability indicators and risky configuration",
	Long:          "Osprey scans source trees for exposed secrets, vulnerability indicators and risky configuration, with confidence scoring and resilient deduplication.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the osprey CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default: search standard locations)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "", "output format: text|json|yaml")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "display detailed information")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "emit debug operation logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagShowMatch, "show-match", false, "display matched values instead of redacting them")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Println(version.Info())
		},
	})
}
