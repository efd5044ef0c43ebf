// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"osprey-scan/internal/detector"
)

var (
	flagPatternsCatalog  string
	flagPatternsCategory string
)

func init() {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the registered detection patterns",
		RunE:  runPatterns,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagPatternsCatalog, "patterns-file", "", "YAML pattern catalog loaded on top of the built-ins")
	cmd.Flags().StringVar(&flagPatternsCategory, "category", "", "only show patterns of this category")
}

func runPatterns(_ *cobra.Command, _ []string) error {
	registry, err := buildRegistry(flagPatternsCatalog)
	if err != nil {
		return err
	}

	var categories []detector.Category
	if flagPatternsCategory != "" {
		c := detector.Category(flagPatternsCategory)
		if !detector.IsValidCategory(c) {
			return fmt.Errorf("unknown category %q", flagPatternsCategory)
		}
		categories = append(categories, c)
	}

	defs := registry.Select(categories)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Category", "Severity", "Confidence")
	for _, def := range defs {
		table.Append([]string{
			def.ID,
			def.Name,
			string(def.Category),
			string(def.Severity),
			fmt.Sprintf("%.2f", def.Confidence),
		})
	}
	table.Render()

	fmt.Printf("\n%d patterns registered\n", len(defs))
	return nil
}
