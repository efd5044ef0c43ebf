// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package text

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"osprey-scan/internal/dedup"
	"osprey-scan/internal/detector"
	"osprey-scan/internal/formatters"
	"osprey-scan/internal/formatters/shared"
)

// Formatter implements text-based output formatting
type Formatter struct {
	colors map[detector.Severity]*color.Color
}

// NewFormatter creates a new text formatter
func NewFormatter() *Formatter {
	return &Formatter{
		colors: map[detector.Severity]*color.Color{
			detector.SeverityCritical: color.New(color.FgRed, color.Bold),
			detector.SeverityHigh:     color.New(color.FgRed),
			detector.SeverityMedium:   color.New(color.FgYellow),
			detector.SeverityLow:      color.New(color.FgGreen),
		},
	}
}

func (f *Formatter) Name() string {
	return "text"
}

func (f *Formatter) Description() string {
	return "Human-readable text output with colors and tables"
}

func (f *Formatter) FileExtension() string {
	return ".txt"
}

func (f *Formatter) Format(findings []*detector.Finding, summary *dedup.Summary, options formatters.FormatterOptions) (string, error) {
	// Disable colors if requested
	if options.NoColor {
		color.NoColor = true
	}

	if len(findings) == 0 {
		out := "No findings."
		if options.ShowStats && summary != nil {
			out += "\n\n" + f.renderStats(summary)
		}
		return out, nil
	}

	var builder strings.Builder

	if options.Verbose {
		for i, finding := range findings {
			f.appendDetailedFinding(&builder, i+1, finding, options)
		}
	} else {
		f.appendHeaders(&builder, options)
		for _, finding := range findings {
			f.appendSummaryLine(&builder, finding, options)
		}
	}

	if options.ShowStats && summary != nil {
		builder.WriteString("\n")
		builder.WriteString(f.renderStats(summary))
	}

	return builder.String(), nil
}

// appendHeaders adds column headers to the string builder
func (f *Formatter) appendHeaders(builder *strings.Builder, options formatters.FormatterOptions) {
	header := fmt.Sprintf("%-10s %-16s %-26s %-6s %-6s %s\n",
		"SEVERITY", "CATEGORY", "PATTERN", "CONF", "COUNT", "LOCATION")
	if !options.NoColor {
		header = color.New(color.FgWhite, color.Bold).Sprint(header)
	}
	builder.WriteString(header)
	builder.WriteString(strings.Repeat("-", 90) + "\n")
}

// appendSummaryLine prints one finding as a single table row
func (f *Formatter) appendSummaryLine(builder *strings.Builder, finding *detector.Finding, options formatters.FormatterOptions) {
	severity := strings.ToUpper(string(finding.Pattern.Severity))
	if c, ok := f.colors[finding.Pattern.Severity]; ok && !options.NoColor {
		severity = c.Sprintf("%-10s", severity)
	} else {
		severity = fmt.Sprintf("%-10s", severity)
	}

	line := fmt.Sprintf("%s %-16s %-26s %-6s %-6d %s",
		severity,
		finding.Pattern.Category,
		truncate(finding.Pattern.Name, 26),
		fmt.Sprintf("%.0f%%", finding.Confidence*100),
		finding.OccurrenceCount,
		formatLocation(finding))

	if finding.DeduplicationStatus != "" {
		line += fmt.Sprintf(" [%s]", finding.DeduplicationStatus)
	}
	if options.ShowMatch {
		line += "  " + truncate(sanitize(finding.Value), 40)
	}

	builder.WriteString(line + "\n")
}

// appendDetailedFinding prints the full record for one finding
func (f *Formatter) appendDetailedFinding(builder *strings.Builder, n int, finding *detector.Finding, options formatters.FormatterOptions) {
	title := fmt.Sprintf("Finding #%d: %s", n, finding.Pattern.Name)
	if c, ok := f.colors[finding.Pattern.Severity]; ok && !options.NoColor {
		title = c.Sprint(title)
	}
	builder.WriteString(title + "\n")

	fmt.Fprintf(builder, "  Pattern:    %s\n", finding.Pattern.ID)
	fmt.Fprintf(builder, "  Category:   %s\n", finding.Pattern.Category)
	fmt.Fprintf(builder, "  Severity:   %s\n", finding.Pattern.Severity)
	fmt.Fprintf(builder, "  Confidence: %.0f%%\n", finding.Confidence*100)

	value := shared.RedactedValue
	if options.ShowMatch {
		value = sanitize(finding.Value)
	}
	fmt.Fprintf(builder, "  Value:      %s\n", value)

	fmt.Fprintf(builder, "  Occurrences: %d\n", finding.OccurrenceCount)
	for _, loc := range finding.Locations {
		if loc.File != "" {
			fmt.Fprintf(builder, "    - %s:%d:%d\n", loc.File, loc.Line, loc.Column)
		} else {
			fmt.Fprintf(builder, "    - line %d, column %d\n", loc.Line, loc.Column)
		}
	}

	if finding.DeduplicationStatus != "" {
		fmt.Fprintf(builder, "  Deduplication: %s (%s)\n", finding.DeduplicationStatus, finding.FallbackReason)
	}
	if options.ShowMatch && finding.Context.Full != "" {
		fmt.Fprintf(builder, "  Context:    %s\n", truncate(sanitize(finding.Context.Full), 120))
	}
	builder.WriteString("\n")
}

// renderStats renders the deduplication summary as a table
func (f *Formatter) renderStats(summary *dedup.Summary) string {
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.Header("Metric", "Value")
	table.Append([]string{"Total findings", fmt.Sprintf("%d", summary.TotalFindings)})
	table.Append([]string{"Unique findings", fmt.Sprintf("%d", summary.UniqueFindings)})
	table.Append([]string{"Duplicates removed", fmt.Sprintf("%d", summary.DuplicatesRemoved)})
	table.Append([]string{"Deduplication rate", summary.DeduplicationRate})
	table.Append([]string{"Deduplication time", fmt.Sprintf("%dms", summary.DeduplicationTime)})
	table.Render()
	return buf.String()
}

// formatLocation renders the representative location of a finding
func formatLocation(finding *detector.Finding) string {
	if len(finding.Locations) == 0 {
		return "-"
	}
	loc := finding.Locations[0]
	where := fmt.Sprintf("%d:%d", loc.Line, loc.Column)
	if loc.File != "" {
		where = fmt.Sprintf("%s:%s", loc.File, where)
	}
	if len(finding.Locations) > 1 {
		where += fmt.Sprintf(" (+%d more)", len(finding.Locations)-1)
	}
	return where
}

// sanitize flattens control characters so one finding stays on one line
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return s
}

// truncate limits s to max runes, appending an ellipsis when cut
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
