// Package output provides formatted output for report statistics.
package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mvdnes/dmarc-reporter/pkg/types"
)

// Styles for terminal output.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

// TableOutput renders one report summary as styled terminal output.
func TableOutput(stats *types.DmarcStatistics) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("Report ID %s from %s", stats.ReportID, stats.Organisation)))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("From %s to %s", formatTime(stats.Start), formatTime(stats.End))))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render("Domain: " + stats.Domain))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Passed: %s\n", passStyle.Render(fmt.Sprintf("%d", stats.Passed))))
	sb.WriteString(fmt.Sprintf("  Failed: %s\n", failStyle.Render(fmt.Sprintf("%d", stats.Failed))))
	sb.WriteString(fmt.Sprintf("  SPF:    %s\n", resultLine(stats.SPFResult)))
	sb.WriteString(fmt.Sprintf("  DKIM:   %s\n", resultLine(stats.DKIMResult)))

	return sb.String()
}

// ErrorOutput renders a per-report failure.
func ErrorOutput(source string, err error) string {
	return fmt.Sprintf("%s %s\n",
		errorStyle.Render(source+":"),
		failStyle.Render(err.Error()))
}

// resultLine formats a result table as "label=count, label=count", sorted by
// label so output is stable.
func resultLine(results map[string]int) string {
	if len(results) == 0 {
		return mutedStyle.Render("none")
	}

	labels := make([]string, 0, len(results))
	for label := range results {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s=%d", label, results[label]))
	}
	return strings.Join(parts, ", ")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}
