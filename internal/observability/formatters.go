// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/atreyu1968/manuscript-mender/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintAuditReport outputs a summary of the audit findings before the run.
func (p *Printer) PrintAuditReport(report *types.AuditReport) {
	if report == nil || len(report.Issues) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total issues: %d\n\n", len(report.Issues)))

	bySeverity := map[types.Severity]int{}
	for _, issue := range report.Issues {
		bySeverity[issue.Severity]++
	}
	for _, sev := range []types.Severity{types.SeverityCritical, types.SeverityHigh, types.SeverityMedium, types.SeverityLow} {
		if n := bySeverity[sev]; n > 0 {
			sb.WriteString(fmt.Sprintf("  %-8s %d\n", sev, n))
		}
	}
	sb.WriteString("\n")

	count := min(len(report.Issues), maxItemsToShow)
	for i := 0; i < count; i++ {
		desc := report.Issues[i].Description
		if len(desc) > 50 {
			desc = desc[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %s\n", desc))
	}
	if len(report.Issues) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(report.Issues)-maxItemsToShow))
	}

	p.printBox("AUDIT REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCorrection outputs one proposed correction with its before/after text.
func (p *Printer) PrintCorrection(record *types.CorrectionRecord) {
	if record == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:   %s\n", record.Status))
	if record.Location != "" {
		sb.WriteString(fmt.Sprintf("Location: %s\n", record.Location))
	}
	sb.WriteString("\n")

	original := record.OriginalText
	if len(original) > 50 {
		original = original[:47] + "..."
	}
	sb.WriteString(fmt.Sprintf("− %s\n", original))

	if record.CorrectedText != "" {
		corrected := record.CorrectedText
		if len(corrected) > 50 {
			corrected = corrected[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("+ %s\n", corrected))
	}

	sb.WriteString(fmt.Sprintf("\n+%d/−%d words, %+d chars",
		record.DiffStats.WordsAdded, record.DiffStats.WordsRemoved, record.DiffStats.LengthChange))

	p.printBox("PROPOSED CORRECTION", sb.String())
}

// PrintReviewSummary outputs the run's final counters.
func (p *Printer) PrintReviewSummary(m *types.CorrectedManuscript) {
	if m == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:    %s\n", m.Status))
	sb.WriteString(fmt.Sprintf("Issues:    %d\n", m.TotalIssues))
	sb.WriteString(fmt.Sprintf("Proposed:  %d\n", m.CorrectedIssues))
	sb.WriteString(fmt.Sprintf("Approved:  %d\n", m.ApprovedIssues))
	sb.WriteString(fmt.Sprintf("Rejected:  %d\n", m.RejectedIssues))
	sb.WriteString(fmt.Sprintf("Pending:   %d", m.PendingCount()))

	p.printBox("CORRECTION RUN SUMMARY", sb.String())
}

// PrintStructuralIssue outputs a structural issue and its resolution options.
func (p *Printer) PrintStructuralIssue(issue *types.StructuralIssue) {
	if issue == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Type:     %s\n", issue.Type))
	if len(issue.AffectedChapters) > 0 {
		chapters := make([]string, len(issue.AffectedChapters))
		for i, n := range issue.AffectedChapters {
			chapters[i] = fmt.Sprintf("%d", n)
		}
		sb.WriteString(fmt.Sprintf("Chapters: %s\n", strings.Join(chapters, ", ")))
	}
	sb.WriteString("\n")

	for _, opt := range issue.Options {
		marker := " "
		if opt.Recommended {
			marker = "★"
		}
		label := opt.Label
		if len(label) > 40 {
			label = label[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("%s %s (%s)\n", marker, label, opt.ID))
		sb.WriteString(fmt.Sprintf("  ~%d generative calls\n", opt.EstimatedCalls))
	}

	p.printBox("STRUCTURAL ISSUE", strings.TrimSuffix(sb.String(), "\n"))
}
