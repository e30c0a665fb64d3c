package ui

import (
	"fmt"
	"strings"

	"github.com/quirkscan/quirkscan/pkg/finding"
)

// FindingFormatter renders findings for terminal output.
type FindingFormatter struct {
	verbose bool
	color   bool
}

// NewFindingFormatter returns a formatter. Colors are dropped when the
// terminal cannot render them.
func NewFindingFormatter(verbose bool) *FindingFormatter {
	return &FindingFormatter{verbose: verbose, color: ColorTerminal()}
}

// FormatFinding renders one finding as a single line:
// [severity] [module] name url [parameter]
func (ff *FindingFormatter) FormatFinding(f *finding.Finding) string {
	if !ff.color {
		line := fmt.Sprintf("[%s] [%s] %s %s", f.Severity, f.Module, f.Name, f.URL)
		if f.Parameter != "" {
			line += " [" + f.Parameter + "]"
		}
		return line
	}

	var parts []string
	parts = append(parts, BracketStyle.Render("[")+
		SeverityStyle(string(f.Severity)).Render(string(f.Severity))+
		BracketStyle.Render("]"))
	parts = append(parts, BracketStyle.Render("[")+
		ModuleStyle.Render(f.Module)+
		BracketStyle.Render("]"))
	parts = append(parts, StatValueStyle.Render(f.Name))
	parts = append(parts, ConfigValueStyle.Render(f.URL))
	if f.Parameter != "" {
		parts = append(parts, BracketStyle.Render("[")+
			StatLabelStyle.Render(f.Parameter)+
			BracketStyle.Render("]"))
	}
	line := strings.Join(parts, " ")

	if ff.verbose && f.Detail != "" {
		line += "\n      " + SubtitleStyle.Render("-> "+truncateString(f.Detail, 160))
	}
	return line
}

// FormatSummary renders the per-severity totals for a finished scan.
func (ff *FindingFormatter) FormatSummary(ledger *finding.Ledger) string {
	if ledger.Size() == 0 {
		if ff.color {
			return SuccessStyle.Render(Icon("✓", "[+]") + " No findings")
		}
		return "No findings"
	}

	severities := []finding.Severity{
		finding.SeverityCritical, finding.SeverityHigh, finding.SeverityMedium,
		finding.SeverityLow, finding.SeverityInfo,
	}

	var b strings.Builder
	if ff.color {
		b.WriteString(SectionStyle.Render("Findings") + "\n")
	} else {
		b.WriteString("Findings\n")
	}
	for _, sev := range severities {
		count := ledger.CountBySeverity(sev)
		if count == 0 {
			continue
		}
		label := string(sev)
		if ff.color {
			b.WriteString(fmt.Sprintf("  %s %d\n",
				SeverityStyle(label).Render(fmt.Sprintf("%-8s", label)), count))
		} else {
			b.WriteString(fmt.Sprintf("  %-8s %d\n", label, count))
		}
	}
	b.WriteString(fmt.Sprintf("  %s %d\n", pad("total"), ledger.Size()))
	return b.String()
}

func pad(s string) string {
	return fmt.Sprintf("%-8s", s)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
