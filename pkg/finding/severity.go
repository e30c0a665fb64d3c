// Package finding defines the finding model and the deduplicating ledger
// that owns findings once a detection strategy emits them.
package finding

import "strings"

// Severity represents the impact level of a finding.
type Severity string

// Severity levels, highest first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// IsValid reports whether the severity is a known level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Score returns a numeric rank for sorting, 5 (critical) down to 1 (info).
// Unknown severities rank 0.
func (s Severity) Score() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Export returns the uppercase form used in CSV/JSON exports.
func (s Severity) Export() string {
	return strings.ToUpper(string(s))
}

// Confidence expresses how certain a strategy is about a finding.
type Confidence string

// Confidence levels, strongest first.
const (
	ConfidenceCertain   Confidence = "certain"
	ConfidenceFirm      Confidence = "firm"
	ConfidenceTentative Confidence = "tentative"
)

// IsValid reports whether the confidence is a known level.
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceCertain, ConfidenceFirm, ConfidenceTentative:
		return true
	}
	return false
}

// Score returns a numeric rank, 3 (certain) down to 1 (tentative).
func (c Confidence) Score() int {
	switch c {
	case ConfidenceCertain:
		return 3
	case ConfidenceFirm:
		return 2
	case ConfidenceTentative:
		return 1
	}
	return 0
}

// Export returns the uppercase form used in CSV/JSON exports.
func (c Confidence) Export() string {
	return strings.ToUpper(string(c))
}
