package finding

import (
	"strings"
	"time"
)

// TimestampLayout is the wall-clock format stamped on findings and carried
// into exports.
const TimestampLayout = "2006-01-02 15:04:05"

// Finding is the result of one successful detection. Everything except the
// false-positive flag is fixed at creation; the ledger owns the finding from
// the moment it is added.
type Finding struct {
	Module        string     `json:"module"`
	Name          string     `json:"name"`
	Severity      Severity   `json:"severity"`
	Confidence    Confidence `json:"confidence"`
	URL           string     `json:"url"`
	Parameter     string     `json:"parameter"`
	Detail        string     `json:"detail"`
	Remediation   string     `json:"remediation"`
	CVERefs       []string   `json:"cve_refs,omitempty"`
	Timestamp     string     `json:"timestamp"`
	FalsePositive bool       `json:"false_positive"`
}

// New returns a finding stamped with the current time. Zero-value severity
// and confidence default to the weakest levels.
func New(module, name string) *Finding {
	return &Finding{
		Module:     module,
		Name:       name,
		Severity:   SeverityInfo,
		Confidence: ConfidenceTentative,
		Timestamp:  time.Now().Format(TimestampLayout),
	}
}

// CVEString joins the reference identifiers for display and CSV export.
func (f *Finding) CVEString() string {
	return strings.Join(f.CVERefs, ", ")
}

// DedupKey is the composite identity used by the ledger to collapse
// repeated findings.
func (f *Finding) DedupKey() string {
	return f.Module + "|" + f.URL + "|" + f.Parameter + "|" + f.Name
}
