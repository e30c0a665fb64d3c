package finding

import (
	"strings"
	"sync"

	"github.com/quirkscan/quirkscan/pkg/jsonutil"
)

// CSVHeader is the fixed column order of CSV exports.
const CSVHeader = "Timestamp,Module,Severity,Confidence,URL,Parameter,Detail,CVEs"

// Ledger is a thread-safe, deduplicating collection of findings.
//
// Deduplication is first-writer-wins on the module|url|parameter|name key:
// a later finding under the same key is dropped even when its severity or
// detail differs. That keeps repeated scans of the same target stable at
// the cost of occasionally hiding distinct evidence; the behavior is pinned
// by tests.
type Ledger struct {
	mu        sync.RWMutex
	findings  []*Finding
	dedupKeys map[string]struct{}
	listeners []func()
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{dedupKeys: make(map[string]struct{})}
}

// Add inserts the finding unless its dedup key was already seen. The
// check-and-insert is atomic with respect to concurrent Add calls. Returns
// whether the finding was inserted.
func (l *Ledger) Add(f *Finding) bool {
	if f == nil {
		return false
	}
	key := f.DedupKey()

	l.mu.Lock()
	if _, dup := l.dedupKeys[key]; dup {
		l.mu.Unlock()
		return false
	}
	l.dedupKeys[key] = struct{}{}
	l.findings = append(l.findings, f)
	listeners := append([]func(){}, l.listeners...)
	l.mu.Unlock()

	notify(listeners)
	return true
}

// All returns a snapshot of every finding, in insertion order.
func (l *Ledger) All() []*Finding {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Finding(nil), l.findings...)
}

// ByModule returns the findings for one module.
func (l *Ledger) ByModule(module string) []*Finding {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Finding
	for _, f := range l.findings {
		if f.Module == module {
			out = append(out, f)
		}
	}
	return out
}

// Size returns the number of stored findings.
func (l *Ledger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.findings)
}

// CountBySeverity returns the number of findings at the given level.
func (l *Ledger) CountBySeverity(s Severity) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, f := range l.findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// Clear empties the finding list and the dedup key set together.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.findings = nil
	l.dedupKeys = make(map[string]struct{})
	listeners := append([]func(){}, l.listeners...)
	l.mu.Unlock()

	notify(listeners)
}

// OnChange registers a listener invoked after every add or clear. Listeners
// run on the mutating goroutine and must stay cheap and non-blocking.
func (l *Ledger) OnChange(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// SetFalsePositive flips the false-positive flag of the i-th finding.
// Out-of-range indices are ignored.
func (l *Ledger) SetFalsePositive(i int, fp bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.findings) {
		return
	}
	l.findings[i].FalsePositive = fp
}

// ExportCSV renders every finding in the fixed column order. Values
// containing commas, quotes, or newlines are quoted with doubled internal
// quotes.
func (l *Ledger) ExportCSV() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString(CSVHeader)
	sb.WriteByte('\n')
	for _, f := range l.findings {
		cells := []string{
			f.Timestamp,
			f.Module,
			f.Severity.Export(),
			f.Confidence.Export(),
			f.URL,
			f.Parameter,
			f.Detail,
			f.CVEString(),
		}
		for i, c := range cells {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(escapeCSV(c))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ExportJSON renders every finding as an indented JSON array.
func (l *Ledger) ExportJSON() ([]byte, error) {
	snapshot := l.All()
	if snapshot == nil {
		snapshot = []*Finding{}
	}
	return jsonutil.MarshalIndent(snapshot, "  ")
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}

func escapeCSV(value string) string {
	if strings.ContainsAny(value, ",\"\n") {
		return "\"" + strings.ReplaceAll(value, "\"", "\"\"") + "\""
	}
	return value
}
