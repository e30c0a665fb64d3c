// Package scanner defines the shared check interface, the per-check base
// configuration, and the runner that drives every enabled check over a
// target exchange.
package scanner

import (
	"log/slog"

	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/probe"
)

// Base is the configuration shared by every check. Check configs embed it
// and call Validate to fill defaults.
type Base struct {
	// Sender issues probes. Defaults to an HTTPSender on the shared
	// pooled client.
	Sender probe.Sender

	// UserAgent overrides the sender's default User-Agent when set.
	UserAgent string

	// MaxPayloads caps how many registry entries one check invocation
	// consumes per category (default 50).
	MaxPayloads int

	// Logger receives per-probe failures. Defaults to slog.Default.
	Logger *slog.Logger

	// OnFinding, when set, is invoked for every finding a check emits,
	// before the runner records it.
	OnFinding func(*finding.Finding)
}

// Validate fills zero values with defaults.
func (b *Base) Validate() {
	if b.Sender == nil {
		s := probe.NewHTTPSender()
		if b.UserAgent != "" {
			s.UserAgent = b.UserAgent
		}
		b.Sender = s
	}
	if b.MaxPayloads <= 0 {
		b.MaxPayloads = 50
	}
	if b.Logger == nil {
		b.Logger = slog.Default()
	}
}

// NotifyFinding invokes the OnFinding hook if one is set.
func (b *Base) NotifyFinding(f *finding.Finding) {
	if b.OnFinding != nil {
		b.OnFinding(f)
	}
}

// Limit truncates entries to the MaxPayloads cap.
func (b *Base) Limit(n int) int {
	if b.MaxPayloads > 0 && n > b.MaxPayloads {
		return b.MaxPayloads
	}
	return n
}
