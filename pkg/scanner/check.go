package scanner

import (
	"context"

	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/probe"
)

// Check is one detection strategy. Passive inspects only the baseline
// exchange; Active may issue probes through the check's sender, deriving
// variants from the baseline request or the insertion point.
//
// Implementations must be safe for concurrent invocation across exchanges
// and must never let an error escape: a failing probe yields zero findings,
// not an aborted pass.
type Check interface {
	// Name is the human-readable strategy name.
	Name() string

	// Module is the payload-catalog module key this check draws from.
	Module() string

	Enabled() bool
	SetEnabled(bool)

	Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding
	Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding
}

// Toggle provides the Enabled/SetEnabled half of Check for embedding.
// Checks start enabled.
type Toggle struct {
	disabled bool
}

func (t *Toggle) Enabled() bool        { return !t.disabled }
func (t *Toggle) SetEnabled(on bool)   { t.disabled = !on }
