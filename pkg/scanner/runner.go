package scanner

import (
	"context"
	"log/slog"

	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/probe"
)

// Runner drives every registered check over target exchanges and records
// qualifying findings in the ledger. It may be invoked concurrently for
// many in-flight exchanges; no ordering is promised between them.
type Runner struct {
	checks []Check
	ledger *finding.Ledger
	logger *slog.Logger
}

// NewRunner returns a runner over the given checks. A nil ledger gets a
// fresh one; a nil logger uses slog.Default.
func NewRunner(checks []Check, ledger *finding.Ledger, logger *slog.Logger) *Runner {
	if ledger == nil {
		ledger = finding.NewLedger()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{checks: checks, ledger: ledger, logger: logger}
}

// Ledger returns the runner's findings ledger.
func (r *Runner) Ledger() *finding.Ledger { return r.ledger }

// Checks returns the registered checks.
func (r *Runner) Checks() []Check { return r.checks }

// Passive runs every enabled check's passive audit over the baseline.
// Static assets are skipped outright. A failing check is logged and the
// remaining checks still run.
func (r *Runner) Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	return r.run(ctx, baseline, func(c Check) []*finding.Finding {
		return c.Passive(ctx, baseline)
	})
}

// Active runs every enabled check's active audit over the baseline with the
// given insertion point.
func (r *Runner) Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	return r.run(ctx, baseline, func(c Check) []*finding.Finding {
		return c.Active(ctx, baseline, ip)
	})
}

func (r *Runner) run(ctx context.Context, baseline *probe.Exchange, audit func(Check) []*finding.Finding) []*finding.Finding {
	var all []*finding.Finding

	if baseline == nil || baseline.Request == nil || baseline.Request.IsStaticAsset() {
		return all
	}

	for _, check := range r.checks {
		if !check.Enabled() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		findings := r.auditOne(check, audit)
		for _, f := range findings {
			if r.ledger.Add(f) {
				findingsTotal.WithLabelValues(f.Module, string(f.Severity)).Inc()
			}
		}
		all = append(all, findings...)
	}
	return all
}

// auditOne isolates one check invocation so a panic inside a check cannot
// take down the whole audit pass.
func (r *Runner) auditOne(check Check, audit func(Check) []*finding.Finding) (findings []*finding.Finding) {
	defer func() {
		if rec := recover(); rec != nil {
			checkErrorsTotal.WithLabelValues(check.Name()).Inc()
			r.logger.Error("check panicked",
				slog.String("check", check.Name()),
				slog.Any("panic", rec))
			findings = nil
		}
	}()
	return audit(check)
}
