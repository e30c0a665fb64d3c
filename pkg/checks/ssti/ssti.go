// Package ssti detects server-side template injection. The active audit
// runs four phases over the insertion point: polyglot math evaluation,
// error-trigger status changes, engine-detect marker matching, and paired
// error-based blind probes. The passive audit only scans the baseline body
// for engine error signatures.
package ssti

import (
	"context"
	"fmt"
	"strings"

	"github.com/quirkscan/quirkscan/pkg/diff"
	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/payload"
	"github.com/quirkscan/quirkscan/pkg/probe"
	"github.com/quirkscan/quirkscan/pkg/scanner"
)

// CheckName is the strategy name used in findings.
const CheckName = "SSTI"

var errorSignatures = []string{
	"TemplateSyntaxError", "UndefinedError", "Twig_Error", "twig error",
	"freemarker.core.InvalidReferenceException", "freemarker.core.ParseException",
	"org.apache.velocity", "ParseErrorException",
	"com.mitchellbosecke.pebble", "Jinja2", "jinja2.exceptions",
	"Mako", "mako.exceptions", "Slim::Temple",
	"EvalError", "Handlebars.Exception", "handlebars",
}

// Config configures the SSTI check.
type Config struct {
	scanner.Base
	Registry *payload.Registry
}

// Check implements scanner.Check for template injection.
type Check struct {
	scanner.Toggle
	cfg Config
}

// New returns an SSTI check over the given registry.
func New(cfg Config) *Check {
	cfg.Base.Validate()
	return &Check{cfg: cfg}
}

func (c *Check) Name() string   { return CheckName }
func (c *Check) Module() string { return payload.ModuleSSTI }

// Passive scans the baseline body for template engine error signatures.
// First hit wins; the finding is informational.
func (c *Check) Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	if baseline == nil || baseline.Response == nil || baseline.Response.Body == "" {
		return nil
	}
	for _, sig := range errorSignatures {
		if !baseline.Response.BodyContains(sig) {
			continue
		}
		f := finding.New(payload.ModuleSSTI, "SSTI Error Signature in Response")
		f.Severity = finding.SeverityInfo
		f.Confidence = finding.ConfidenceTentative
		f.URL = baseline.Request.URL.String()
		f.Detail = fmt.Sprintf("The response body contains a template engine error signature: %q. "+
			"This may indicate a server-side template engine is in use and leaking error information.", sig)
		f.Remediation = "Ensure user input is never passed directly into template expressions. " +
			"Disable debug/verbose error output in production."
		c.cfg.NotifyFinding(f)
		return []*finding.Finding{f}
	}
	return nil
}

// Active runs the four probe phases. A polyglot or engine-detect hit is
// conclusive and stops the pass; error-trigger and blind hits accumulate.
func (c *Check) Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	if baseline == nil || baseline.Request == nil || ip == nil {
		return nil
	}
	var out []*finding.Finding

	if f := c.testPolyglots(ctx, baseline, ip); f != nil {
		return c.emit(out, f)
	}
	if f := c.testErrorTriggers(ctx, baseline, ip); f != nil {
		out = c.emit(out, f)
	}
	if f := c.testEngineDetect(ctx, baseline, ip); f != nil {
		return c.emit(out, f)
	}
	if f := c.testErrorBasedBlind(ctx, baseline, ip); f != nil {
		out = c.emit(out, f)
	}
	return out
}

func (c *Check) emit(out []*finding.Finding, f *finding.Finding) []*finding.Finding {
	c.cfg.NotifyFinding(f)
	return append(out, f)
}

// testPolyglots looks for the evaluated product "49" in the probe body.
// The marker must be absent from the baseline body, otherwise pages that
// naturally contain "49" would false-positive.
func (c *Check) testPolyglots(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) *finding.Finding {
	for _, entry := range c.entries("polyglot") {
		if ctx.Err() != nil {
			return nil
		}
		res := c.sendPayload(ctx, ip, entry.Value)
		if res == nil {
			continue
		}
		if strings.Contains(res.Body, "49") && !strings.Contains(baselineBody(baseline), "49") {
			engine := identifyEngine(res)
			f := finding.New(payload.ModuleSSTI, "SSTI Detected - "+engine)
			f.Severity = finding.SeverityHigh
			f.Confidence = finding.ConfidenceCertain
			f.URL = baseline.Request.URL.String()
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("The polyglot payload %q caused the server to evaluate a math "+
				"expression (7*7=49), confirming SSTI. Detected engine: %s", entry.Value, engine)
			f.Remediation = "Never pass user-controlled input directly into template expressions."
			f.CVERefs = entry.CVERefs
			return f
		}
	}
	return nil
}

// testErrorTriggers reports a status code change from any unclosed-syntax
// payload.
func (c *Check) testErrorTriggers(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) *finding.Finding {
	if baseline.Response == nil {
		return nil
	}
	baseStatus := baseline.Response.Status
	for _, entry := range c.entries("error-trigger") {
		if ctx.Err() != nil {
			return nil
		}
		res := c.sendPayload(ctx, ip, entry.Value)
		if res == nil {
			continue
		}
		if res.Status != baseStatus {
			f := finding.New(payload.ModuleSSTI, "SSTI Potential (Error Trigger)")
			f.Severity = finding.SeverityMedium
			f.Confidence = finding.ConfidenceTentative
			f.URL = baseline.Request.URL.String()
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("The error-trigger payload %q caused a status code change from "+
				"%d to %d, suggesting template syntax is being parsed.", entry.Value, baseStatus, res.Status)
			f.Remediation = "Sanitise input before passing to template engines. Disable verbose error responses."
			f.CVERefs = entry.CVERefs
			return f
		}
	}
	return nil
}

// testEngineDetect matches each payload's expected-response marker table
// against the probe body to name the engine.
func (c *Check) testEngineDetect(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) *finding.Finding {
	for _, entry := range c.entries("engine-detect") {
		if ctx.Err() != nil {
			return nil
		}
		if entry.ExpectedResponse == "" {
			continue
		}
		res := c.sendPayload(ctx, ip, entry.Value)
		if res == nil {
			continue
		}
		engine := matchExpectedResponse(res.Body, entry.ExpectedResponse)
		if engine == "" {
			continue
		}
		f := finding.New(payload.ModuleSSTI, "SSTI Detected - "+engine)
		f.Severity = finding.SeverityHigh
		f.Confidence = finding.ConfidenceCertain
		f.URL = baseline.Request.URL.String()
		f.Parameter = ip.Name()
		f.Detail = fmt.Sprintf("The engine-detect payload %q confirmed the %s template engine.",
			entry.Value, engine)
		f.Remediation = fmt.Sprintf("Remove or sandbox the identified template engine (%s).", engine)
		f.CVERefs = entry.CVERefs
		return f
	}
	return nil
}

// testErrorBasedBlind sends consecutive (error side, no-error side) payload
// pairs and reports when the pair's responses differ.
func (c *Check) testErrorBasedBlind(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) *finding.Finding {
	entries := c.entries("error-based-blind")
	for i := 0; i+1 < len(entries); i += 2 {
		if ctx.Err() != nil {
			return nil
		}
		errorSide, noErrorSide := entries[i], entries[i+1]

		errorRes := c.sendPayload(ctx, ip, errorSide.Value)
		noErrorRes := c.sendPayload(ctx, ip, noErrorSide.Value)
		if errorRes == nil || noErrorRes == nil {
			continue
		}
		if diff.Differs(errorRes, noErrorRes) {
			f := finding.New(payload.ModuleSSTI, "SSTI Blind (Error-Based)")
			f.Severity = finding.SeverityMedium
			f.Confidence = finding.ConfidenceFirm
			f.URL = baseline.Request.URL.String()
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("Error-based blind pair produced different responses. "+
				"Error-side %q (status %d), no-error %q (status %d), similarity %.2f.",
				errorSide.Value, errorRes.Status, noErrorSide.Value, noErrorRes.Status,
				diff.BodySimilarity(errorRes, noErrorRes))
			f.Remediation = "Ensure user input is never interpolated into template expressions."
			f.CVERefs = errorSide.CVERefs
			return f
		}
	}
	return nil
}

func (c *Check) entries(category string) []*payload.Entry {
	if c.cfg.Registry == nil {
		return nil
	}
	entries := c.cfg.Registry.Enabled(payload.ModuleSSTI, category)
	return entries[:c.cfg.Limit(len(entries))]
}

// sendPayload builds and sends one probe. Any failure yields nil so the
// remaining payloads still run.
func (c *Check) sendPayload(ctx context.Context, ip probe.InsertionPoint, value string) *probe.Result {
	req, err := ip.BuildRequest(value)
	if err != nil {
		c.cfg.Logger.Debug("probe build failed", "check", CheckName, "error", err)
		return nil
	}
	res, err := c.cfg.Sender.Send(ctx, req)
	if err != nil {
		c.cfg.Logger.Debug("probe send failed", "check", CheckName, "error", err)
		return nil
	}
	return res
}

func baselineBody(baseline *probe.Exchange) string {
	if baseline == nil || baseline.Response == nil {
		return ""
	}
	return baseline.Response.Body
}

func identifyEngine(res *probe.Result) string {
	body := strings.ToLower(res.Body)
	switch {
	case strings.Contains(body, "jinja"):
		return "Jinja2"
	case strings.Contains(body, "twig"):
		return "Twig"
	case strings.Contains(body, "freemarker"):
		return "Freemarker"
	case strings.Contains(body, "velocity"):
		return "Velocity"
	case strings.Contains(body, "pebble"):
		return "Pebble"
	case strings.Contains(body, "thymeleaf"):
		return "Thymeleaf"
	case strings.Contains(body, "smarty"):
		return "Smarty"
	case strings.Contains(body, "mako"):
		return "Mako"
	case strings.Contains(body, "handlebars"):
		return "Handlebars"
	case strings.Contains(body, "erb"):
		return "ERB"
	}
	return "Generic"
}

// matchExpectedResponse parses a "marker=Engine,marker=Engine" table and
// returns the engine of the first marker found in body (case-sensitive,
// matching how engines echo evaluated output).
func matchExpectedResponse(body, expected string) string {
	if body == "" {
		return ""
	}
	for _, pair := range strings.Split(expected, ",") {
		pair = strings.TrimSpace(pair)
		eq := strings.Index(pair, "=")
		if eq <= 0 || eq >= len(pair)-1 {
			continue
		}
		token, engine := pair[:eq], pair[eq+1:]
		if strings.Contains(body, token) {
			return engine
		}
	}
	return ""
}
