// Package parserdiff detects parser differential issues: duplicate JSON
// key handling, HTTP method override acceptance, content-type confusion,
// and URL parsing edge cases. Every active phase replays a modified copy
// of the baseline request and diffs the result.
package parserdiff

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
const CheckName = "Parser Differential"

var duplicateKeyWarnings = []string{"duplicate key", "duplicate field", "duplicate property"}

var jsonParseErrors = []string{
	"json.parse", "jsondecodeerror", "unexpected token",
	"json_error", "malformed json", "invalid json",
}

// restrictedContentMarkers flag URL-parsing probes that reached content
// the baseline path should not serve.
var restrictedContentMarkers = []string{"admin", "dashboard", "configuration"}

// Config configures the parser differential check.
type Config struct {
	scanner.Base
	Registry *payload.Registry
}

// Check implements scanner.Check for parser differentials.
type Check struct {
	scanner.Toggle
	cfg Config
}

// New returns a parser differential check over the given registry.
func New(cfg Config) *Check {
	cfg.Base.Validate()
	return &Check{cfg: cfg}
}

func (c *Check) Name() string   { return CheckName }
func (c *Check) Module() string { return payload.ModuleParser }

// Passive scans the baseline body for duplicate-key warnings and exposed
// JSON parse errors.
func (c *Check) Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	if baseline == nil || baseline.Response == nil || baseline.Response.Body == "" {
		return nil
	}
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, warning := range duplicateKeyWarnings {
		if !baseline.Response.BodyContains(warning) {
			continue
		}
		f := finding.New(payload.ModuleParser, "Duplicate Key Warning Detected")
		f.Severity = finding.SeverityLow
		f.Confidence = finding.ConfidenceTentative
		f.URL = url
		f.Detail = "The response body contains a warning about duplicate JSON keys. This " +
			"indicates the server-side parser handles duplicate keys and may be susceptible " +
			"to key-collision attacks where the first vs. last key wins depending on the " +
			"parser implementation."
		f.Remediation = "Use a single, well-defined JSON parser that rejects duplicate keys. " +
			"Validate JSON input strictly before processing."
		out = append(out, f)
		break
	}

	for _, marker := range jsonParseErrors {
		if !baseline.Response.BodyContains(marker) {
			continue
		}
		f := finding.New(payload.ModuleParser, "JSON Parse Error Exposed")
		f.Severity = finding.SeverityLow
		f.Confidence = finding.ConfidenceTentative
		f.URL = url
		f.Detail = fmt.Sprintf("The response body contains a JSON parsing error message (%q). "+
			"Exposed parser error details can reveal the server-side parser type and behaviour, "+
			"aiding parser differential attacks.", marker)
		f.Remediation = "Return generic error messages to clients. Do not expose internal " +
			"parser error details or stack traces."
		out = append(out, f)
		break
	}

	for _, f := range out {
		c.cfg.NotifyFinding(f)
	}
	return out
}

// Active runs the four probe phases against modified copies of the
// baseline request.
func (c *Check) Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	if baseline == nil || baseline.Request == nil {
		return nil
	}
	var out []*finding.Finding
	out = append(out, c.testDuplicateJSONKeys(ctx, baseline)...)
	out = append(out, c.testMethodOverride(ctx, baseline)...)
	out = append(out, c.testContentTypeConfusion(ctx, baseline)...)
	out = append(out, c.testURLParsing(ctx, baseline, ip)...)
	for _, f := range out {
		c.cfg.NotifyFinding(f)
	}
	return out
}

// testDuplicateJSONKeys replaces a JSON request body with duplicate-key
// variants. Only runs when the baseline already carries a JSON body.
func (c *Check) testDuplicateJSONKeys(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	contentType := baseline.Request.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "json") {
		return nil
	}

	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, entry := range c.entries("duplicate-key") {
		if ctx.Err() != nil {
			break
		}
		res := c.send(ctx, baseline.Request.WithBody([]byte(entry.Value), contentType))
		if res == nil || !diff.Differs(baseline.Response, res) {
			continue
		}
		f := finding.New(payload.ModuleParser, "Duplicate JSON Key Handling")
		f.Severity = finding.SeverityMedium
		f.Confidence = finding.ConfidenceFirm
		f.URL = url
		f.Detail = fmt.Sprintf("Sending a JSON body with duplicate keys caused a different "+
			"response. Payload: %s. Purpose: %s. The server-side parser may use a first-wins "+
			"or last-wins strategy for duplicate keys, which can be exploited to bypass "+
			"security controls.", entry.Value, entry.Description)
		f.Remediation = "Reject JSON payloads with duplicate keys. Use a strict JSON parser " +
			"and validate input schema before processing."
		f.CVERefs = entry.CVERefs
		out = append(out, f)
	}
	return out
}

// testMethodOverride applies each override payload either as a body
// parameter (name=value form) or as a header (Name: value form).
func (c *Check) testMethodOverride(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, entry := range c.entries("method-override-headers") {
		if ctx.Err() != nil {
			break
		}
		var req *probe.Request
		switch {
		case strings.Contains(entry.Value, "="):
			body := entry.Value
			if existing := string(baseline.Request.Body); existing != "" {
				body = existing + "&" + entry.Value
			}
			req = baseline.Request.WithBody([]byte(body), "application/x-www-form-urlencoded")
		case strings.Contains(entry.Value, ": "):
			name, value, _ := strings.Cut(entry.Value, ": ")
			req = baseline.Request.WithHeader(name, value)
		default:
			continue
		}

		res := c.send(ctx, req)
		if res == nil || !diff.Differs(baseline.Response, res) {
			continue
		}
		f := finding.New(payload.ModuleParser, "Method Override Accepted")
		f.Severity = finding.SeverityMedium
		f.Confidence = finding.ConfidenceFirm
		f.URL = url
		f.Detail = fmt.Sprintf("The server responded differently when a method override was "+
			"applied via %q. Purpose: %s. This indicates the server accepts HTTP method "+
			"overrides, which can be used to bypass access controls or invoke unintended "+
			"operations.", entry.Value, entry.Description)
		f.Remediation = "Disable HTTP method override headers/parameters in production. If " +
			"required, restrict accepted override methods to a safe allow-list."
		f.CVERefs = entry.CVERefs
		out = append(out, f)
	}
	return out
}

// testContentTypeConfusion swaps the Content-Type header while keeping
// the original body. An HTTP 200 means the server still processed the
// mismatched body.
func (c *Check) testContentTypeConfusion(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	if len(baseline.Request.Body) == 0 {
		return nil
	}

	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, entry := range c.entries("content-type-confusion") {
		if ctx.Err() != nil {
			break
		}
		res := c.send(ctx, baseline.Request.WithHeader("Content-Type", entry.Value))
		if res == nil || res.Status != 200 {
			continue
		}
		f := finding.New(payload.ModuleParser, "Content-Type Confusion")
		f.Severity = finding.SeverityMedium
		f.Confidence = finding.ConfidenceTentative
		f.URL = url
		f.Detail = fmt.Sprintf("The server returned HTTP 200 when the Content-Type header was "+
			"changed to %q while keeping the original request body. Purpose: %s. This suggests "+
			"the server does not strictly validate the Content-Type against the actual body "+
			"format, which can lead to parser confusion and security bypasses.",
			entry.Value, entry.Description)
		f.Remediation = "Strictly validate that the Content-Type header matches the expected " +
			"body format. Return 415 Unsupported Media Type for mismatches."
		f.CVERefs = entry.CVERefs
		out = append(out, f)
	}
	return out
}

// testURLParsing injects URL edge-case payloads through the insertion
// point. Restricted content in a differing response upgrades the finding
// to a confirmed bypass.
func (c *Check) testURLParsing(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	if ip == nil {
		return nil
	}
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, entry := range c.entries("url-parsing") {
		if ctx.Err() != nil {
			break
		}
		req, err := ip.BuildRequest(entry.Value)
		if err != nil {
			c.cfg.Logger.Debug("probe build failed", "check", CheckName, "error", err)
			continue
		}
		res := c.send(ctx, req)
		if res == nil || !diff.Differs(baseline.Response, res) {
			continue
		}

		if hasRestrictedContent(res) {
			f := finding.New(payload.ModuleParser, "URL Parsing Bypass")
			f.Severity = finding.SeverityMedium
			f.Confidence = finding.ConfidenceFirm
			f.URL = url
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("A URL parsing edge case payload caused the server to return "+
				"unexpected content that may include administrative or restricted data. "+
				"Payload: %q. Purpose: %s", entry.Value, entry.Description)
			f.Remediation = "Normalize and canonicalize URL paths before routing. Reject " +
				"requests containing path traversal sequences."
			f.CVERefs = entry.CVERefs
			out = append(out, f)
			continue
		}

		f := finding.New(payload.ModuleParser, "URL Parsing Anomaly")
		f.Severity = finding.SeverityMedium
		f.Confidence = finding.ConfidenceTentative
		f.URL = url
		f.Parameter = ip.Name()
		f.Detail = fmt.Sprintf("A URL parsing edge case payload produced a different response, "+
			"indicating the server's URL parser may handle edge cases in an exploitable way. "+
			"Payload: %q. Purpose: %s", entry.Value, entry.Description)
		f.Remediation = "Use a single, consistent URL parser. Normalize paths before routing. " +
			"Reject URLs with ambiguous syntax."
		f.CVERefs = entry.CVERefs
		out = append(out, f)
	}
	return out
}

func (c *Check) entries(category string) []*payload.Entry {
	if c.cfg.Registry == nil {
		return nil
	}
	entries := c.cfg.Registry.Enabled(payload.ModuleParser, category)
	return entries[:c.cfg.Limit(len(entries))]
}

func (c *Check) send(ctx context.Context, req *probe.Request) *probe.Result {
	res, err := c.cfg.Sender.Send(ctx, req)
	if err != nil {
		c.cfg.Logger.Debug("probe send failed", "check", CheckName, "error", err)
		return nil
	}
	return res
}

func hasRestrictedContent(res *probe.Result) bool {
	for _, marker := range restrictedContentMarkers {
		if res.BodyContains(marker) {
			return true
		}
	}
	return false
}
