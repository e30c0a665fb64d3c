// Package ssrf detects server-side request forgery through redirect
// following. The passive audit inspects Location headers and response
// bodies for internal addresses and cloud metadata content; the active
// audit injects internal target URLs into SSRF-prone parameters and
// classifies the outcome by metadata content, redirect target, or
// response differential.
package ssrf

import (
	"context"
	"fmt"
	"strings"

	"github.com/quirkscan/quirkscan/pkg/diff"
	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/payload"
	"github.com/quirkscan/quirkscan/pkg/probe"
	"github.com/quirkscan/quirkscan/pkg/regexcache"
	"github.com/quirkscan/quirkscan/pkg/scanner"
)

// CheckName is the strategy name used in findings.
const CheckName = "SSRF Redirect"

// internalIPPattern matches loopback, RFC1918, link-local, and IPv6
// loopback forms wherever they appear in a URL or error message.
const internalIPPattern = `(?i)(?:127\.\d+\.\d+\.\d+|10\.\d+\.\d+\.\d+|` +
	`172\.(?:1[6-9]|2\d|3[01])\.\d+\.\d+|` +
	`192\.168\.\d+\.\d+|169\.254\.\d+\.\d+|` +
	`localhost|0\.0\.0\.0|\[::1\])`

var cloudMetadataIndicators = []string{
	"ami-id", "instance-id", "iam", "security-credentials",
	"computemetadata", "instance/",
}

var internalURLKeywords = []string{
	"169.254.169.254", "metadata.google.internal", "100.100.100.200",
	"169.254.170.2",
}

var errorKeywords = []string{"error", "exception", "failed", "refused"}

// basicProbes are sent against every insertion point regardless of its
// parameter name.
var basicProbes = []string{"http://127.0.0.1", "http://localhost"}

// Config configures the SSRF check.
type Config struct {
	scanner.Base
	Registry *payload.Registry
}

// Check implements scanner.Check for SSRF via redirects.
type Check struct {
	scanner.Toggle
	cfg Config
}

// New returns an SSRF check over the given registry.
func New(cfg Config) *Check {
	cfg.Base.Validate()
	return &Check{cfg: cfg}
}

func (c *Check) Name() string   { return CheckName }
func (c *Check) Module() string { return payload.ModuleSSRF }

// Passive looks for internal redirect targets, leaked cloud metadata
// content, and internal addresses in error messages.
func (c *Check) Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	if baseline == nil || baseline.Response == nil {
		return nil
	}
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	if location := baseline.Response.HeaderValue("location"); location != "" && pointsToInternal(location) {
		f := finding.New(payload.ModuleSSRF, "SSRF - Server Redirects to Internal Target")
		f.Severity = finding.SeverityMedium
		f.Confidence = finding.ConfidenceTentative
		f.URL = url
		f.Detail = fmt.Sprintf("The response contains a Location header redirecting to an internal "+
			"or cloud metadata address: %q. This may allow an attacker to reach internal services "+
			"through the application.", location)
		f.Remediation = "Validate and restrict redirect targets. Do not redirect to user-controlled " +
			"URLs pointing to internal networks or cloud metadata endpoints."
		out = append(out, f)
	}

	body := baseline.Response.Body
	if body != "" {
		for _, indicator := range cloudMetadataIndicators {
			if !baseline.Response.BodyContains(indicator) {
				continue
			}
			f := finding.New(payload.ModuleSSRF, "SSRF - Cloud Metadata Content in Response")
			f.Severity = finding.SeverityHigh
			f.Confidence = finding.ConfidenceTentative
			f.URL = url
			f.Detail = fmt.Sprintf("The response body contains cloud metadata indicator %q. This "+
				"suggests the server may be fetching and returning internal metadata service content.", indicator)
			f.Remediation = "Block access to cloud metadata endpoints from the application. " +
				"Use IMDSv2 (AWS) or equivalent protections."
			out = append(out, f)
			// one metadata finding per response
			break
		}

		if regexcache.MustGet(internalIPPattern).MatchString(body) && containsErrorKeyword(baseline.Response) {
			f := finding.New(payload.ModuleSSRF, "SSRF - Internal URL Leaked in Error Message")
			f.Severity = finding.SeverityLow
			f.Confidence = finding.ConfidenceTentative
			f.URL = url
			f.Detail = "The response body contains an error message referencing an internal IP " +
				"address or hostname. This may indicate the application attempts server-side " +
				"requests that can be influenced by the user."
			f.Remediation = "Suppress internal network details from error messages returned to clients."
			out = append(out, f)
		}
	}

	for _, f := range out {
		c.cfg.NotifyFinding(f)
	}
	return out
}

// Active injects internal targets into SSRF-prone parameters, then runs
// the two basic localhost probes against any insertion point.
func (c *Check) Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	if baseline == nil || baseline.Request == nil || ip == nil {
		return nil
	}
	var out []*finding.Finding

	if c.paramMatches(ip.Name()) {
		out = append(out, c.testInternalTargets(ctx, baseline, ip)...)
	}
	out = append(out, c.testBasicProbes(ctx, baseline, ip)...)

	for _, f := range out {
		c.cfg.NotifyFinding(f)
	}
	return out
}

// paramMatches reports whether the insertion point name is a known
// SSRF-prone parameter from the url-params category.
func (c *Check) paramMatches(name string) bool {
	for _, entry := range c.entries("url-params") {
		if strings.EqualFold(name, entry.Value) {
			return true
		}
	}
	return false
}

func (c *Check) testInternalTargets(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, target := range c.entries("internal-targets") {
		if ctx.Err() != nil {
			break
		}
		res := c.sendPayload(ctx, ip, target.Value)
		if res == nil {
			continue
		}
		targetType := describeTarget(target.Value)
		name := "SSRF - Server Follows Redirects to " + targetType

		switch {
		case res.Status == 200 && containsCloudMetadata(res):
			f := finding.New(payload.ModuleSSRF, name)
			f.Severity = finding.SeverityHigh
			f.Confidence = finding.ConfidenceFirm
			f.URL = url
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("The server fetched and returned content from the internal target "+
				"%q. The response contains cloud metadata indicators confirming SSRF.", target.Value)
			f.Remediation = "Implement strict URL allow-listing for outbound requests. Block requests " +
				"to internal IP ranges and cloud metadata endpoints. Use IMDSv2 on AWS."
			f.CVERefs = target.CVERefs
			out = append(out, f)
		case res.Status >= 300 && res.Status < 400:
			location := res.HeaderValue("location")
			if location == "" || !pointsToInternal(location) {
				continue
			}
			f := finding.New(payload.ModuleSSRF, name)
			f.Severity = finding.SeverityMedium
			f.Confidence = finding.ConfidenceFirm
			f.URL = url
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("The server returned a redirect (HTTP %d) to the internal address "+
				"%q when the parameter was set to %q.", res.Status, location, target.Value)
			f.Remediation = "Validate redirect targets against an allow-list. Do not follow redirects " +
				"to internal IP ranges."
			f.CVERefs = target.CVERefs
			out = append(out, f)
		case diff.Differs(baseline.Response, res):
			f := finding.New(payload.ModuleSSRF, name)
			f.Severity = finding.SeverityMedium
			f.Confidence = finding.ConfidenceTentative
			f.URL = url
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("The server produced a significantly different response when the "+
				"parameter was set to %q. The response may indicate the server attempted to fetch "+
				"the internal URL. Similarity: %.2f", target.Value, diff.BodySimilarity(baseline.Response, res))
			f.Remediation = "Restrict outbound requests to an allow-list of external URLs. Block all " +
				"internal IP ranges and cloud metadata endpoints."
			f.CVERefs = target.CVERefs
			out = append(out, f)
		}
	}
	return out
}

func (c *Check) testBasicProbes(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, target := range basicProbes {
		if ctx.Err() != nil {
			break
		}
		res := c.sendPayload(ctx, ip, target)
		if res == nil {
			continue
		}
		switch {
		case res.Status == 200 && containsCloudMetadata(res):
			f := finding.New(payload.ModuleSSRF, "SSRF - Server Follows Redirects to Localhost")
			f.Severity = finding.SeverityHigh
			f.Confidence = finding.ConfidenceFirm
			f.URL = url
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("The server returned metadata content when the insertion point "+
				"was set to %q. This confirms a server-side request forgery vulnerability.", target)
			f.Remediation = "Block server-side requests to localhost and internal networks."
			out = append(out, f)
		case diff.Differs(baseline.Response, res):
			f := finding.New(payload.ModuleSSRF, "SSRF - Server Follows Redirects to Localhost")
			f.Severity = finding.SeverityMedium
			f.Confidence = finding.ConfidenceTentative
			f.URL = url
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("The server produced a different response when the insertion "+
				"point was set to %q. This may indicate the server is making outbound requests "+
				"based on user input.", target)
			f.Remediation = "Validate and restrict outbound request targets. Block requests to " +
				"127.0.0.1 and localhost."
			out = append(out, f)
		}
	}
	return out
}

func (c *Check) entries(category string) []*payload.Entry {
	if c.cfg.Registry == nil {
		return nil
	}
	entries := c.cfg.Registry.Enabled(payload.ModuleSSRF, category)
	return entries[:c.cfg.Limit(len(entries))]
}

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

func containsCloudMetadata(res *probe.Result) bool {
	for _, indicator := range cloudMetadataIndicators {
		if res.BodyContains(indicator) {
			return true
		}
	}
	return false
}

func containsErrorKeyword(res *probe.Result) bool {
	for _, word := range errorKeywords {
		if res.BodyContains(word) {
			return true
		}
	}
	return false
}

func pointsToInternal(rawurl string) bool {
	if rawurl == "" {
		return false
	}
	lower := strings.ToLower(rawurl)
	if regexcache.MustGet(internalIPPattern).MatchString(lower) {
		return true
	}
	for _, keyword := range internalURLKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func describeTarget(target string) string {
	lower := strings.ToLower(target)
	for _, keyword := range internalURLKeywords {
		if strings.Contains(lower, keyword) {
			return "Cloud Metadata"
		}
	}
	if strings.Contains(lower, "127.0.0.1") || strings.Contains(lower, "localhost") {
		return "Localhost"
	}
	return "Internal Network"
}
