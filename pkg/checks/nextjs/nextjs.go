// Package nextjs detects Next.js cache poisoning and middleware bypass.
// The passive audit fingerprints Next.js from the baseline; the active
// audit replays the baseline request with internal headers and cache-key
// polluting parameters and diffs the responses.
//
// References: CVE-2024-46982, CVE-2025-29927.
package nextjs

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
const CheckName = "Next.js Cache"

// Config configures the Next.js check.
type Config struct {
	scanner.Base
	Registry *payload.Registry
}

// Check implements scanner.Check for Next.js cache and middleware issues.
type Check struct {
	scanner.Toggle
	cfg Config
}

// New returns a Next.js check over the given registry.
func New(cfg Config) *Check {
	cfg.Base.Validate()
	return &Check{cfg: cfg}
}

func (c *Check) Name() string   { return CheckName }
func (c *Check) Module() string { return payload.ModuleNextJS }

// Passive fingerprints Next.js from body markers and response headers.
func (c *Check) Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	if baseline == nil || !isNextJS(baseline.Response) {
		return nil
	}

	var indicators []string
	if baseline.Response.BodyContains("__NEXT_DATA__") {
		indicators = append(indicators, "response body contains __NEXT_DATA__")
	}
	if baseline.Response.BodyContains("_next/static") {
		indicators = append(indicators, "response body contains _next/static")
	}
	if strings.EqualFold(baseline.Response.HeaderValue("x-powered-by"), "Next.js") {
		indicators = append(indicators, "header x-powered-by: Next.js")
	}
	if v := baseline.Response.HeaderValue("x-nextjs-cache"); v != "" {
		indicators = append(indicators, "header x-nextjs-cache: "+v)
	}

	f := finding.New(payload.ModuleNextJS, "Next.js Detected")
	f.Severity = finding.SeverityInfo
	f.Confidence = finding.ConfidenceCertain
	f.URL = baseline.Request.URL.String()
	f.Detail = "The target application appears to be built with Next.js. Indicators: " +
		strings.Join(indicators, "; ")
	f.Remediation = "Ensure Next.js is up to date and internal headers are not exposed to end users."
	c.cfg.NotifyFinding(f)
	return []*finding.Finding{f}
}

// Active replays the baseline with each internal header and parameter.
// Runs only against confirmed Next.js targets.
func (c *Check) Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	if baseline == nil || baseline.Request == nil || !isNextJS(baseline.Response) {
		return nil
	}
	var out []*finding.Finding
	out = append(out, c.testHeaders(ctx, baseline)...)
	out = append(out, c.testParams(ctx, baseline)...)
	for _, f := range out {
		c.cfg.NotifyFinding(f)
	}
	return out
}

func (c *Check) testHeaders(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, entry := range c.entries("nextjs-headers") {
		if ctx.Err() != nil {
			break
		}
		name, value, ok := strings.Cut(entry.Value, ": ")
		if !ok {
			continue
		}
		res := c.send(ctx, baseline.Request.WithHeader(name, value))
		if res == nil {
			continue
		}

		differs := diff.Differs(baseline.Response, res)

		// CVE-2025-29927: the subrequest header bypasses middleware
		// entirely, so any response change is the bypass itself.
		if strings.EqualFold(name, "x-middleware-subrequest") && differs {
			f := finding.New(payload.ModuleNextJS, "Next.js Middleware Bypass")
			f.Severity = finding.SeverityHigh
			f.Confidence = finding.ConfidenceFirm
			f.URL = url
			f.Detail = fmt.Sprintf("The Next.js middleware was bypassed by sending %q. "+
				"Baseline status %d, probe status %d. This indicates CVE-2025-29927, allowing "+
				"unauthenticated access to middleware-protected routes.",
				entry.Value, status(baseline.Response), res.Status)
			f.Remediation = "Upgrade Next.js to a patched version (>= 15.2.3, >= 14.2.25, >= 13.5.9). " +
				"Do not rely solely on middleware for authorization. Block the " +
				"x-middleware-subrequest header at the reverse proxy."
			f.CVERefs = entry.CVERefs
			out = append(out, f)
			continue
		}

		// Prefetch responses are minimal; a shrunken body that still gets
		// cached poisons the page for every user.
		if strings.EqualFold(name, "x-middleware-prefetch") {
			if res.BodyLen() < baseline.Response.BodyLen() &&
				diff.LengthDiffers(baseline.Response, res, diff.DefaultThreshold) {
				f := finding.New(payload.ModuleNextJS, "Next.js Cache Poisoning - Prefetch Header")
				f.Severity = finding.SeverityHigh
				f.Confidence = finding.ConfidenceFirm
				f.URL = url
				f.Detail = fmt.Sprintf("Sending %q caused the server to return a minimal prefetch "+
					"response (baseline %d bytes, probe %d bytes). This can be abused for cache "+
					"poisoning if the response is cached and served to other users.",
					entry.Value, baseline.Response.BodyLen(), res.BodyLen())
				f.Remediation = "Ensure cache keys include the x-middleware-prefetch header or strip " +
					"it at the CDN/reverse proxy layer. Upgrade to Next.js >= 14.2.7 which addresses " +
					"CVE-2024-46982."
				f.CVERefs = entry.CVERefs
				out = append(out, f)
				continue
			}
		}

		// An RSC content-type under the HTML cache key serves users a
		// component stream instead of a page.
		if strings.EqualFold(name, "Rsc") {
			if strings.Contains(res.HeaderValue("content-type"), "text/x-component") {
				f := finding.New(payload.ModuleNextJS, "Next.js Cache Poisoning - RSC Header")
				f.Severity = finding.SeverityHigh
				f.Confidence = finding.ConfidenceFirm
				f.URL = url
				detail := fmt.Sprintf("Sending %q changed the Content-Type to text/x-component "+
					"(React Server Component stream). If this response is cached under the same "+
					"cache key as the normal HTML page, users will receive an unusable response.", entry.Value)
				if cache := res.HeaderValue("x-nextjs-cache"); cache != "" {
					detail += " Cache header present: x-nextjs-cache: " + cache
				}
				f.Detail = detail
				f.Remediation = "Ensure the Rsc header is included in the cache key, or add Vary: Rsc " +
					"in the response."
				f.CVERefs = entry.CVERefs
				out = append(out, f)
				continue
			}
		}

		if differs {
			cache := res.HeaderValue("x-nextjs-cache")
			severity := finding.SeverityMedium
			if cache != "" {
				severity = finding.SeverityHigh
			}
			f := finding.New(payload.ModuleNextJS, "Next.js Cache Poisoning - "+name)
			f.Severity = severity
			f.Confidence = finding.ConfidenceTentative
			f.URL = url
			detail := fmt.Sprintf("Sending the header %q caused a different response. Baseline "+
				"status %d, probe status %d, body similarity %.2f.",
				entry.Value, status(baseline.Response), res.Status,
				diff.BodySimilarity(baseline.Response, res))
			if cache != "" {
				detail += " Cache header present: x-nextjs-cache: " + cache +
					" (indicates cacheability, cache poisoning is likely)."
			}
			if entry.Description != "" {
				detail += " Payload purpose: " + entry.Description
			}
			f.Detail = detail
			f.Remediation = fmt.Sprintf("Include the %s header in the cache key, or strip it at the "+
				"reverse proxy. Update Next.js to the latest stable release.", name)
			f.CVERefs = entry.CVERefs
			out = append(out, f)
		}
	}
	return out
}

func (c *Check) testParams(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, entry := range c.entries("nextjs-params") {
		if ctx.Err() != nil {
			break
		}
		name, value, ok := strings.Cut(entry.Value, "=")
		if !ok {
			continue
		}
		res := c.send(ctx, baseline.Request.WithQueryParam(name, value))
		if res == nil || !diff.Differs(baseline.Response, res) {
			continue
		}

		cache := res.HeaderValue("x-nextjs-cache")
		cacheControl := res.HeaderValue("cache-control")
		cacheable := cache != "" ||
			strings.Contains(cacheControl, "s-maxage") || strings.Contains(cacheControl, "public")

		severity := finding.SeverityMedium
		if cacheable {
			severity = finding.SeverityHigh
		}

		f := finding.New(payload.ModuleNextJS, fmt.Sprintf("Next.js Cache Poisoning - %s Parameter", name))
		f.Severity = severity
		f.Confidence = finding.ConfidenceTentative
		f.URL = url
		f.Parameter = name
		detail := fmt.Sprintf("Adding the URL parameter %s=%s caused a different response. Baseline "+
			"status %d, probe status %d, body similarity %.2f.",
			name, value, status(baseline.Response), res.Status,
			diff.BodySimilarity(baseline.Response, res))
		if cache != "" {
			detail += " Cache header: x-nextjs-cache: " + cache
		}
		if cacheable {
			detail += " Response appears cacheable, cache poisoning preconditions exist."
		}
		if entry.Description != "" {
			detail += " Payload purpose: " + entry.Description
		}
		f.Detail = detail
		f.Remediation = fmt.Sprintf("Ensure the parameter %s is included in the cache key or is "+
			"stripped before reaching the origin. Upgrade to Next.js >= 14.2.7 which addresses "+
			"cache poisoning via __nextDataReq.", name)
		f.CVERefs = entry.CVERefs
		out = append(out, f)
	}
	return out
}

func (c *Check) entries(category string) []*payload.Entry {
	if c.cfg.Registry == nil {
		return nil
	}
	entries := c.cfg.Registry.Enabled(payload.ModuleNextJS, category)
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

func status(r *probe.Result) int {
	if r == nil {
		return 0
	}
	return r.Status
}

func isNextJS(res *probe.Result) bool {
	if res == nil {
		return false
	}
	if res.BodyContains("__NEXT_DATA__") || res.BodyContains("_next/static") {
		return true
	}
	if strings.EqualFold(res.HeaderValue("x-powered-by"), "Next.js") {
		return true
	}
	return res.HeaderValue("x-nextjs-cache") != ""
}
