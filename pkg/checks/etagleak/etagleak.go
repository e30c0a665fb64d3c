// Package etagleak detects ETag-based cross-site leak (XS-Leak)
// preconditions. The passive audit checks whether an ETag response is
// missing the cache protections the registry lists; the active audit
// replays the request with credentials stripped and compares ETags and
// body lengths across the two authentication states.
package etagleak

import (
	"context"
	"fmt"
	"strings"

	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/payload"
	"github.com/quirkscan/quirkscan/pkg/probe"
	"github.com/quirkscan/quirkscan/pkg/scanner"
)

// CheckName is the strategy name used in findings.
const CheckName = "ETag XS-Leak"

// Config configures the ETag XS-Leak check.
type Config struct {
	scanner.Base
	Registry *payload.Registry
}

// Check implements scanner.Check for ETag side channels.
type Check struct {
	scanner.Toggle
	cfg Config
}

// New returns an ETag XS-Leak check over the given registry.
func New(cfg Config) *Check {
	cfg.Base.Validate()
	return &Check{cfg: cfg}
}

func (c *Check) Name() string   { return CheckName }
func (c *Check) Module() string { return payload.ModuleETag }

// Passive reports when an ETag response is missing both the no-store
// directive and an auth-covering Vary header. A weak ETag adds a third
// precondition to the detail.
func (c *Check) Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	if baseline == nil || baseline.Response == nil {
		return nil
	}
	etag := baseline.Response.HeaderValue("etag")
	if etag == "" {
		return nil
	}

	wanted := c.entries("cache-headers")
	if len(wanted) == 0 {
		return nil
	}
	var missingNoStore, missingVary int
	var totalVary int
	for _, entry := range wanted {
		name, value, ok := strings.Cut(entry.Value, ": ")
		if !ok {
			continue
		}
		if strings.EqualFold(name, "vary") {
			totalVary++
		}
		got := strings.ToLower(baseline.Response.HeaderValue(name))
		if strings.Contains(got, strings.ToLower(value)) {
			continue
		}
		if strings.EqualFold(name, "cache-control") {
			missingNoStore++
		} else if strings.EqualFold(name, "vary") {
			missingVary++
		}
	}
	// report only when no-store is absent and no Vary entry covers auth
	if missingNoStore == 0 || missingVary < totalVary {
		return nil
	}

	preconditions := []string{
		"missing Cache-Control: no-store directive",
		"missing Vary: Cookie or Vary: Authorization header",
	}
	if strings.HasPrefix(strings.ToLower(etag), `w/"`) {
		preconditions = append(preconditions, fmt.Sprintf("weak ETag (%s) survives "+
			"content-encoding changes and is more exploitable", etag))
	}

	f := finding.New(payload.ModuleETag, "ETag XS-Leak Preconditions Present")
	f.Severity = finding.SeverityLow
	f.Confidence = finding.ConfidenceTentative
	f.URL = baseline.Request.URL.String()
	f.Detail = fmt.Sprintf("The response includes an ETag header (%s) with missing cache "+
		"protections that could enable ETag-based cross-site leak attacks. Preconditions "+
		"identified (%d/3): %s. An attacker could potentially use the ETag to detect whether "+
		"a victim is authenticated or to fingerprint the victim's session by comparing ETag "+
		"values across different authentication states.",
		etag, len(preconditions), strings.Join(preconditions, "; "))
	f.Remediation = "Add Cache-Control: no-store to responses containing user-specific " +
		"content. Include Cookie and/or Authorization in the Vary header so caches " +
		"differentiate responses by authentication state. Consider removing ETag headers " +
		"from authenticated endpoints."
	c.cfg.NotifyFinding(f)
	return []*finding.Finding{f}
}

// Active replays the baseline with Cookie and Authorization stripped and
// compares ETags across authentication states. Differing ETags with
// differing body lengths confirm the side channel; differing ETags alone
// are still notable.
func (c *Check) Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	if baseline == nil || baseline.Request == nil || baseline.Response == nil {
		return nil
	}
	authETag := baseline.Response.HeaderValue("etag")
	if authETag == "" {
		return nil
	}

	unauthReq := baseline.Request.WithoutHeader("Cookie").WithoutHeader("Authorization")
	res, err := c.cfg.Sender.Send(ctx, unauthReq)
	if err != nil {
		c.cfg.Logger.Debug("unauthenticated probe failed", "check", CheckName, "error", err)
		return nil
	}
	unauthETag := res.HeaderValue("etag")
	if unauthETag == "" || authETag == unauthETag {
		// same ETag across auth states, no leak possible
		return nil
	}

	url := baseline.Request.URL.String()
	authLen := baseline.Response.BodyLen()
	unauthLen := res.BodyLen()

	f := finding.New(payload.ModuleETag, "ETag XS-Leak Preconditions Present")
	f.Severity = finding.SeverityLow
	f.URL = url
	if authLen != unauthLen {
		f.Confidence = finding.ConfidenceFirm
		f.Detail = fmt.Sprintf("Active verification confirmed that the ETag differs between "+
			"authenticated and unauthenticated requests, and the response body lengths also "+
			"differ. Authenticated ETag: %s (body length %d). Unauthenticated ETag: %s (body "+
			"length %d). An attacker can exploit this difference to detect a victim's "+
			"authentication state using cross-site ETag probing. By caching an unauthenticated "+
			"response and then re-requesting with If-None-Match, a 200 vs 304 difference "+
			"reveals the victim's login status.", authETag, authLen, unauthETag, unauthLen)
		f.Remediation = "Add Cache-Control: no-store to authenticated endpoints. Include " +
			"Vary: Cookie, Authorization in the response. Consider removing ETag headers from " +
			"endpoints that serve different content based on authentication."
	} else {
		f.Confidence = finding.ConfidenceTentative
		f.Detail = fmt.Sprintf("The ETag differs between authenticated and unauthenticated "+
			"requests, although the response body lengths are identical. Authenticated ETag: "+
			"%s. Unauthenticated ETag: %s. While the identical body lengths reduce "+
			"exploitability, the differing ETags could still allow authentication state "+
			"detection via conditional requests.", authETag, unauthETag)
		f.Remediation = "Add Cache-Control: no-store to authenticated endpoints. Include " +
			"Vary: Cookie, Authorization in the response."
	}
	c.cfg.NotifyFinding(f)
	return []*finding.Finding{f}
}

func (c *Check) entries(category string) []*payload.Entry {
	if c.cfg.Registry == nil {
		return nil
	}
	entries := c.cfg.Registry.Enabled(payload.ModuleETag, category)
	return entries[:c.cfg.Limit(len(entries))]
}
