// Package tunnel detects HTTP/2 CONNECT tunnel abuse. The passive audit
// fingerprints HTTP/2 support from alt-svc and upgrade headers; the
// active audit opens real HTTP/2 connections to the origin and issues
// CONNECT requests toward internal targets. Only the expected status
// codes are reported (200 tunnel open, 407 tunnel gated behind proxy
// auth); anything else is inconclusive and dropped.
//
// References: CVE-2025-49630, CVE-2025-53020.
package tunnel

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
const CheckName = "HTTP/2 CONNECT"

const (
	cveTunnel    = "CVE-2025-49630"
	cveSmuggling = "CVE-2025-53020"
)

// Config configures the HTTP/2 CONNECT check.
type Config struct {
	scanner.Base
	Registry *payload.Registry
	// Dialer opens CONNECT tunnels. Defaults to an HTTP/2-over-TLS
	// dialer against the baseline origin.
	Dialer Dialer
}

// Check implements scanner.Check for CONNECT tunnel abuse.
type Check struct {
	scanner.Toggle
	cfg Config
}

// New returns an HTTP/2 CONNECT check over the given registry.
func New(cfg Config) *Check {
	cfg.Base.Validate()
	if cfg.Dialer == nil {
		cfg.Dialer = &HTTP2Dialer{Logger: cfg.Logger}
	}
	return &Check{cfg: cfg}
}

func (c *Check) Name() string   { return CheckName }
func (c *Check) Module() string { return payload.ModuleHTTP2 }

// Passive reports HTTP/2 support advertised in response headers, plus a
// separate note when the server is Apache with HTTP/2 enabled.
func (c *Check) Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	if baseline == nil || baseline.Response == nil {
		return nil
	}
	detail := http2Indicator(baseline.Response)
	if detail == "" {
		return nil
	}
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	f := finding.New(payload.ModuleHTTP2, "HTTP/2 Detected")
	f.Severity = finding.SeverityInfo
	f.Confidence = finding.ConfidenceCertain
	f.URL = url
	f.Detail = fmt.Sprintf("HTTP/2 support was detected on this host. %s HTTP/2 CONNECT "+
		"tunnelling may allow an attacker to establish TCP tunnels through the server to "+
		"reach internal services.", detail)
	f.Remediation = "Disable HTTP/2 CONNECT on forward-facing servers unless explicitly " +
		"required. If HTTP/2 is needed, ensure CONNECT requests are denied or restricted " +
		"to authorised targets only."
	f.CVERefs = []string{cveTunnel, cveSmuggling}
	out = append(out, f)

	if server := baseline.Response.HeaderValue("server"); strings.Contains(strings.ToLower(server), "apache") {
		f := finding.New(payload.ModuleHTTP2, "HTTP/2 Detected - Apache HTTP/2 Module")
		f.Severity = finding.SeverityLow
		f.Confidence = finding.ConfidenceTentative
		f.URL = url
		f.Detail = fmt.Sprintf("An Apache server with HTTP/2 support was detected: %q. Apache's "+
			"mod_http2 has historically been vulnerable to CONNECT tunnel abuse and request "+
			"smuggling. Verify the Apache version is patched against known HTTP/2 "+
			"vulnerabilities.", server)
		f.Remediation = "Update Apache to the latest patched version. Disable mod_proxy_http2 " +
			"CONNECT if not required. Review Apache HTTP/2 security advisories."
		f.CVERefs = []string{cveTunnel, cveSmuggling}
		out = append(out, f)
	}

	for _, f := range out {
		c.cfg.NotifyFinding(f)
	}
	return out
}

// Active opens CONNECT tunnels toward each configured internal target.
// Runs only when the baseline advertises HTTP/2.
func (c *Check) Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	if baseline == nil || baseline.Request == nil || baseline.Request.URL == nil {
		return nil
	}
	if http2Indicator(baseline.Response) == "" {
		c.cfg.Logger.Debug("no HTTP/2 indicators, skipping CONNECT probes",
			"check", CheckName, "url", baseline.Request.URL.String())
		return nil
	}

	origin := originAddr(baseline.Request)
	url := baseline.Request.URL.String()
	var out []*finding.Finding

	for _, target := range c.entries("connect-targets") {
		if ctx.Err() != nil {
			break
		}
		status, err := c.cfg.Dialer.Connect(ctx, origin, target.Value)
		if err != nil {
			// transport failures prove nothing about the tunnel
			c.cfg.Logger.Debug("CONNECT probe inconclusive",
				"check", CheckName, "target", target.Value, "error", err)
			continue
		}

		switch status {
		case 200:
			f := finding.New(payload.ModuleHTTP2, "HTTP/2 CONNECT Tunnel Open - "+target.Value)
			f.Severity = finding.SeverityHigh
			f.Confidence = finding.ConfidenceFirm
			f.URL = url
			f.Detail = fmt.Sprintf("An HTTP/2 CONNECT tunnel was successfully established to %q "+
				"(HTTP 200 returned). This allows an attacker to relay TCP traffic through the "+
				"server to the internal target, potentially accessing databases, caches, admin "+
				"panels, or cloud metadata services.", target.Value)
			f.Remediation = "Disable HTTP/2 CONNECT on public-facing servers. If CONNECT is " +
				"required, restrict allowed target hosts and ports to a strict allow-list."
			f.CVERefs = appendCVEs(target.CVERefs)
			out = append(out, f)
		case 407:
			f := finding.New(payload.ModuleHTTP2, "HTTP/2 CONNECT Tunnel Open - "+target.Value)
			f.Severity = finding.SeverityMedium
			f.Confidence = finding.ConfidenceFirm
			f.URL = url
			f.Detail = fmt.Sprintf("The server returned HTTP 407 (Proxy Authentication Required) "+
				"for a CONNECT request to %q. This confirms the server acts as an HTTP/2 proxy "+
				"and accepts CONNECT requests. With valid credentials, an attacker could tunnel "+
				"traffic to internal targets.", target.Value)
			f.Remediation = "Disable HTTP/2 CONNECT if proxy functionality is not intended. If " +
				"required, enforce strong authentication and restrict target hosts."
			f.CVERefs = appendCVEs(target.CVERefs)
			out = append(out, f)
		}
		// 403, 405 and the rest are expected denials, not reported
	}

	for _, f := range out {
		c.cfg.NotifyFinding(f)
	}
	return out
}

func (c *Check) entries(category string) []*payload.Entry {
	if c.cfg.Registry == nil {
		return nil
	}
	entries := c.cfg.Registry.Enabled(payload.ModuleHTTP2, category)
	return entries[:c.cfg.Limit(len(entries))]
}

// http2Indicator returns a human-readable description of the HTTP/2
// evidence in the response headers, or "" when there is none.
func http2Indicator(res *probe.Result) string {
	if res == nil {
		return ""
	}
	if altSvc := res.HeaderValue("alt-svc"); altSvc != "" {
		lower := strings.ToLower(altSvc)
		if strings.Contains(lower, "h2") || strings.Contains(lower, "h3") {
			return fmt.Sprintf("The alt-svc header advertises HTTP/2 or HTTP/3 support: %q.", altSvc)
		}
	}
	if upgrade := res.HeaderValue("upgrade"); upgrade != "" {
		if strings.Contains(strings.ToLower(upgrade), "h2") {
			return fmt.Sprintf("The upgrade header indicates HTTP/2 cleartext (h2c) support: %q.", upgrade)
		}
	}
	return ""
}

// originAddr returns the host:port to dial for the baseline origin.
func originAddr(req *probe.Request) string {
	host := req.URL.Host
	if req.URL.Port() != "" {
		return host
	}
	if req.URL.Scheme == "http" {
		return host + ":80"
	}
	return host + ":443"
}

func appendCVEs(refs []string) []string {
	out := append([]string(nil), refs...)
	for _, cve := range []string{cveTunnel, cveSmuggling} {
		found := false
		for _, ref := range out {
			if ref == cve {
				found = true
				break
			}
		}
		if !found {
			out = append(out, cve)
		}
	}
	return out
}
