// Package uninorm detects Unicode-normalization WAF bypass. Phase 1
// establishes that the target folds fullwidth characters to ASCII (the
// marker round-trip probe); only then do the bypass phases pair each
// blocked ASCII payload with its transformable equivalent.
//
// References: CVE-2024-43093, CVE-2025-52488.
package uninorm

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/payload"
	"github.com/quirkscan/quirkscan/pkg/probe"
	"github.com/quirkscan/quirkscan/pkg/scanner"
)

// CheckName is the strategy name used in findings.
const CheckName = "Unicode Normalization"

// normalizationProbeLimit caps how many fullwidth-map payloads phase 1
// spends on establishing that the target normalizes at all.
const normalizationProbeLimit = 5

var blockIndicators = []string{"blocked", "forbidden", "waf", "firewall"}

// Config configures the Unicode normalization check.
type Config struct {
	scanner.Base
	Registry *payload.Registry
}

// Check implements scanner.Check for Unicode normalization bypass.
type Check struct {
	scanner.Toggle
	cfg Config
}

// New returns a Unicode normalization check over the given registry.
func New(cfg Config) *Check {
	cfg.Base.Validate()
	return &Check{cfg: cfg}
}

func (c *Check) Name() string   { return CheckName }
func (c *Check) Module() string { return payload.ModuleUnicode }

// Passive looks for reflected-input evidence of normalization: a fullwidth
// character in the request whose ASCII fold appears in the response while
// the fullwidth form does not. Requires a UTF-8 response.
func (c *Check) Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	if baseline == nil || baseline.Response == nil {
		return nil
	}
	contentType := baseline.Response.HeaderValue("content-type")
	if !strings.Contains(strings.ToLower(contentType), "utf-8") {
		return nil
	}

	combined := baseline.Request.URL.Path + string(baseline.Request.Body)
	if combined == "" || baseline.Response.Body == "" {
		return nil
	}

	normalized := false
	for _, r := range combined {
		if r < 0xFF01 || r > 0xFF5E {
			continue
		}
		ascii := string(rune(r - 0xFEE0))
		if strings.Contains(baseline.Response.Body, ascii) &&
			!strings.Contains(baseline.Response.Body, string(r)) {
			normalized = true
			break
		}
	}
	if !normalized {
		return nil
	}

	f := finding.New(payload.ModuleUnicode, "Unicode Normalization Detected")
	f.Severity = finding.SeverityInfo
	f.Confidence = finding.ConfidenceTentative
	f.URL = baseline.Request.URL.String()
	f.Detail = fmt.Sprintf("The endpoint accepts UTF-8 input containing fullwidth Unicode "+
		"characters and reflects normalized (ASCII) equivalents in the response. This may "+
		"indicate server-side Unicode normalization, which can be leveraged to bypass WAF "+
		"rules and input filters. Content-Type: %s", contentType)
	f.Remediation = "Normalize input before applying security filters. Ensure WAF rules " +
		"operate on the post-normalization form of the input."
	c.cfg.NotifyFinding(f)
	return []*finding.Finding{f}
}

// Active establishes normalization first; without it the bypass phases are
// meaningless and the pass yields nothing.
func (c *Check) Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	if baseline == nil || baseline.Request == nil || ip == nil {
		return nil
	}
	if !c.detectNormalization(ctx, ip) {
		return nil
	}
	url := baseline.Request.URL.String()

	var out []*finding.Finding

	f := finding.New(payload.ModuleUnicode, "Unicode Normalization Detected")
	f.Severity = finding.SeverityMedium
	f.Confidence = finding.ConfidenceFirm
	f.URL = url
	f.Parameter = ip.Name()
	f.Detail = "The target normalizes fullwidth Unicode characters to their ASCII " +
		"equivalents. Fullwidth characters inserted via the scan insertion point were " +
		"reflected in their ASCII form in the response body. This is a prerequisite for " +
		"WAF bypass via Unicode normalization."
	f.Remediation = "Normalize all input before applying security filters (WAF, input " +
		"validation). Ensure security checks operate on the canonical form of the input. " +
		"Consider rejecting requests containing fullwidth Unicode in security-sensitive parameters."
	f.CVERefs = []string{"CVE-2024-43093", "CVE-2025-52488"}
	out = append(out, f)

	out = append(out, c.testAttackPayloads(ctx, ip, url)...)
	out = append(out, c.testSpecificBypasses(ctx, ip, url)...)
	for _, f := range out {
		c.cfg.NotifyFinding(f)
	}
	return out
}

// detectNormalization sends test<fullwidth>test probes and looks for the
// folded form echoed back.
func (c *Check) detectNormalization(ctx context.Context, ip probe.InsertionPoint) bool {
	entries := c.entries("fullwidth-map")
	if len(entries) > normalizationProbeLimit {
		entries = entries[:normalizationProbeLimit]
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return false
		}
		res := c.sendPayload(ctx, ip, "test"+entry.Value+"test")
		if res == nil {
			continue
		}
		expected := "test" + Fold(entry.Value) + "test"
		if strings.Contains(res.Body, expected) {
			return true
		}
	}
	return false
}

// testAttackPayloads pairs each fullwidth attack string against its ASCII
// fold. ASCII blocked and Unicode accepted confirms the bypass; both
// accepted with the fold reflected still shows normalization risk.
func (c *Check) testAttackPayloads(ctx context.Context, ip probe.InsertionPoint, url string) []*finding.Finding {
	var out []*finding.Finding

	for _, entry := range c.entries("attack-payloads") {
		if ctx.Err() != nil {
			break
		}
		unicodePayload := entry.Value
		asciiPayload := Fold(unicodePayload)

		asciiRes := c.sendPayload(ctx, ip, asciiPayload)
		unicodeRes := c.sendPayload(ctx, ip, unicodePayload)
		if asciiRes == nil && unicodeRes == nil {
			continue
		}

		asciiBlocked := isBlocked(asciiRes)
		unicodeBlocked := isBlocked(unicodeRes)

		switch {
		case asciiBlocked && !unicodeBlocked:
			f := finding.New(payload.ModuleUnicode, "Unicode Normalization WAF Bypass Confirmed")
			f.Severity = finding.SeverityHigh
			f.Confidence = finding.ConfidenceFirm
			f.URL = url
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("A WAF bypass via Unicode normalization was confirmed. The "+
				"ASCII payload was blocked (status %d) but the fullwidth Unicode equivalent was "+
				"accepted (status %d). ASCII payload: %q. Unicode payload: %q. Payload purpose: %s",
				status(asciiRes), status(unicodeRes), asciiPayload, unicodePayload, entry.Description)
			f.Remediation = "Normalize all input to NFC/NFKC form before applying WAF rules. " +
				"Block or reject requests containing fullwidth Unicode in security-sensitive parameters."
			f.CVERefs = []string{"CVE-2024-43093", "CVE-2025-52488"}
			out = append(out, f)
		case !asciiBlocked && !unicodeBlocked:
			if unicodeRes != nil && strings.Contains(unicodeRes.Body, asciiPayload) {
				f := finding.New(payload.ModuleUnicode, "Unicode Normalization Reflected")
				f.Severity = finding.SeverityMedium
				f.Confidence = finding.ConfidenceFirm
				f.URL = url
				f.Parameter = ip.Name()
				f.Detail = fmt.Sprintf("The fullwidth Unicode payload was normalized to its ASCII "+
					"form and reflected in the response, but no WAF blocking was observed for the "+
					"ASCII version either. ASCII payload: %q. Unicode payload: %q. Payload purpose: "+
					"%s. This is still risky because input filters may exist deeper in the "+
					"application stack.", asciiPayload, unicodePayload, entry.Description)
				f.Remediation = "Normalize all input before applying security filters. Ensure WAF " +
					"rules operate on the canonical form."
				out = append(out, f)
			}
		}
	}
	return out
}

// testSpecificBypasses names the attack class being demonstrated for the
// three canonical primitives.
func (c *Check) testSpecificBypasses(ctx context.Context, ip probe.InsertionPoint, url string) []*finding.Finding {
	var out []*finding.Finding
	cases := []struct {
		ascii, unicode, kind, detail string
	}{
		{"<script>", "＜script＞", "XSS",
			"XSS via Unicode normalization: the ASCII <script> tag was blocked by the WAF, but " +
				"the fullwidth equivalent was accepted and may be normalized to <script> server-side."},
		{"../", "．．／", "Path Traversal",
			"Path traversal via Unicode normalization: the ASCII ../ sequence was blocked by the " +
				"WAF, but the fullwidth equivalent was accepted and may be normalized to ../ server-side."},
		{"'", "＇", "SQL Injection",
			"SQL injection via Unicode normalization: the ASCII single quote was blocked by the " +
				"WAF, but the fullwidth equivalent was accepted and may be normalized to ' server-side."},
	}

	for _, tc := range cases {
		if ctx.Err() != nil {
			break
		}
		asciiRes := c.sendPayload(ctx, ip, tc.ascii)
		unicodeRes := c.sendPayload(ctx, ip, tc.unicode)
		if !isBlocked(asciiRes) || isBlocked(unicodeRes) {
			continue
		}
		f := finding.New(payload.ModuleUnicode, fmt.Sprintf("Unicode Normalization %s Bypass", tc.kind))
		f.Severity = finding.SeverityHigh
		f.Confidence = finding.ConfidenceFirm
		f.URL = url
		f.Parameter = ip.Name()
		f.Detail = fmt.Sprintf("%s ASCII payload status: %d (blocked). Unicode payload status: "+
			"%d (accepted).", tc.detail, status(asciiRes), status(unicodeRes))
		f.Remediation = "Normalize all input to NFC/NFKC form before applying WAF and input " +
			"validation rules. Consider blocking fullwidth Unicode characters in " +
			"security-sensitive contexts."
		f.CVERefs = []string{"CVE-2024-43093", "CVE-2025-52488"}
		out = append(out, f)
	}
	return out
}

func (c *Check) entries(category string) []*payload.Entry {
	if c.cfg.Registry == nil {
		return nil
	}
	entries := c.cfg.Registry.Enabled(payload.ModuleUnicode, category)
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

// Fold returns the canonical ASCII form a normalizing backend would
// produce: fullwidth variants narrow first, then NFKC collapses the
// remaining compatibility characters (ligatures, circled letters).
func Fold(s string) string {
	return norm.NFKC.String(width.Narrow.String(s))
}

// isBlocked reports whether the response looks like a WAF or filter
// rejection: HTTP 403, or a block indicator word in the body. An absent
// response is not "blocked"; a dropped probe proves nothing.
func isBlocked(res *probe.Result) bool {
	if res == nil {
		return false
	}
	if res.Status == 403 {
		return true
	}
	for _, word := range blockIndicators {
		if res.BodyContains(word) {
			return true
		}
	}
	return false
}

func status(r *probe.Result) int {
	if r == nil {
		return 0
	}
	return r.Status
}
