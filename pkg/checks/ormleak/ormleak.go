// Package ormleak detects ORM filter leakage: endpoints that accept
// attacker-supplied filter operators on fields the API never intended to
// expose. The oracle is a paired differential probe with a stricter 5%
// length threshold, because a leaked field often shifts the body by only a
// few bytes.
package ormleak

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
const CheckName = "ORM Leak"

// Sentinel is the implausible value used for the no-match side of paired
// probes.
const Sentinel = "ZZZZNOTEXIST999"

// sensitiveFieldThreshold is the length-delta ratio for field-leak pairs.
const sensitiveFieldThreshold = 0.05

var relationalSensitiveFields = []string{"password", "token", "secret"}

var ormErrorMarkers = []string{
	"FieldError", "PrismaClientKnownRequestError", "ODataError", "Invalid filter", "Unknown field",
}

var passiveErrorSignatures = []string{
	"FieldError at", "Cannot resolve keyword", "PrismaClientKnownRequestError",
	"Invalid `prisma", "ODataException", "$filter", "Ransack",
	"ActiveRecord::StatementInvalid", "django.core.exceptions",
}

// Config configures the ORM leak check.
type Config struct {
	scanner.Base
	Registry *payload.Registry
}

// Check implements scanner.Check for ORM filter leakage.
type Check struct {
	scanner.Toggle
	cfg Config
}

// New returns an ORM leak check over the given registry.
func New(cfg Config) *Check {
	cfg.Base.Validate()
	return &Check{cfg: cfg}
}

func (c *Check) Name() string   { return CheckName }
func (c *Check) Module() string { return payload.ModuleORM }

// Passive scans the baseline body for ORM error signatures.
func (c *Check) Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	if baseline == nil || baseline.Response == nil || baseline.Response.Body == "" {
		return nil
	}
	for _, sig := range passiveErrorSignatures {
		if !baseline.Response.BodyContains(sig) {
			continue
		}
		f := finding.New(payload.ModuleORM, "ORM Error Signature in Response")
		f.Severity = finding.SeverityInfo
		f.Confidence = finding.ConfidenceTentative
		f.URL = baseline.Request.URL.String()
		f.Detail = fmt.Sprintf("The response body contains an ORM error signature: %q.", sig)
		f.Remediation = "Suppress ORM error details in production. Implement field allowlists."
		c.cfg.NotifyFinding(f)
		return []*finding.Finding{f}
	}
	return nil
}

// Active runs the three probe phases: operator acceptance, sensitive-field
// leak pairs, and relational traversal pairs.
func (c *Check) Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	if baseline == nil || baseline.Request == nil || ip == nil {
		return nil
	}
	var out []*finding.Finding
	out = append(out, c.testOrmDetect(ctx, baseline, ip)...)
	out = append(out, c.testSensitiveFields(ctx, baseline, ip)...)
	out = append(out, c.testRelationalTraversal(ctx, baseline, ip)...)
	for _, f := range out {
		c.cfg.NotifyFinding(f)
	}
	return out
}

// testOrmDetect sends each filter-operator payload. Accepted filters (no
// error, response differs) and exposed ORM errors are separate findings.
func (c *Check) testOrmDetect(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, entry := range c.entries("orm-detect") {
		if ctx.Err() != nil {
			break
		}
		res := c.sendPayload(ctx, ip, entry.Value)
		if res == nil {
			continue
		}

		differs := diff.Differs(baseline.Response, res)
		errMarker := matchedOrmError(res)
		ormType := detectOrmType(entry)

		switch {
		case differs && errMarker == "":
			f := finding.New(payload.ModuleORM, "ORM Filter Accepted via "+ormType)
			f.Severity = finding.SeverityMedium
			f.Confidence = finding.ConfidenceFirm
			f.URL = url
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("The payload %q was accepted as a filter (no error, response "+
				"differs). ORM type: %s. Similarity: %.2f",
				entry.Value, ormType, diff.BodySimilarity(baseline.Response, res))
			f.Remediation = "Implement a strict allowlist of filterable fields."
			f.CVERefs = entry.CVERefs
			out = append(out, f)
		case errMarker != "":
			f := finding.New(payload.ModuleORM, "ORM Error Exposed via "+ormType)
			f.Severity = finding.SeverityLow
			f.Confidence = finding.ConfidenceCertain
			f.URL = url
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("The payload %q triggered an ORM error: %q", entry.Value, errMarker)
			f.Remediation = "Suppress ORM errors in production. Validate filter parameters."
			f.CVERefs = entry.CVERefs
			out = append(out, f)
		}
	}
	return out
}

// testSensitiveFields pairs field__startswith=a against the sentinel value
// per sensitive field name.
func (c *Check) testSensitiveFields(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, entry := range c.entries("sensitive-fields") {
		if ctx.Err() != nil {
			break
		}
		field := entry.Value
		resA := c.sendPayload(ctx, ip, field+"__startswith=a")
		resB := c.sendPayload(ctx, ip, field+"__startswith="+Sentinel)
		if resA == nil || resB == nil {
			continue
		}
		if diff.LengthDiffers(resA, resB, sensitiveFieldThreshold) {
			f := finding.New(payload.ModuleORM, fmt.Sprintf("ORM Leak - %s Filterable via Django ORM", field))
			f.Severity = finding.SeverityHigh
			f.Confidence = finding.ConfidenceFirm
			f.URL = url
			f.Parameter = ip.Name()
			f.Detail = fmt.Sprintf("The field %q is filterable. Response delta: %d bytes.",
				field, diff.LengthDelta(resA, resB))
			f.Remediation = fmt.Sprintf("Add %s to a denylist of non-filterable fields.", field)
			f.CVERefs = entry.CVERefs
			out = append(out, f)
		}
	}
	return out
}

// testRelationalTraversal repeats the field-leak pair through each
// relational prefix, reaching sensitive fields on related models.
func (c *Check) testRelationalTraversal(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	var out []*finding.Finding
	url := baseline.Request.URL.String()

	for _, prefixEntry := range c.entries("relational-prefixes") {
		prefix := prefixEntry.Value
		for _, field := range relationalSensitiveFields {
			if ctx.Err() != nil {
				return out
			}
			resA := c.sendPayload(ctx, ip, prefix+field+"__startswith=a")
			resB := c.sendPayload(ctx, ip, prefix+field+"__startswith="+Sentinel)
			if resA == nil || resB == nil {
				continue
			}
			if diff.LengthDiffers(resA, resB, sensitiveFieldThreshold) {
				f := finding.New(payload.ModuleORM,
					fmt.Sprintf("ORM Leak - %s%s Filterable via Relational Traversal", prefix, field))
				f.Severity = finding.SeverityHigh
				f.Confidence = finding.ConfidenceFirm
				f.URL = url
				f.Parameter = ip.Name()
				f.Detail = fmt.Sprintf("The field %q is filterable via relational prefix %q. "+
					"Delta: %d bytes.", field, prefix, diff.LengthDelta(resA, resB))
				f.Remediation = "Block relational traversal. Use explicit field allowlists."
				f.CVERefs = prefixEntry.CVERefs
				out = append(out, f)
			}
		}
	}
	return out
}

func (c *Check) entries(category string) []*payload.Entry {
	if c.cfg.Registry == nil {
		return nil
	}
	entries := c.cfg.Registry.Enabled(payload.ModuleORM, category)
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

func matchedOrmError(res *probe.Result) string {
	for _, marker := range ormErrorMarkers {
		if res.BodyContains(marker) {
			return marker
		}
	}
	return ""
}

func detectOrmType(entry *payload.Entry) string {
	value := strings.ToLower(entry.Value)
	desc := strings.ToLower(entry.Description)
	switch {
	case strings.Contains(desc, "django") || strings.Contains(value, "__startswith") || strings.Contains(value, "__regex"):
		return "Django ORM"
	case strings.Contains(desc, "prisma") || strings.Contains(value, `"startswith"`) || strings.Contains(value, `"contains"`):
		return "Prisma"
	case strings.Contains(desc, "odata") || strings.Contains(value, "$filter") || strings.Contains(value, "$orderby"):
		return "OData"
	case strings.Contains(desc, "ransack") || strings.Contains(value, "q["):
		return "Ransack (Rails)"
	case strings.Contains(desc, "harbor") || strings.HasPrefix(value, "q="):
		return "Harbor"
	}
	return "Unknown ORM"
}
