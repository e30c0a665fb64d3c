package parserdiff

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/payload"
	"github.com/quirkscan/quirkscan/pkg/probe"
	"github.com/quirkscan/quirkscan/pkg/scanner"
)

type senderFunc func(ctx context.Context, req *probe.Request) (*probe.Result, error)

func (f senderFunc) Send(ctx context.Context, req *probe.Request) (*probe.Result, error) {
	return f(ctx, req)
}

func testRegistry(t *testing.T) *payload.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payloads.json")
	return payload.NewRegistry(path, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func testCheck(t *testing.T, sender probe.Sender) *Check {
	t.Helper()
	return New(Config{
		Base:     scanner.Base{Sender: sender},
		Registry: testRegistry(t),
	})
}

const normalPage = "regular user profile page"

func jsonBaseline(t *testing.T) *probe.Exchange {
	t.Helper()
	req, err := probe.NewRequest(http.MethodPost, "https://target.example/api/profile")
	require.NoError(t, err)
	req = req.WithBody([]byte(`{"role":"user"}`), "application/json")
	return &probe.Exchange{
		Request:  req,
		Response: &probe.Result{Status: 200, Body: normalPage},
	}
}

func getBaseline(t *testing.T) *probe.Exchange {
	t.Helper()
	req, err := probe.NewRequest(http.MethodGet, "https://target.example/profile?page=home")
	require.NoError(t, err)
	return &probe.Exchange{
		Request:  req,
		Response: &probe.Result{Status: 200, Body: normalPage},
	}
}

func TestActiveDuplicateJSONKeys(t *testing.T) {
	baseline := jsonBaseline(t)
	// a last-wins parser grants the admin role for the duplicate-key body
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		if strings.Contains(string(req.Body), `"role":"user","role":"admin"`) {
			return &probe.Result{Status: 200, Body: "welcome back, administrator! here is everything"}, nil
		}
		return &probe.Result{Status: 200, Body: normalPage}, nil
	})
	c := testCheck(t, sender)

	findings := c.Active(context.Background(), baseline, nil)

	var dup []*finding.Finding
	for _, f := range findings {
		if f.Name == "Duplicate JSON Key Handling" {
			dup = append(dup, f)
		}
	}
	require.Len(t, dup, 1)
	assert.Equal(t, finding.SeverityMedium, dup[0].Severity)
	assert.Equal(t, finding.ConfidenceFirm, dup[0].Confidence)
}

func TestActiveDuplicateKeysSkippedWithoutJSONBody(t *testing.T) {
	baseline := getBaseline(t)
	var jsonBodies int
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		if strings.Contains(string(req.Body), "role") {
			jsonBodies++
		}
		return &probe.Result{Status: 200, Body: normalPage}, nil
	})
	c := testCheck(t, sender)

	c.Active(context.Background(), baseline, nil)
	assert.Zero(t, jsonBodies, "duplicate-key probes need a JSON baseline")
}

func TestActiveMethodOverride(t *testing.T) {
	baseline := getBaseline(t)
	// the server honours X-HTTP-Method-Override: DELETE and errors out
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		if req.Header.Get("X-HTTP-Method-Override") == "DELETE" {
			return &probe.Result{Status: 405, Body: "cannot delete profile"}, nil
		}
		return &probe.Result{Status: 200, Body: normalPage}, nil
	})
	c := testCheck(t, sender)

	findings := c.Active(context.Background(), baseline, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, "Method Override Accepted", findings[0].Name)
	assert.Equal(t, finding.SeverityMedium, findings[0].Severity)
	assert.Equal(t, finding.ConfidenceFirm, findings[0].Confidence)
}

func TestActiveContentTypeConfusion(t *testing.T) {
	baseline := jsonBaseline(t)
	// the server processes the JSON body no matter what Content-Type says
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		return &probe.Result{Status: 200, Body: normalPage}, nil
	})
	c := testCheck(t, sender)

	findings := c.Active(context.Background(), baseline, nil)

	var confusion []*finding.Finding
	for _, f := range findings {
		if f.Name == "Content-Type Confusion" {
			confusion = append(confusion, f)
		}
	}
	// one per swapped content type
	assert.Len(t, confusion, 4)
	for _, f := range confusion {
		assert.Equal(t, finding.ConfidenceTentative, f.Confidence)
	}
}

func TestActiveURLParsingBypass(t *testing.T) {
	baseline := getBaseline(t)
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		value := req.URL.Query().Get("page")
		switch {
		case strings.Contains(value, ";/admin"):
			return &probe.Result{Status: 200, Body: "admin control panel"}, nil
		case strings.Contains(value, "@evil.com"):
			return &probe.Result{Status: 502, Body: "bad gateway"}, nil
		default:
			return &probe.Result{Status: 200, Body: normalPage}, nil
		}
	})
	c := testCheck(t, sender)
	ip, err := probe.NewQueryParamInsertion(baseline.Request, "page")
	require.NoError(t, err)

	findings := c.Active(context.Background(), baseline, ip)

	byName := map[string]int{}
	for _, f := range findings {
		byName[f.Name]++
	}
	assert.Equal(t, 1, byName["URL Parsing Bypass"], "restricted content upgrades the finding")
	assert.Equal(t, 3, byName["URL Parsing Anomaly"], "one per @evil.com variant")
}

func TestActiveQuietOnStableResponses(t *testing.T) {
	baseline := getBaseline(t)
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		return &probe.Result{Status: 200, Body: normalPage}, nil
	})
	c := testCheck(t, sender)
	ip, err := probe.NewQueryParamInsertion(baseline.Request, "page")
	require.NoError(t, err)

	assert.Empty(t, c.Active(context.Background(), baseline, ip))
}

func TestPassiveDuplicateKeyWarning(t *testing.T) {
	baseline := getBaseline(t)
	baseline.Response.Body = `{"warning":"duplicate key 'role' in request"}`
	c := testCheck(t, nil)

	findings := c.Passive(context.Background(), baseline)
	require.Len(t, findings, 1)
	assert.Equal(t, "Duplicate Key Warning Detected", findings[0].Name)
	assert.Equal(t, finding.SeverityLow, findings[0].Severity)
}

func TestPassiveJSONParseError(t *testing.T) {
	baseline := getBaseline(t)
	baseline.Response.Body = "SyntaxError: Unexpected token < in JSON at position 0"
	c := testCheck(t, nil)

	findings := c.Passive(context.Background(), baseline)
	require.Len(t, findings, 1)
	assert.Equal(t, "JSON Parse Error Exposed", findings[0].Name)
}

func TestPassiveCleanResponse(t *testing.T) {
	baseline := getBaseline(t)
	c := testCheck(t, nil)
	assert.Empty(t, c.Passive(context.Background(), baseline))
}
