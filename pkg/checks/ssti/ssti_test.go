package ssti

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

func baselineExchange(t *testing.T, body string) *probe.Exchange {
	t.Helper()
	req, err := probe.NewRequest(http.MethodGet, "https://target.example/page?q=hello")
	require.NoError(t, err)
	return &probe.Exchange{
		Request:  req,
		Response: &probe.Result{Status: 200, Body: body},
	}
}

// evalSender evaluates 7*7 wherever a template engine would: any payload
// containing the expression comes back with 49 in the body.
func evalSender(baselineBody string) probe.Sender {
	return senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		if strings.Contains(req.URL.Query().Get("q"), "7*7") {
			return &probe.Result{Status: 200, Body: "rendered: 49"}, nil
		}
		return &probe.Result{Status: 200, Body: baselineBody}, nil
	})
}

func TestActivePolyglotDetection(t *testing.T) {
	baseline := baselineExchange(t, "welcome to the page")
	c := testCheck(t, evalSender(baseline.Response.Body))
	ip, err := probe.NewQueryParamInsertion(baseline.Request, "q")
	require.NoError(t, err)

	findings := c.Active(context.Background(), baseline, ip)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, payload.ModuleSSTI, f.Module)
	assert.Equal(t, finding.SeverityHigh, f.Severity)
	assert.Equal(t, finding.ConfidenceCertain, f.Confidence)
	assert.Equal(t, "q", f.Parameter)
	assert.Contains(t, f.Name, "SSTI Detected")
}

// A page whose baseline already contains "49" must not trigger the
// polyglot oracle.
func TestActivePolyglotSuppressedByBaselineMarker(t *testing.T) {
	baseline := baselineExchange(t, "your order total is 49 dollars")
	// only the math polyglot evaluates; everything else echoes a
	// marker-free page so the later phases stay quiet
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		if strings.Contains(req.URL.Query().Get("q"), "{{7*7}}${7*7}") {
			return &probe.Result{Status: 200, Body: "rendered: 49"}, nil
		}
		return &probe.Result{Status: 200, Body: "nothing here"}, nil
	})
	c := testCheck(t, sender)
	ip, err := probe.NewQueryParamInsertion(baseline.Request, "q")
	require.NoError(t, err)

	findings := c.Active(context.Background(), baseline, ip)
	assert.Empty(t, findings)
}

func TestActiveErrorTrigger(t *testing.T) {
	baseline := baselineExchange(t, "ok")
	// unclosed template syntax flips the status to 500
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		q := req.URL.Query().Get("q")
		if strings.Contains(q, "{{") && !strings.Contains(q, "}}") {
			return &probe.Result{Status: 500, Body: "internal error"}, nil
		}
		return &probe.Result{Status: 200, Body: "ok"}, nil
	})
	c := testCheck(t, sender)
	ip, err := probe.NewQueryParamInsertion(baseline.Request, "q")
	require.NoError(t, err)

	findings := c.Active(context.Background(), baseline, ip)
	require.NotEmpty(t, findings)
	var hit *finding.Finding
	for _, f := range findings {
		if f.Name == "SSTI Potential (Error Trigger)" {
			hit = f
		}
	}
	require.NotNil(t, hit)
	assert.Equal(t, finding.SeverityMedium, hit.Severity)
	assert.Equal(t, finding.ConfidenceTentative, hit.Confidence)
}

func TestActiveTransportFailuresYieldNothing(t *testing.T) {
	baseline := baselineExchange(t, "ok")
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		return nil, context.DeadlineExceeded
	})
	c := testCheck(t, sender)
	ip, err := probe.NewQueryParamInsertion(baseline.Request, "q")
	require.NoError(t, err)

	assert.Empty(t, c.Active(context.Background(), baseline, ip))
}

func TestActiveHonoursCancellation(t *testing.T) {
	baseline := baselineExchange(t, "ok")
	sends := 0
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		sends++
		return &probe.Result{Status: 200, Body: "ok"}, nil
	})
	c := testCheck(t, sender)
	ip, err := probe.NewQueryParamInsertion(baseline.Request, "q")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Active(ctx, baseline, ip)
	assert.Zero(t, sends, "a cancelled context must stop before any probe")
}

func TestPassiveErrorSignature(t *testing.T) {
	baseline := baselineExchange(t, "jinja2.exceptions.UndefinedError: 'user' is undefined")
	c := testCheck(t, evalSender(""))

	findings := c.Passive(context.Background(), baseline)
	require.Len(t, findings, 1)
	assert.Equal(t, finding.SeverityInfo, findings[0].Severity)
	assert.Equal(t, "SSTI Error Signature in Response", findings[0].Name)
}

func TestPassiveCleanBody(t *testing.T) {
	baseline := baselineExchange(t, "a perfectly ordinary page")
	c := testCheck(t, evalSender(""))
	assert.Empty(t, c.Passive(context.Background(), baseline))
}

func TestMatchExpectedResponse(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
		want     string
	}{
		{"first marker", "output 7777777 here", "7777777=Jinja2,49=Twig", "Jinja2"},
		{"second marker", "result 49", "7777777=Jinja2,49=Twig", "Twig"},
		{"no marker", "nothing", "7777777=Jinja2,49=Twig", ""},
		{"empty body", "", "7777777=Jinja2", ""},
		{"malformed pair", "x", "noequals,=leading", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchExpectedResponse(tt.body, tt.expected))
		})
	}
}
