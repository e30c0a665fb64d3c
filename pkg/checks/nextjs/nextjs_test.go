package nextjs

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

func nextBaseline(t *testing.T, status int, body string) *probe.Exchange {
	t.Helper()
	req, err := probe.NewRequest(http.MethodGet, "https://target.example/admin")
	require.NoError(t, err)
	return &probe.Exchange{
		Request: req,
		Response: &probe.Result{
			Status: status,
			Header: http.Header{"X-Powered-By": {"Next.js"}},
			Body:   body,
		},
	}
}

func TestActiveMiddlewareBypass(t *testing.T) {
	// a middleware-protected route: 307 to login unless the internal
	// subrequest header is present
	baseline := nextBaseline(t, 307, "redirecting to /login")
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		if req.Header.Get("x-middleware-subrequest") != "" {
			return &probe.Result{Status: 200, Body: "admin panel contents"}, nil
		}
		return &probe.Result{Status: 307, Body: "redirecting to /login"}, nil
	})
	c := testCheck(t, sender)

	findings := c.Active(context.Background(), baseline, nil)
	// both default subrequest header variants bypass
	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, "Next.js Middleware Bypass", f.Name)
		assert.Equal(t, finding.SeverityHigh, f.Severity)
		assert.Equal(t, finding.ConfidenceFirm, f.Confidence)
		assert.Contains(t, f.CVERefs, "CVE-2025-29927")
	}
}

func TestActivePrefetchAndParamPoisoning(t *testing.T) {
	page := strings.Repeat("p", 500)
	baseline := nextBaseline(t, 200, page)
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		if req.Header.Get("x-middleware-prefetch") != "" {
			return &probe.Result{Status: 200, Body: "{}"}, nil
		}
		if req.URL.Query().Get("__nextDataReq") != "" {
			return &probe.Result{
				Status: 200,
				Header: http.Header{"X-Nextjs-Cache": {"HIT"}},
				Body:   `{"pageProps":{}}`,
			}, nil
		}
		return &probe.Result{Status: 200, Body: page}, nil
	})
	c := testCheck(t, sender)

	findings := c.Active(context.Background(), baseline, nil)
	require.Len(t, findings, 2)

	prefetch := findings[0]
	assert.Equal(t, "Next.js Cache Poisoning - Prefetch Header", prefetch.Name)
	assert.Equal(t, finding.SeverityHigh, prefetch.Severity)
	assert.Contains(t, prefetch.CVERefs, "CVE-2024-46982")

	param := findings[1]
	assert.Equal(t, "Next.js Cache Poisoning - __nextDataReq Parameter", param.Name)
	assert.Equal(t, finding.SeverityHigh, param.Severity, "cache header present raises severity")
	assert.Equal(t, "__nextDataReq", param.Parameter)
}

func TestActiveRscContentTypeSwitch(t *testing.T) {
	page := strings.Repeat("p", 500)
	baseline := nextBaseline(t, 200, page)
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		if req.Header.Get("Rsc") != "" {
			return &probe.Result{
				Status: 200,
				Header: http.Header{"Content-Type": {"text/x-component"}},
				Body:   page,
			}, nil
		}
		return &probe.Result{Status: 200, Body: page}, nil
	})
	c := testCheck(t, sender)

	findings := c.Active(context.Background(), baseline, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, "Next.js Cache Poisoning - RSC Header", findings[0].Name)
	assert.Equal(t, finding.SeverityHigh, findings[0].Severity)
}

func TestActiveSkipsNonNextTargets(t *testing.T) {
	req, err := probe.NewRequest(http.MethodGet, "https://target.example/")
	require.NoError(t, err)
	baseline := &probe.Exchange{
		Request:  req,
		Response: &probe.Result{Status: 200, Body: "plain php site"},
	}

	sends := 0
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		sends++
		return &probe.Result{Status: 200, Body: "plain php site"}, nil
	})
	c := testCheck(t, sender)

	assert.Empty(t, c.Active(context.Background(), baseline, nil))
	assert.Empty(t, c.Passive(context.Background(), baseline))
	assert.Zero(t, sends)
}

func TestPassiveFingerprint(t *testing.T) {
	baseline := nextBaseline(t, 200, `<script id="__NEXT_DATA__">{}</script>`)
	c := testCheck(t, senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		return &probe.Result{Status: 200}, nil
	}))

	findings := c.Passive(context.Background(), baseline)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, "Next.js Detected", f.Name)
	assert.Equal(t, finding.SeverityInfo, f.Severity)
	assert.Equal(t, finding.ConfidenceCertain, f.Confidence)
	assert.Contains(t, f.Detail, "__NEXT_DATA__")
	assert.Contains(t, f.Detail, "x-powered-by")
}

func TestIsNextJS(t *testing.T) {
	tests := []struct {
		name string
		res  *probe.Result
		want bool
	}{
		{"nil", nil, false},
		{"body marker", &probe.Result{Body: "src=/_next/static/chunk.js"}, true},
		{"powered-by header", &probe.Result{Header: http.Header{"X-Powered-By": {"Next.js"}}}, true},
		{"cache header", &probe.Result{Header: http.Header{"X-Nextjs-Cache": {"MISS"}}}, true},
		{"unrelated", &probe.Result{Body: "hello", Header: http.Header{"Server": {"nginx"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNextJS(tt.res))
		})
	}
}
