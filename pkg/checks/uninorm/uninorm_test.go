package uninorm

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

func baselineExchange(t *testing.T) *probe.Exchange {
	t.Helper()
	req, err := probe.NewRequest(http.MethodGet, "https://target.example/search?q=hello")
	require.NoError(t, err)
	return &probe.Exchange{Request: req, Response: &probe.Result{Status: 200, Body: "ok"}}
}

// asciiBlockTerms is the filter list of the simulated WAF: ASCII attack
// strings are rejected, their fullwidth forms sail through.
var asciiBlockTerms = []string{"<script>", "../", "'", `\\attacker`, "admin"}

// wafSender simulates a WAF in front of a normalizing backend: ASCII
// attack strings get a 403, everything else is folded and echoed.
func wafSender() probe.Sender {
	return senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		value := req.URL.Query().Get("q")
		for _, term := range asciiBlockTerms {
			if strings.Contains(value, term) {
				return &probe.Result{Status: 403, Body: "request rejected"}, nil
			}
		}
		return &probe.Result{Status: 200, Body: "echo: " + Fold(value)}, nil
	})
}

// rawEchoSender reflects input untouched, the behavior of a backend that
// does not normalize.
func rawEchoSender() probe.Sender {
	return senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		return &probe.Result{Status: 200, Body: "echo: " + req.URL.Query().Get("q")}, nil
	})
}

func TestActiveConfirmsBypassAgainstNormalizingBackend(t *testing.T) {
	baseline := baselineExchange(t)
	c := testCheck(t, wafSender())
	ip, err := probe.NewQueryParamInsertion(baseline.Request, "q")
	require.NoError(t, err)

	findings := c.Active(context.Background(), baseline, ip)
	require.NotEmpty(t, findings)

	assert.Equal(t, "Unicode Normalization Detected", findings[0].Name)
	assert.Equal(t, finding.SeverityMedium, findings[0].Severity)
	assert.Equal(t, finding.ConfidenceFirm, findings[0].Confidence)

	byName := map[string]int{}
	for _, f := range findings {
		byName[f.Name]++
		assert.Equal(t, "q", f.Parameter)
	}
	// one bypass per default attack payload
	assert.Equal(t, 5, byName["Unicode Normalization WAF Bypass Confirmed"])
	assert.Equal(t, 1, byName["Unicode Normalization XSS Bypass"])
	assert.Equal(t, 1, byName["Unicode Normalization Path Traversal Bypass"])
	assert.Equal(t, 1, byName["Unicode Normalization SQL Injection Bypass"])
}

func TestActiveSkipsWithoutNormalization(t *testing.T) {
	baseline := baselineExchange(t)
	c := testCheck(t, rawEchoSender())
	ip, err := probe.NewQueryParamInsertion(baseline.Request, "q")
	require.NoError(t, err)

	assert.Empty(t, c.Active(context.Background(), baseline, ip))
}

func TestActiveTransportFailureSkips(t *testing.T) {
	baseline := baselineExchange(t)
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		return nil, context.DeadlineExceeded
	})
	c := testCheck(t, sender)
	ip, err := probe.NewQueryParamInsertion(baseline.Request, "q")
	require.NoError(t, err)

	assert.Empty(t, c.Active(context.Background(), baseline, ip))
}

func TestPassiveReflectedNormalization(t *testing.T) {
	req, err := probe.NewRequest(http.MethodGet, "https://target.example/ｕｓｅｒｓ")
	require.NoError(t, err)
	baseline := &probe.Exchange{
		Request: req,
		Response: &probe.Result{
			Status: 200,
			Header: http.Header{"Content-Type": {"text/html; charset=utf-8"}},
			Body:   "listing users",
		},
	}
	c := testCheck(t, rawEchoSender())

	findings := c.Passive(context.Background(), baseline)
	require.Len(t, findings, 1)
	assert.Equal(t, "Unicode Normalization Detected", findings[0].Name)
	assert.Equal(t, finding.SeverityInfo, findings[0].Severity)
}

func TestPassiveRequiresUTF8ContentType(t *testing.T) {
	req, err := probe.NewRequest(http.MethodGet, "https://target.example/ｕｓｅｒｓ")
	require.NoError(t, err)
	baseline := &probe.Exchange{
		Request: req,
		Response: &probe.Result{
			Status: 200,
			Header: http.Header{"Content-Type": {"application/octet-stream"}},
			Body:   "listing users",
		},
	}
	c := testCheck(t, rawEchoSender())
	assert.Empty(t, c.Passive(context.Background(), baseline))
}

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"＜script＞", "<script>"},
		{"．．／", "../"},
		{"＇ ＯＲ ＇1＇＝＇1", "' OR '1'='1"},
		{"ﬁle", "file"},
		{"ⓐdmin", "admin"},
		{"x²", "x2"},
		{"plain ascii", "plain ascii"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsBlocked(t *testing.T) {
	assert.False(t, isBlocked(nil), "an absent response proves nothing")
	assert.True(t, isBlocked(&probe.Result{Status: 403}))
	assert.True(t, isBlocked(&probe.Result{Status: 200, Body: "Blocked by Firewall"}))
	assert.False(t, isBlocked(&probe.Result{Status: 200, Body: "welcome"}))
	assert.False(t, isBlocked(&probe.Result{Status: 500, Body: "server error"}))
}
