package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quirkscan/quirkscan/pkg/probe"
)

// senderFunc adapts a function to probe.Sender.
type senderFunc func(ctx context.Context, req *probe.Request) (*probe.Result, error)

func (f senderFunc) Send(ctx context.Context, req *probe.Request) (*probe.Result, error) {
	return f(ctx, req)
}

// prefixOracle simulates a Django-style leaking endpoint holding the
// given secret: a matching prefix filter returns a longer body than the
// no-match baseline.
func prefixOracle(secret string) probe.Sender {
	return senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		value := req.URL.Query().Get("password__startswith")
		if value != "" && strings.HasPrefix(secret, value) {
			return &probe.Result{Status: 200, Body: strings.Repeat("r", 240)}, nil
		}
		return &probe.Result{Status: 200, Body: strings.Repeat("r", 120)}, nil
	})
}

func TestRunExtractsFullValue(t *testing.T) {
	var events []Progress
	r, err := New(Config{
		TargetURL:  "https://target.example/api/users",
		Param:      "password",
		Field:      "password",
		Charset:    "abct", // includes every char of "cat"
		Sender:     prefixOracle("cat"),
		OnProgress: func(p Progress) { events = append(events, p) },
	})
	require.NoError(t, err)

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cat", out.Value)
	assert.False(t, out.Cancelled)

	require.Len(t, events, 3)
	assert.Equal(t, "c", events[0].Extracted)
	assert.Equal(t, "ca", events[1].Extracted)
	assert.Equal(t, "cat", events[2].Extracted)
	assert.Equal(t, 3, events[2].Position)

	// baseline + trials; never fewer than one probe per accepted char
	assert.Greater(t, out.Probes, 3)
}

func TestRunEmptyWhenNothingMatches(t *testing.T) {
	r, err := New(Config{
		TargetURL: "https://target.example/api/users",
		Param:     "password",
		Field:     "password",
		Charset:   "xyz",
		Sender:    prefixOracle("cat"),
	})
	require.NoError(t, err)

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.Value)
	assert.False(t, out.Cancelled)
}

func TestRunCancellationKeepsPartialPrefix(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	r, err := New(Config{
		TargetURL: "https://target.example/api/users",
		Param:     "password",
		Field:     "password",
		Charset:   "abct",
		Sender:    prefixOracle("cat"),
		OnProgress: func(p Progress) {
			if p.Position == 2 {
				cancel()
			}
		},
	})
	require.NoError(t, err)

	out, err := r.Run(ctx)
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Equal(t, "ca", out.Value)
}

func TestRunFailedProbeIsNeverAMatch(t *testing.T) {
	// every send fails except the baseline; the loop must terminate
	// with an empty value instead of accepting garbage
	calls := 0
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		calls++
		if calls == 1 {
			return &probe.Result{Status: 200, Body: "baseline"}, nil
		}
		return nil, errors.New("connection reset")
	})

	r, err := New(Config{
		TargetURL: "https://target.example/api/users",
		Param:     "password",
		Field:     "password",
		Charset:   "ab",
		Sender:    sender,
	})
	require.NoError(t, err)

	out, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.Value)
}

func TestRunNoBaseline(t *testing.T) {
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		return nil, errors.New("unreachable")
	})
	r, err := New(Config{
		TargetURL: "https://target.example/api/users",
		Param:     "password",
		Field:     "password",
		Sender:    sender,
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoBaseline)
}

func TestConfigValidation(t *testing.T) {
	sender := prefixOracle("x")

	t.Run("url required", func(t *testing.T) {
		_, err := New(Config{Field: "f", Param: "p", Sender: sender})
		assert.Error(t, err)
	})
	t.Run("field required", func(t *testing.T) {
		_, err := New(Config{TargetURL: "https://t.example", Param: "p", Sender: sender})
		assert.Error(t, err)
	})
	t.Run("param required for django", func(t *testing.T) {
		_, err := New(Config{TargetURL: "https://t.example", Field: "f", Sender: sender})
		assert.Error(t, err)
	})
	t.Run("param optional for prisma", func(t *testing.T) {
		_, err := New(Config{
			TargetURL: "https://t.example", Field: "f",
			Dialect: DialectPrisma, Sender: sender,
		})
		assert.NoError(t, err)
	})
	t.Run("charset defaults", func(t *testing.T) {
		r, err := New(Config{
			TargetURL: "https://t.example", Field: "f", Param: "p", Sender: sender,
		})
		require.NoError(t, err)
		assert.Equal(t, DefaultCharset, r.cfg.Charset)
	})
}

func TestBuildRequestDialects(t *testing.T) {
	base := "https://t.example/api/users"

	t.Run("django", func(t *testing.T) {
		req, err := buildRequest(DialectDjango, base, "password", "ca")
		require.NoError(t, err)
		assert.Equal(t, "ca", req.URL.Query().Get("password__startswith"))
	})
	t.Run("prisma", func(t *testing.T) {
		req, err := buildRequest(DialectPrisma, base, "apiToken", `ca"t`)
		require.NoError(t, err)
		assert.Equal(t, "POST", req.Method)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"apiToken":{"startsWith":"ca\"t"}}`, string(req.Body))
	})
	t.Run("odata", func(t *testing.T) {
		req, err := buildRequest(DialectOData, base, "secret", "ca")
		require.NoError(t, err)
		assert.Equal(t, "startswith(secret,'ca')", req.URL.Query().Get("$filter"))
	})
	t.Run("harbor", func(t *testing.T) {
		req, err := buildRequest(DialectHarbor, base, "secret", "ca")
		require.NoError(t, err)
		assert.Equal(t, "secret=~^ca", req.URL.Query().Get("q"))
	})
	t.Run("ransack", func(t *testing.T) {
		req, err := buildRequest(DialectRansack, base, "secret", "ca")
		require.NoError(t, err)
		assert.Equal(t, "ca", req.URL.Query().Get("q[secret_start]"))
	})
}

func TestParseDialect(t *testing.T) {
	assert.Equal(t, DialectPrisma, ParseDialect("Prisma"))
	assert.Equal(t, DialectDjango, ParseDialect(""))
	assert.Equal(t, DialectDjango, ParseDialect("auto-detect"))
	assert.Equal(t, DialectHarbor, ParseDialect(" harbor "))
}
