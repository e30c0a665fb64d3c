package etagleak

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
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

func authExchange(t *testing.T, header http.Header, body string) *probe.Exchange {
	t.Helper()
	req, err := probe.NewRequest(http.MethodGet, "https://target.example/account")
	require.NoError(t, err)
	req.Header.Set("Cookie", "session=abc123")
	return &probe.Exchange{
		Request:  req,
		Response: &probe.Result{Status: 200, Header: header, Body: body},
	}
}

func TestActiveConfirmsAuthStateSideChannel(t *testing.T) {
	baseline := authExchange(t,
		http.Header{"Etag": {`"auth-abc"`}}, "personal dashboard for alice")

	var unauthReq *probe.Request
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		unauthReq = req
		return &probe.Result{
			Status: 200,
			Header: http.Header{"Etag": {`"anon-xyz"`}},
			Body:   "please log in",
		}, nil
	})
	c := testCheck(t, sender)

	findings := c.Active(context.Background(), baseline, nil)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, "ETag XS-Leak Preconditions Present", f.Name)
	assert.Equal(t, finding.SeverityLow, f.Severity)
	assert.Equal(t, finding.ConfidenceFirm, f.Confidence)
	assert.Contains(t, f.Detail, "If-None-Match")

	// the replay must carry no credentials
	require.NotNil(t, unauthReq)
	assert.Empty(t, unauthReq.Header.Get("Cookie"))
	assert.Empty(t, unauthReq.Header.Get("Authorization"))
}

func TestActiveDifferingETagSameLength(t *testing.T) {
	baseline := authExchange(t, http.Header{"Etag": {`"auth-abc"`}}, "same length.")
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		return &probe.Result{
			Status: 200,
			Header: http.Header{"Etag": {`"anon-xyz"`}},
			Body:   "same length!",
		}, nil
	})
	c := testCheck(t, sender)

	findings := c.Active(context.Background(), baseline, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, finding.ConfidenceTentative, findings[0].Confidence)
}

func TestActiveStableETagIsQuiet(t *testing.T) {
	baseline := authExchange(t, http.Header{"Etag": {`"shared"`}}, "public page")
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		return &probe.Result{
			Status: 200,
			Header: http.Header{"Etag": {`"shared"`}},
			Body:   "public page",
		}, nil
	})
	c := testCheck(t, sender)

	assert.Empty(t, c.Active(context.Background(), baseline, nil))
}

func TestActiveRequiresBaselineETag(t *testing.T) {
	baseline := authExchange(t, http.Header{}, "no etag here")
	sends := 0
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		sends++
		return &probe.Result{Status: 200}, nil
	})
	c := testCheck(t, sender)

	assert.Empty(t, c.Active(context.Background(), baseline, nil))
	assert.Zero(t, sends)
}

func TestActiveTransportFailureInconclusive(t *testing.T) {
	baseline := authExchange(t, http.Header{"Etag": {`"auth-abc"`}}, "dashboard")
	sender := senderFunc(func(ctx context.Context, req *probe.Request) (*probe.Result, error) {
		return nil, errors.New("connection reset")
	})
	c := testCheck(t, sender)

	assert.Empty(t, c.Active(context.Background(), baseline, nil))
}

func TestPassiveMissingProtections(t *testing.T) {
	baseline := authExchange(t, http.Header{"Etag": {`"abc123"`}}, "dashboard")
	c := testCheck(t, nil)

	findings := c.Passive(context.Background(), baseline)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, "ETag XS-Leak Preconditions Present", f.Name)
	assert.Equal(t, finding.SeverityLow, f.Severity)
	assert.Contains(t, f.Detail, "2/3")
}

func TestPassiveWeakETagAddsPrecondition(t *testing.T) {
	baseline := authExchange(t, http.Header{"Etag": {`W/"abc123"`}}, "dashboard")
	c := testCheck(t, nil)

	findings := c.Passive(context.Background(), baseline)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Detail, "3/3")
	assert.Contains(t, findings[0].Detail, "weak ETag")
}

func TestPassiveNoStorePresentIsQuiet(t *testing.T) {
	header := http.Header{
		"Etag":          {`"abc123"`},
		"Cache-Control": {"private, no-store"},
	}
	baseline := authExchange(t, header, "dashboard")
	c := testCheck(t, nil)

	assert.Empty(t, c.Passive(context.Background(), baseline))
}

func TestPassiveVaryCoversAuth(t *testing.T) {
	header := http.Header{
		"Etag": {`"abc123"`},
		"Vary": {"Cookie"},
	}
	baseline := authExchange(t, header, "dashboard")
	c := testCheck(t, nil)

	assert.Empty(t, c.Passive(context.Background(), baseline))
}

func TestPassiveNoETagIsQuiet(t *testing.T) {
	baseline := authExchange(t, http.Header{"Cache-Control": {"public"}}, "page")
	c := testCheck(t, nil)
	assert.Empty(t, c.Passive(context.Background(), baseline))
}
