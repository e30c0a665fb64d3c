package probe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/quirkscan/quirkscan/pkg/httpclient"
	"github.com/quirkscan/quirkscan/pkg/iohelper"
)

// DefaultUserAgent is sent when a request carries no User-Agent of its own.
const DefaultUserAgent = "Mozilla/5.0 (compatible; quirkscan/1.0)"

// Sender issues one probe and returns the observed result. Implementations
// must be safe for concurrent use. A transport failure surfaces as a non-nil
// error; callers are expected to treat it as an absent response.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Result, error)
}

// HTTPSender sends probes over the shared pooled client.
type HTTPSender struct {
	Client    *http.Client
	UserAgent string
	Logger    *slog.Logger
}

// NewHTTPSender returns a sender on the shared default client.
func NewHTTPSender() *HTTPSender {
	return &HTTPSender{Client: httpclient.Default(), UserAgent: DefaultUserAgent}
}

// Send issues the probe and reads up to 1MB of body.
func (s *HTTPSender) Send(ctx context.Context, req *Request) (*Result, error) {
	httpReq, err := req.ToHTTP(ctx)
	if err != nil {
		return nil, err
	}
	if httpReq.Header.Get("User-Agent") == "" {
		ua := s.UserAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		httpReq.Header.Set("User-Agent", ua)
	}

	client := s.Client
	if client == nil {
		client = httpclient.Default()
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer iohelper.DrainAndClose(resp.Body)

	body := iohelper.ReadBodyOrLog(resp.Body, s.Logger)
	return &Result{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     string(body),
		Duration: time.Since(start),
	}, nil
}
