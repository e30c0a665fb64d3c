// Package httpclient provides the shared pooled HTTP client used by every
// probe sender. Probes must see redirect responses themselves (the SSRF and
// Next.js strategies classify 3xx exchanges), so the client never follows
// redirects, and scan targets routinely present self-signed certificates, so
// TLS verification is off by default.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Config holds HTTP client options.
type Config struct {
	// Timeout is the total request timeout (default 30s).
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification.
	InsecureSkipVerify bool

	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string

	// MaxIdleConns caps idle connections across all hosts (default 100).
	MaxIdleConns int

	// MaxConnsPerHost caps connections per host (default 25).
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections stay pooled (default 90s).
	IdleConnTimeout time.Duration

	// DialTimeout bounds connection establishment (default 10s).
	DialTimeout time.Duration
}

// DefaultConfig returns defaults tuned for sequential probe traffic with
// connection reuse.
func DefaultConfig() Config {
	return Config{
		Timeout:            30 * time.Second,
		InsecureSkipVerify: true,
		MaxIdleConns:       100,
		MaxConnsPerHost:    25,
		IdleConnTimeout:    90 * time.Second,
		DialTimeout:        10 * time.Second,
	}
}

var (
	defaultClient *http.Client
	defaultOnce   sync.Once
)

// Default returns the shared pre-configured client. It is safe for
// concurrent use; all senders should prefer it over private clients so
// probes against one host share a connection pool.
func Default() *http.Client {
	defaultOnce.Do(func() {
		defaultClient = New(DefaultConfig())
	})
	return defaultClient
}

// New creates a client with the given configuration. Zero values fall back
// to DefaultConfig values.
func New(cfg Config) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 25
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,

		DialContext: dialer.DialContext,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err == nil && proxyURL != nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		// Malformed proxy URLs are ignored; scanning continues direct.
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// WithTimeout returns DefaultConfig with the timeout replaced.
func WithTimeout(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	return cfg
}
