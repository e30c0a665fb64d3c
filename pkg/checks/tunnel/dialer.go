package tunnel

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"
)

// Dialer opens a CONNECT tunnel through origin toward target and reports
// the status code the origin answered with.
type Dialer interface {
	Connect(ctx context.Context, origin, target string) (int, error)
}

// HTTP2Dialer issues CONNECT requests over a fresh HTTP/2 TLS connection
// per probe. A fresh connection per target keeps tunnel state from one
// probe out of the next.
type HTTP2Dialer struct {
	// TLSConfig overrides the connection TLS settings. ALPN is forced
	// to h2 either way. When nil, certificate verification is skipped,
	// same as the shared scan client: targets routinely present
	// self-signed certificates and a failed handshake would make every
	// CONNECT probe inconclusive.
	TLSConfig *tls.Config
	// Timeout bounds the TCP+TLS dial. Zero means 10 seconds.
	Timeout time.Duration
	Logger  *slog.Logger
}

// tlsConfig builds the per-connection TLS config from the dialer defaults.
func (d *HTTP2Dialer) tlsConfig() *tls.Config {
	cfg := &tls.Config{InsecureSkipVerify: true}
	if d.TLSConfig != nil {
		cfg = d.TLSConfig.Clone()
	}
	cfg.NextProtos = []string{"h2"}
	return cfg
}

func (d *HTTP2Dialer) Connect(ctx context.Context, origin, target string) (int, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	cfg := d.tlsConfig()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config:    cfg,
	}
	conn, err := dialer.DialContext(ctx, "tcp", origin)
	if err != nil {
		return 0, fmt.Errorf("tunnel: dial %s: %w", origin, err)
	}
	defer conn.Close()

	tr := &http2.Transport{}
	cc, err := tr.NewClientConn(conn)
	if err != nil {
		return 0, fmt.Errorf("tunnel: http2 handshake with %s: %w", origin, err)
	}
	defer cc.Close()

	req := (&http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Host: target},
		Host:   target,
		Header: make(http.Header),
	}).WithContext(ctx)

	res, err := cc.RoundTrip(req)
	if err != nil {
		return 0, fmt.Errorf("tunnel: CONNECT %s via %s: %w", target, origin, err)
	}
	defer res.Body.Close()

	if d.Logger != nil {
		d.Logger.Debug("CONNECT probe completed",
			"origin", origin, "target", target, "status", res.StatusCode)
	}
	return res.StatusCode, nil
}
