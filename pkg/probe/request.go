// Package probe models a single crafted HTTP exchange: the request variant
// under test, the observed result, and the send capability that connects
// them. Detection strategies never touch net/http directly; they build
// Requests, hand them to a Sender, and read Results.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is a buildable, copyable request variant. The zero-value Header
// and Body are valid (a bare GET). All With* methods return a modified copy
// so a baseline request can fan out into many probe variants without
// aliasing.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// NewRequest parses rawurl into a Request. Method defaults to GET when
// empty.
func NewRequest(method, rawurl string) (*Request, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("probe: parse url: %w", err)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{Method: method, URL: u, Header: make(http.Header)}, nil
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := &Request{Method: r.Method, Header: make(http.Header, len(r.Header))}
	if r.URL != nil {
		u := *r.URL
		c.URL = &u
	}
	for k, vs := range r.Header {
		c.Header[k] = append([]string(nil), vs...)
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return c
}

// WithMethod returns a copy with the method replaced.
func (r *Request) WithMethod(method string) *Request {
	c := r.Clone()
	c.Method = method
	return c
}

// WithHeader returns a copy with the header set (replacing prior values).
func (r *Request) WithHeader(key, value string) *Request {
	c := r.Clone()
	c.Header.Set(key, value)
	return c
}

// WithoutHeader returns a copy with the header removed.
func (r *Request) WithoutHeader(key string) *Request {
	c := r.Clone()
	c.Header.Del(key)
	return c
}

// WithQueryParam returns a copy with the query parameter set.
func (r *Request) WithQueryParam(key, value string) *Request {
	c := r.Clone()
	q := c.URL.Query()
	q.Set(key, value)
	c.URL.RawQuery = q.Encode()
	return c
}

// WithRawQuery returns a copy with the raw query string replaced verbatim.
// Parser-differential probes need byte-exact queries (duplicate keys, odd
// encodings) that url.Values would normalize away.
func (r *Request) WithRawQuery(rawQuery string) *Request {
	c := r.Clone()
	c.URL.RawQuery = rawQuery
	return c
}

// WithPath returns a copy with the URL path replaced.
func (r *Request) WithPath(path string) *Request {
	c := r.Clone()
	c.URL.Path = path
	c.URL.RawPath = ""
	return c
}

// WithBody returns a copy carrying body with the given Content-Type.
func (r *Request) WithBody(body []byte, contentType string) *Request {
	c := r.Clone()
	c.Body = append([]byte(nil), body...)
	if contentType != "" {
		c.Header.Set("Content-Type", contentType)
	}
	return c
}

// ToHTTP materializes the request for sending.
func (r *Request) ToHTTP(ctx context.Context) (*http.Request, error) {
	if r.URL == nil {
		return nil, fmt.Errorf("probe: request has no URL")
	}
	var body *bytes.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("probe: build request: %w", err)
	}
	for k, vs := range r.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	return req, nil
}

// IsStaticAsset reports whether the request path points at a static
// resource not worth probing.
func (r *Request) IsStaticAsset() bool {
	if r.URL == nil {
		return false
	}
	path := strings.ToLower(r.URL.Path)
	for _, ext := range staticExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

var staticExtensions = []string{
	".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg",
	".woff", ".woff2", ".ico", ".map", ".ttf", ".eot",
}
