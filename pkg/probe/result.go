package probe

import (
	"net/http"
	"strings"
	"time"
)

// Result captures one observed HTTP response. A nil *Result means the probe
// got no response at all (transport failure); strategies treat that as data,
// not as an error.
type Result struct {
	Status   int
	Header   http.Header
	Body     string
	Duration time.Duration
}

// BodyContains reports whether the body contains s, case-insensitively.
// Safe on a nil receiver.
func (r *Result) BodyContains(s string) bool {
	if r == nil || s == "" {
		return false
	}
	return strings.Contains(strings.ToLower(r.Body), strings.ToLower(s))
}

// BodyLen returns the body length, 0 for a nil result.
func (r *Result) BodyLen() int {
	if r == nil {
		return 0
	}
	return len(r.Body)
}

// HeaderValue returns the first value of the named header, "" for a nil
// result or absent header.
func (r *Result) HeaderValue(key string) string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get(key)
}

// HasHeader reports whether the named header is present.
func (r *Result) HasHeader(key string) bool {
	if r == nil || r.Header == nil {
		return false
	}
	return r.Header.Get(key) != ""
}

// Exchange pairs a request with its observed result. Strategies receive the
// unmodified baseline exchange and derive probe variants from its request.
type Exchange struct {
	Request  *Request
	Response *Result
}
