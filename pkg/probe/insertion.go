package probe

import "fmt"

// InsertionPoint is a named, substitutable location in a request. Active
// strategies build one probe variant per payload through it and use Name in
// the resulting finding.
type InsertionPoint interface {
	Name() string
	BuildRequest(payload string) (*Request, error)
}

// QueryParamInsertion substitutes payloads into one query parameter of a
// base request.
type QueryParamInsertion struct {
	Base  *Request
	Param string
}

// NewQueryParamInsertion returns an insertion point over the named query
// parameter.
func NewQueryParamInsertion(base *Request, param string) (*QueryParamInsertion, error) {
	if base == nil || base.URL == nil {
		return nil, fmt.Errorf("probe: insertion point needs a base request")
	}
	if param == "" {
		return nil, fmt.Errorf("probe: insertion point needs a parameter name")
	}
	return &QueryParamInsertion{Base: base, Param: param}, nil
}

func (q *QueryParamInsertion) Name() string { return q.Param }

func (q *QueryParamInsertion) BuildRequest(payload string) (*Request, error) {
	return q.Base.WithQueryParam(q.Param, payload), nil
}

// HeaderInsertion substitutes payloads into one request header.
type HeaderInsertion struct {
	Base   *Request
	Header string
}

func (h *HeaderInsertion) Name() string { return h.Header }

func (h *HeaderInsertion) BuildRequest(payload string) (*Request, error) {
	if h.Base == nil {
		return nil, fmt.Errorf("probe: insertion point needs a base request")
	}
	return h.Base.WithHeader(h.Header, payload), nil
}
