package extract

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/quirkscan/quirkscan/pkg/probe"
)

// Dialect selects the filter syntax used to build extraction probes. The
// loop itself is dialect-agnostic; only the request construction varies.
type Dialect string

const (
	// DialectDjango uses field__startswith as a URL parameter
	// (Django and Beego style).
	DialectDjango Dialect = "django"
	// DialectPrisma posts a JSON body with a nested startsWith operator.
	DialectPrisma Dialect = "prisma"
	// DialectOData uses $filter=startswith(field,'value').
	DialectOData Dialect = "odata"
	// DialectHarbor uses q=field=~^value.
	DialectHarbor Dialect = "harbor"
	// DialectRansack uses q[field_start]=value.
	DialectRansack Dialect = "ransack"
)

// Dialects lists every supported dialect.
var Dialects = []Dialect{DialectDjango, DialectPrisma, DialectOData, DialectHarbor, DialectRansack}

// ParseDialect maps a user-supplied name to a Dialect. Unknown names
// default to Django, the broadest prefix-filter syntax.
func ParseDialect(name string) Dialect {
	switch Dialect(strings.ToLower(strings.TrimSpace(name))) {
	case DialectPrisma:
		return DialectPrisma
	case DialectOData:
		return DialectOData
	case DialectHarbor:
		return DialectHarbor
	case DialectRansack:
		return DialectRansack
	default:
		return DialectDjango
	}
}

// buildRequest constructs the probe for one prefix trial in the given
// dialect.
func buildRequest(dialect Dialect, baseURL, field, value string) (*probe.Request, error) {
	switch dialect {
	case DialectPrisma:
		body := fmt.Sprintf(`{%q:{"startsWith":%q}}`, field, value)
		req, err := probe.NewRequest(http.MethodPost, baseURL)
		if err != nil {
			return nil, err
		}
		return req.WithBody([]byte(body), "application/json"), nil
	case DialectOData:
		req, err := probe.NewRequest(http.MethodGet, baseURL)
		if err != nil {
			return nil, err
		}
		return req.WithQueryParam("$filter", fmt.Sprintf("startswith(%s,'%s')", field, value)), nil
	case DialectHarbor:
		req, err := probe.NewRequest(http.MethodGet, baseURL)
		if err != nil {
			return nil, err
		}
		return req.WithQueryParam("q", field+"=~^"+value), nil
	case DialectRansack:
		req, err := probe.NewRequest(http.MethodGet, baseURL)
		if err != nil {
			return nil, err
		}
		return req.WithQueryParam("q["+field+"_start]", value), nil
	default:
		req, err := probe.NewRequest(http.MethodGet, baseURL)
		if err != nil {
			return nil, err
		}
		return req.WithQueryParam(field+"__startswith", value), nil
	}
}
