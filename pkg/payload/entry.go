// Package payload holds the concurrent, persisted catalog of test vectors.
// The registry is the only writer of durable state in the process; detection
// strategies borrow entries read-only per invocation.
package payload

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Module keys, one per vulnerability class.
const (
	ModuleSSTI    = "ssti"
	ModuleORM     = "orm"
	ModuleNextJS  = "nextjs"
	ModuleUnicode = "unicode"
	ModuleSSRF    = "ssrf"
	ModuleParser  = "parser"
	ModuleHTTP2   = "http2"
	ModuleETag    = "etag"
)

// Modules lists every module key in catalog order.
var Modules = []string{
	ModuleSSTI, ModuleORM, ModuleNextJS, ModuleUnicode,
	ModuleSSRF, ModuleParser, ModuleHTTP2, ModuleETag,
}

// Provenance values for the AddedBy field.
const (
	ProvenanceDefault = "default"
	ProvenanceUser    = "user"
)

var (
	// ErrInvalidEntry marks an entry missing module, category, or value.
	ErrInvalidEntry = errors.New("payload: invalid entry")
	// ErrNotFound marks a lookup by unknown id.
	ErrNotFound = errors.New("payload: entry not found")
	// ErrDefaultEntry marks an attempt to delete a built-in entry.
	ErrDefaultEntry = errors.New("payload: default entries cannot be removed")
)

// Entry is one test vector. The ID is fixed at creation; everything else is
// editable through the registry.
type Entry struct {
	ID          string   `json:"id" yaml:"id"`
	Module      string   `json:"module" yaml:"module"`
	Category    string   `json:"category" yaml:"category"`
	Value       string   `json:"value" yaml:"value"`
	Description string   `json:"description" yaml:"description"`
	CVERefs     []string `json:"cve_refs,omitempty" yaml:"cve_refs,omitempty"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	AddedBy     string   `json:"added_by" yaml:"added_by"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// ExpectedResponse names the engine behind each marker for
	// engine-detect entries, e.g. "7777777=Jinja2,49=Twig".
	ExpectedResponse string `json:"expected_response,omitempty" yaml:"expected_response,omitempty"`
}

// NewEntry returns a user-provenance, enabled entry with a fresh ID.
func NewEntry(module, category, value, description string) *Entry {
	return &Entry{
		ID:          uuid.NewString(),
		Module:      module,
		Category:    category,
		Value:       value,
		Description: description,
		Enabled:     true,
		AddedBy:     ProvenanceUser,
	}
}

// Validate checks the fields required of every entry.
func (e *Entry) Validate() error {
	if e.Module == "" || e.Category == "" || e.Value == "" {
		return fmt.Errorf("%w: module, category, and value are required", ErrInvalidEntry)
	}
	return nil
}

// Copy returns a duplicate with a fresh ID and user provenance, the way a
// catalog duplicate operation behaves.
func (e *Entry) Copy() *Entry {
	c := *e
	c.ID = uuid.NewString()
	c.AddedBy = ProvenanceUser
	c.CVERefs = append([]string(nil), e.CVERefs...)
	c.Tags = append([]string(nil), e.Tags...)
	return &c
}

// ContentKey is the (value, module, category) tuple used for import
// duplicate suppression.
func (e *Entry) ContentKey() string {
	return e.Value + "\x00" + e.Module + "\x00" + e.Category
}

func defaultEntry(module, category, value, description string, cves ...string) *Entry {
	e := NewEntry(module, category, value, description)
	e.AddedBy = ProvenanceDefault
	e.CVERefs = append(e.CVERefs, cves...)
	return e
}

func engineDetect(module, value, expectedResponse, description string) *Entry {
	e := defaultEntry(module, "engine-detect", value, description)
	e.ExpectedResponse = expectedResponse
	return e
}
