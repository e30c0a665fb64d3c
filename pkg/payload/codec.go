package payload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quirkscan/quirkscan/pkg/jsonutil"
)

// ReadCatalogFile parses a catalog file into entries. Format is chosen by
// extension: .yaml/.yml decode as YAML, everything else as JSON. A file
// that cannot be parsed at all is rejected wholesale.
func ReadCatalogFile(path string) ([]*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("payload: read catalog: %w", err)
	}

	var entries []*Entry
	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("payload: parse catalog: %w", err)
		}
	} else {
		if err := jsonutil.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("payload: parse catalog: %w", err)
		}
	}
	return entries, nil
}

// WriteCatalogFile serializes entries to path, format by extension as in
// ReadCatalogFile.
func WriteCatalogFile(path string, entries []*Entry) error {
	if entries == nil {
		entries = []*Entry{}
	}

	var data []byte
	var err error
	if isYAMLPath(path) {
		data, err = yaml.Marshal(entries)
	} else {
		data, err = jsonutil.MarshalIndent(entries, "  ")
	}
	if err != nil {
		return fmt.Errorf("payload: encode catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("payload: write catalog: %w", err)
	}
	return nil
}

// ImportFile reads a catalog file and merges it into the registry. The
// whole file is rejected on any parse or validation failure. Returns the
// number of entries added after duplicate suppression.
func (r *Registry) ImportFile(path string) (int, error) {
	entries, err := ReadCatalogFile(path)
	if err != nil {
		return 0, err
	}
	added, err := r.Import(entries)
	if err != nil {
		return 0, fmt.Errorf("payload: import %s: %w", filepath.Base(path), err)
	}
	return added, nil
}

// ExportFile writes the catalog, or one module's entries, to path.
func (r *Registry) ExportFile(path, moduleFilter string) error {
	return WriteCatalogFile(path, r.Export(moduleFilter))
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
