package payload

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/quirkscan/quirkscan/pkg/jsonutil"
)

// DefaultStorePath returns ~/.quirkscan/payloads.json, falling back to the
// working directory when the home directory cannot be resolved.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "payloads.json"
	}
	return filepath.Join(home, ".quirkscan", "payloads.json")
}

// Registry is the thread-safe, persisted payload catalog. Every mutation
// persists to disk before releasing the write lock, so the only loss window
// is a crash between mutation and persist. Disk failures are logged and
// absorbed; the registry keeps operating in memory because losing the
// ability to scan is worse than losing durability.
type Registry struct {
	mu      sync.RWMutex
	entries []*Entry
	path    string
	logger  *slog.Logger
}

// NewRegistry opens the catalog at path. On first run (no file present) it
// seeds the built-in defaults and persists immediately. An empty path uses
// DefaultStorePath. A nil logger uses slog.Default.
func NewRegistry(path string, logger *slog.Logger) *Registry {
	if path == "" {
		path = DefaultStorePath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{path: path, logger: logger}

	if _, err := os.Stat(path); err == nil {
		r.load()
	} else {
		r.entries = Defaults()
		r.mu.Lock()
		r.persistLocked()
		r.mu.Unlock()
	}
	return r
}

// Enabled returns the enabled entries matching both module and category.
func (r *Registry) Enabled(module, category string) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.Enabled && e.Module == module && e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// All returns every entry (enabled and disabled) for the module.
func (r *Registry) All(module string) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.Module == module {
			out = append(out, e)
		}
	}
	return out
}

// AllEntries returns a snapshot of the whole catalog.
func (r *Registry) AllEntries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Entry(nil), r.entries...)
}

// Get returns the entry with the given id.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, ErrNotFound
}

// Add inserts a new entry and persists.
func (r *Registry) Add(e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	r.persistLocked()
	return nil
}

// Remove deletes the entry with the given id. Built-in entries cannot be
// removed individually; they only leave the catalog via ResetToDefaults.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID != id {
			continue
		}
		if e.AddedBy != ProvenanceUser {
			return ErrDefaultEntry
		}
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
		r.persistLocked()
		return nil
	}
	return ErrNotFound
}

// Update replaces the entry with the same id and persists.
func (r *Registry) Update(e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.entries {
		if existing.ID == e.ID {
			r.entries[i] = e
			r.persistLocked()
			return nil
		}
	}
	return ErrNotFound
}

// ToggleEnabled flips the enabled flag of the entry with the given id.
func (r *Registry) ToggleEnabled(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			e.Enabled = !e.Enabled
			r.persistLocked()
			return nil
		}
	}
	return ErrNotFound
}

// Import merges entries into the catalog, skipping any whose
// (value, module, category) tuple already exists. The whole batch is
// rejected if any entry fails validation; nothing is partially merged.
// Returns the number of entries actually added.
func (r *Registry) Import(incoming []*Entry) (int, error) {
	for i, e := range incoming {
		if err := e.Validate(); err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(r.entries))
	for _, e := range r.entries {
		seen[e.ContentKey()] = struct{}{}
	}

	added := 0
	for _, e := range incoming {
		key := e.ContentKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if e.ID == "" {
			e.ID = NewEntry(e.Module, e.Category, e.Value, e.Description).ID
		}
		if e.AddedBy == "" {
			e.AddedBy = ProvenanceUser
		}
		r.entries = append(r.entries, e)
		added++
	}

	if added > 0 {
		r.persistLocked()
	}
	return added, nil
}

// Export returns the catalog, or one module's slice of it, verbatim.
func (r *Registry) Export(moduleFilter string) []*Entry {
	if moduleFilter == "" {
		return r.AllEntries()
	}
	return r.All(moduleFilter)
}

// ResetToDefaults atomically removes every entry of the module, default and
// user alike, and re-inserts the module's built-in set.
func (r *Registry) ResetToDefaults(module string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.Module != module {
			kept = append(kept, e)
		}
	}
	r.entries = kept

	for _, d := range Defaults() {
		if d.Module == module {
			r.entries = append(r.entries, d)
		}
	}
	r.persistLocked()
}

// TotalCount returns the number of entries in the catalog.
func (r *Registry) TotalCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// UserAddedCount returns the number of user-provenance entries.
func (r *Registry) UserAddedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.AddedBy == ProvenanceUser {
			n++
		}
	}
	return n
}

// EnabledCount returns the number of enabled entries.
func (r *Registry) EnabledCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.Enabled {
			n++
		}
	}
	return n
}

// load replaces the in-memory catalog with the store file contents. A read
// or parse failure leaves the catalog empty and is logged, not returned.
func (r *Registry) load() {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		r.logger.Warn("payload store read failed", slog.String("path", r.path), slog.String("error", err.Error()))
		return
	}
	var entries []*Entry
	if err := jsonutil.Unmarshal(data, &entries); err != nil {
		r.logger.Warn("payload store parse failed", slog.String("path", r.path), slog.String("error", err.Error()))
		return
	}
	r.entries = entries
}

// persistLocked writes the catalog to disk. Must be called with the write
// lock held. Failures are logged and absorbed.
func (r *Registry) persistLocked() {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		r.logger.Warn("payload store dir create failed", slog.String("error", err.Error()))
		return
	}
	data, err := jsonutil.MarshalIndent(r.entries, "  ")
	if err != nil {
		r.logger.Warn("payload store encode failed", slog.String("error", err.Error()))
		return
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		r.logger.Warn("payload store write failed", slog.String("path", r.path), slog.String("error", err.Error()))
	}
}
