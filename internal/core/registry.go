package core

import (
	"sync"

	"github.com/JonMunkholm/ETL/internal/schema"
)

// SchemaRegistry compiles each schema document once per run and shares the
// compiled form across every dataset that names the same schema file.
type SchemaRegistry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once     sync.Once
	compiled *schema.Compiled
	err      error
}

// NewSchemaRegistry returns an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{entries: make(map[string]*registryEntry)}
}

// Load returns the compiled schema for path, compiling it on first use.
// Concurrent calls for the same path share one compilation. Failures are
// cached too: a schema that failed to compile fails every caller the same
// way for the lifetime of the registry.
func (r *SchemaRegistry) Load(path string) (*schema.Compiled, error) {
	r.mu.Lock()
	entry, ok := r.entries[path]
	if !ok {
		entry = &registryEntry{}
		r.entries[path] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		compiled, err := schema.Load(path)
		if err != nil {
			entry.err = &SchemaLoadError{Path: path, Err: err}
			return
		}
		entry.compiled = compiled
	})
	return entry.compiled, entry.err
}

// Len returns the number of distinct schema files observed so far.
func (r *SchemaRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
