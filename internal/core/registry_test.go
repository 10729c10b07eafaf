package core

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// ============================================================================
// SchemaRegistry Tests
// ============================================================================

func TestSchemaRegistry_CompilesOncePerPath(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "card.json", `{"type": "object", "properties": {"id": {"type": "string"}}}`)

	reg := NewSchemaRegistry()
	first, err := reg.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	second, err := reg.Load(path)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if first != second {
		t.Error("Load() compiled the same path twice")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestSchemaRegistry_CachesFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.json")

	reg := NewSchemaRegistry()
	if _, err := reg.Load(path); err == nil {
		t.Fatal("Load() expected error for missing schema")
	}

	// The file appearing later must not change the cached outcome.
	if err := os.WriteFile(path, []byte(`{"type": "object"}`), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := reg.Load(path); err == nil {
		t.Error("Load() succeeded after cached failure")
	}
}

func TestSchemaRegistry_FailureIsSchemaLoadError(t *testing.T) {
	reg := NewSchemaRegistry()
	_, err := reg.Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("Load() expected error")
	}
	var loadErr *SchemaLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("error type = %T, want *SchemaLoadError", err)
	}
	if loadErr.Path == "" {
		t.Error("SchemaLoadError.Path is empty")
	}
}

func TestSchemaRegistry_ConcurrentLoadsShareResult(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "card.json", `{"type": "object"}`)

	reg := NewSchemaRegistry()
	results := make([]any, 8)
	var wg sync.WaitGroup
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := reg.Load(path)
			if err != nil {
				results[i] = err
				return
			}
			results[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("Load() result %d = %v, differs from first %v", i, results[i], results[0])
		}
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestSchemaRegistry_DistinctPathsDistinctEntries(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.json", `{"type": "object"}`)
	b := writeSource(t, dir, "b.json", `{"type": "object"}`)

	reg := NewSchemaRegistry()
	ca, _ := reg.Load(a)
	cb, _ := reg.Load(b)
	if ca == cb {
		t.Error("Load() shared a compiled schema across distinct paths")
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}
