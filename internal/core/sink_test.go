package core

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readCsv(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll(%s) error = %v", path, err)
	}
	return records
}

// ============================================================================
// CsvSink Tests
// ============================================================================

func TestCsvSink_HeaderThenRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := newCsvSink(path)
	if err != nil {
		t.Fatalf("newCsvSink() error = %v", err)
	}
	defer sink.Close()

	if err := sink.WriteHeader([]string{"id", "name"}); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	if err := sink.WriteRow(CsvRow{"1", "alpha"}); err != nil {
		t.Fatalf("WriteRow() error = %v", err)
	}
	if err := sink.WriteRow(CsvRow{"2", "beta"}); err != nil {
		t.Fatalf("WriteRow() error = %v", err)
	}
	sink.Close()

	records := readCsv(t, path)
	if len(records) != 3 {
		t.Fatalf("records = %v, want 3 lines", records)
	}
	if strings.Join(records[0], ",") != "id,name" {
		t.Errorf("header = %v, want [id name]", records[0])
	}
	if records[1][1] != "alpha" || records[2][1] != "beta" {
		t.Errorf("rows = %v, want alpha then beta", records[1:])
	}
}

func TestCsvSink_QuotingSurvivesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := newCsvSink(path)
	if err != nil {
		t.Fatalf("newCsvSink() error = %v", err)
	}

	tricky := `say "hi", twice`
	multiline := "line one\nline two"
	if err := sink.WriteHeader([]string{"a", "b"}); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	if err := sink.WriteRow(CsvRow{tricky, multiline}); err != nil {
		t.Fatalf("WriteRow() error = %v", err)
	}
	sink.Close()

	records := readCsv(t, path)
	if records[1][0] != tricky {
		t.Errorf("quoted cell = %q, want %q", records[1][0], tricky)
	}
	if records[1][1] != multiline {
		t.Errorf("multiline cell = %q, want %q", records[1][1], multiline)
	}
}

func TestCsvSink_HeaderWrittenOncePerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := newCsvSink(path)
	if err != nil {
		t.Fatalf("newCsvSink() error = %v", err)
	}

	columns := []string{"id"}
	if err := sink.WriteHeader(columns); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	if err := sink.WriteHeader(columns); err != nil {
		t.Fatalf("second WriteHeader() error = %v", err)
	}
	sink.WriteRow(CsvRow{"1"})
	sink.Close()

	records := readCsv(t, path)
	if len(records) != 2 {
		t.Errorf("records = %v, want exactly one header and one row", records)
	}
}

func TestCsvSink_AppendToExistingFileSkipsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	first, err := newCsvSink(path)
	if err != nil {
		t.Fatalf("newCsvSink() error = %v", err)
	}
	first.WriteHeader([]string{"id"})
	first.WriteRow(CsvRow{"1"})
	first.Close()

	second, err := newCsvSink(path)
	if err != nil {
		t.Fatalf("newCsvSink() reopen error = %v", err)
	}
	if err := second.WriteHeader([]string{"id"}); err != nil {
		t.Fatalf("WriteHeader() on reopen error = %v", err)
	}
	second.WriteRow(CsvRow{"2"})
	second.Close()

	records := readCsv(t, path)
	if len(records) != 3 {
		t.Fatalf("records = %v, want header plus two rows", records)
	}
	if records[0][0] != "id" || records[1][0] != "1" || records[2][0] != "2" {
		t.Errorf("records = %v, want [id 1 2]", records)
	}
}

func TestCsvSink_ColumnMismatchBreaksSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := newCsvSink(path)
	if err != nil {
		t.Fatalf("newCsvSink() error = %v", err)
	}
	defer sink.Close()

	sink.WriteHeader([]string{"id", "name"})
	if err := sink.WriteHeader([]string{"other"}); err == nil {
		t.Fatal("WriteHeader() with different columns expected error")
	}
	if err := sink.WriteRow(CsvRow{"1", "x"}); err == nil {
		t.Error("WriteRow() after column mismatch expected error")
	}
	if sink.Err() == nil {
		t.Error("Err() = nil after column mismatch")
	}
}

func TestCsvSink_RowBeforeHeaderFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := newCsvSink(path)
	if err != nil {
		t.Fatalf("newCsvSink() error = %v", err)
	}
	defer sink.Close()

	if err := sink.WriteRow(CsvRow{"1"}); err == nil {
		t.Fatal("WriteRow() before header expected error")
	}
}

func TestCsvSink_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "out.csv")
	sink, err := newCsvSink(path)
	if err != nil {
		t.Fatalf("newCsvSink() error = %v", err)
	}
	sink.WriteHeader([]string{"id"})
	sink.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

// ============================================================================
// SinkRegistry Tests
// ============================================================================

func TestSinkRegistry_SharesSinkPerCleanedPath(t *testing.T) {
	dir := t.TempDir()
	reg := NewSinkRegistry()
	defer reg.CloseAll()

	a, err := reg.Open(filepath.Join(dir, "out.csv"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	b, err := reg.Open(filepath.Join(dir, ".", "out.csv"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if a != b {
		t.Error("Open() returned distinct sinks for the same cleaned path")
	}

	other, err := reg.Open(filepath.Join(dir, "other.csv"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if other == a {
		t.Error("Open() shared a sink across distinct paths")
	}
}

func TestSinkRegistry_SharedSinkInterleavesRows(t *testing.T) {
	dir := t.TempDir()
	reg := NewSinkRegistry()
	path := filepath.Join(dir, "out.csv")

	a, _ := reg.Open(path)
	b, _ := reg.Open(path)
	a.WriteHeader([]string{"id"})
	b.WriteHeader([]string{"id"})
	a.WriteRow(CsvRow{"from-a"})
	b.WriteRow(CsvRow{"from-b"})
	reg.CloseAll()

	records := readCsv(t, path)
	if len(records) != 3 {
		t.Fatalf("records = %v, want one header and two rows", records)
	}
}
