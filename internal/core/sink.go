package core

// sink.go owns CSV output files. One sink exists per distinct output path
// per run, shared by every dataset that names that path, with appends
// serialized so rows from concurrent workers never interleave.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// CsvSink appends rows to one CSV output file. The header is written exactly
// once, before the first row, and skipped entirely when the file already has
// content from an earlier run.
//
// A sink that hits a write error refuses all further writes, so output
// produced before the failure stays intact.
type CsvSink struct {
	path string

	mu         sync.Mutex
	file       *os.File
	buf        bytes.Buffer
	w          *csv.Writer
	header     []string
	headerDone bool
	err        error
}

func newCsvSink(path string) (*CsvSink, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &SinkWriteError{Path: path, Err: err}
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &SinkWriteError{Path: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &SinkWriteError{Path: path, Err: err}
	}
	s := &CsvSink{path: path, file: f, headerDone: info.Size() > 0}
	s.w = csv.NewWriter(&s.buf)
	return s, nil
}

// Path returns the output file path.
func (s *CsvSink) Path() string { return s.path }

// WriteHeader writes the column header if the file does not have one yet.
// Calling it again with the same columns is a no-op, so datasets sharing an
// output file open it idempotently; a different column set breaks the sink.
func (s *CsvSink) WriteHeader(columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.header != nil {
		if !slices.Equal(s.header, columns) {
			s.err = &SinkWriteError{Path: s.path, Err: fmt.Errorf("column mismatch: file already bound to %v", s.header)}
			return s.err
		}
		return nil
	}
	s.header = append([]string(nil), columns...)
	if s.headerDone {
		// Appending to existing output from an earlier run.
		return nil
	}
	if err := s.append(columns); err != nil {
		return err
	}
	s.headerDone = true
	return nil
}

// WriteRow appends one data row. A row is either fully written with its
// trailing newline or not written at all.
func (s *CsvSink) WriteRow(row CsvRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if !s.headerDone {
		s.err = &SinkWriteError{Path: s.path, Err: fmt.Errorf("row written before header")}
		return s.err
	}
	return s.append(row)
}

// append renders one record into the buffer and pushes it to the file in a
// single write.
func (s *CsvSink) append(record []string) error {
	s.buf.Reset()
	s.w.Write(record)
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.err = &SinkWriteError{Path: s.path, Err: err}
		return s.err
	}
	if _, err := s.file.Write(s.buf.Bytes()); err != nil {
		s.err = &SinkWriteError{Path: s.path, Err: err}
		return s.err
	}
	return nil
}

// Err returns the sink's terminal error, if any.
func (s *CsvSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the underlying file. The sink cannot be reused afterwards.
func (s *CsvSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return &SinkWriteError{Path: s.path, Err: err}
	}
	return nil
}

// SinkRegistry hands out one CsvSink per distinct output path, so two
// descriptors naming the same output_file share a single serialized writer
// instead of corrupting each other.
type SinkRegistry struct {
	mu    sync.Mutex
	sinks map[string]*CsvSink
}

// NewSinkRegistry returns an empty registry.
func NewSinkRegistry() *SinkRegistry {
	return &SinkRegistry{sinks: make(map[string]*CsvSink)}
}

// Open returns the sink for path, creating it on first use. Paths are
// compared after cleaning, so "out.csv" and "./out.csv" share one sink.
func (r *SinkRegistry) Open(path string) (*CsvSink, error) {
	key := filepath.Clean(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sinks[key]; ok {
		return s, nil
	}
	s, err := newCsvSink(key)
	if err != nil {
		return nil, err
	}
	r.sinks[key] = s
	return s, nil
}

// CloseAll closes every sink and returns the first error encountered.
func (r *SinkRegistry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
