package core

// processor.go drives one dataset end to end: enumerate the data directory,
// validate each file, extract accepted documents into the sink, and
// quarantine the rest.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JonMunkholm/ETL/internal/schema"
)

// DefaultWorkersPerDataset bounds file workers when the config does not say
// otherwise.
const DefaultWorkersPerDataset = 4

// ProcessorConfig wires one DatasetProcessor.
type ProcessorConfig struct {
	Descriptor DatasetDescriptor
	Options    DatasetOptions

	// Workers is the file worker pool size; DefaultWorkersPerDataset when
	// zero or negative.
	Workers int

	// PreserveSource switches quarantine to copy mode, for datasets that
	// share their data directory with another dataset.
	PreserveSource bool

	Registry *SchemaRegistry   // required
	Sinks    *SinkRegistry     // required
	Journal  *RejectionJournal // optional
	Logger   *slog.Logger      // optional
}

// DatasetProcessor runs one dataset from Idle to Completed or Failed. A
// processor is single use: construct one per dataset per run.
type DatasetProcessor struct {
	desc     DatasetDescriptor
	opts     DatasetOptions
	workers  int
	preserve bool
	registry *SchemaRegistry
	sinks    *SinkRegistry
	journal  *RejectionJournal
	logger   *slog.Logger
	gate     *workerGate

	mu    sync.Mutex
	state DatasetState
	stats ProcessingStats
	fatal error
}

// NewDatasetProcessor builds a processor in the Idle state.
func NewDatasetProcessor(cfg ProcessorConfig) *DatasetProcessor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkersPerDataset
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetProcessor{
		desc:     cfg.Descriptor,
		opts:     cfg.Options,
		workers:  workers,
		preserve: cfg.PreserveSource,
		registry: cfg.Registry,
		sinks:    cfg.Sinks,
		journal:  cfg.Journal,
		logger:   logger.With("dataset", cfg.Descriptor.Name),
		gate:     newWorkerGate(workers),
		state:    StateIdle,
	}
}

// State returns the current lifecycle state.
func (p *DatasetProcessor) State() DatasetState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the live state, stats, and worker occupancy for status
// reporting.
func (p *DatasetProcessor) Snapshot() DatasetSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return DatasetSnapshot{
		Name:          p.desc.Name,
		State:         p.state,
		Stats:         p.stats,
		ActiveWorkers: p.gate.Active(),
	}
}

// Run drives the dataset to a terminal state. A schema-load or sink failure
// aborts the dataset with partial stats; every other fault is recorded in
// stats and processing continues. Cancellation is honored between files,
// never mid-file.
func (p *DatasetProcessor) Run(ctx context.Context) DatasetResult {
	start := time.Now()

	p.setState(StateSchemaLoading)
	compiled, err := p.registry.Load(p.desc.SchemaFile)
	if err != nil {
		return p.fail(start, err)
	}
	mapping := compiled.Mapping()

	normalizers, err := resolveNormalizers(p.opts, mapping)
	if err != nil {
		return p.fail(start, err)
	}

	sink, err := p.sinks.Open(p.desc.OutputFile)
	if err != nil {
		return p.fail(start, err)
	}
	if err := sink.WriteHeader(mapping.Names()); err != nil {
		return p.fail(start, err)
	}

	files, err := p.enumerate()
	if err != nil {
		return p.fail(start, err)
	}

	p.mu.Lock()
	p.stats.FilesSeen = len(files)
	p.state = StateRunning
	p.mu.Unlock()

	router := NewQuarantineRouter(p.desc.MismatchDir, p.preserve)

	var wg sync.WaitGroup
	for _, name := range files {
		if ctx.Err() != nil {
			p.setFatal(ctx.Err())
			break
		}
		if p.fatalError() != nil {
			break
		}
		if err := p.gate.Acquire(ctx); err != nil {
			p.setFatal(err)
			break
		}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer p.gate.Release()
			p.processFile(ctx, path, compiled, mapping, normalizers, sink, router)
		}(filepath.Join(p.desc.DataDir, name))
	}
	wg.Wait()

	if err := p.fatalError(); err != nil {
		return p.fail(start, err)
	}
	p.setState(StateCompleted)
	return DatasetResult{
		Dataset:  p.desc.Name,
		State:    StateCompleted,
		Stats:    p.statsSnapshot(),
		Duration: time.Since(start),
	}
}

// enumerate lists the regular files to process, honoring the optional
// pattern filter. os.ReadDir sorts by name, so enumeration order is
// deterministic.
func (p *DatasetProcessor) enumerate() ([]string, error) {
	entries, err := os.ReadDir(p.desc.DataDir)
	if err != nil {
		return nil, &FileReadError{Path: p.desc.DataDir, Err: err}
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if p.opts.Pattern != "" {
			ok, err := filepath.Match(p.opts.Pattern, entry.Name())
			if err != nil {
				return nil, fmt.Errorf("file pattern %q: %w", p.opts.Pattern, err)
			}
			if !ok {
				continue
			}
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// processFile classifies one file: extracted, salvaged, quarantined, or
// recorded as an I/O fault. Exactly one counter moves per call.
func (p *DatasetProcessor) processFile(ctx context.Context, path string, compiled *schema.Compiled, mapping *schema.Mapping, normalizers map[int][]Normalizer, sink *CsvSink, router *QuarantineRouter) {
	data, err := readDocument(path)
	if err != nil {
		p.logger.Warn("source file unreadable", "file", path, "error", err)
		p.bump(func(s *ProcessingStats) { s.ReadErrors++ })
		return
	}

	rec := SourceRecord{Path: path}
	var verdict schema.Verdict
	doc, perr := schema.DecodeDocument(data)
	if perr != nil {
		verdict = schema.Reject(schema.ParseViolation(perr))
	} else {
		rec.Doc = doc
		verdict = compiled.Validate(doc)
	}

	switch {
	case verdict.Accepted:
		p.writeRow(rec, mapping, normalizers, sink, false)
	case p.opts.SalvageMissing && verdict.OnlyMissingRequired():
		p.writeRow(rec, mapping, normalizers, sink, true)
	default:
		p.quarantine(ctx, rec.Path, verdict, router)
	}
}

func (p *DatasetProcessor) writeRow(rec SourceRecord, mapping *schema.Mapping, normalizers map[int][]Normalizer, sink *CsvSink, salvaged bool) {
	row := applyNormalizers(ExtractRow(rec, mapping), normalizers)
	if err := sink.WriteRow(row); err != nil {
		p.logger.Error("csv append failed", "file", rec.Path, "error", err)
		p.bump(func(s *ProcessingStats) { s.WriteErrors++ })
		p.setFatal(err)
		return
	}
	if salvaged {
		p.bump(func(s *ProcessingStats) { s.Salvaged++ })
		return
	}
	p.bump(func(s *ProcessingStats) { s.Accepted++ })
}

func (p *DatasetProcessor) quarantine(ctx context.Context, path string, verdict schema.Verdict, router *QuarantineRouter) {
	dest, err := router.Quarantine(path)
	if err != nil {
		p.logger.Warn("quarantine failed", "file", path, "error", err)
		p.bump(func(s *ProcessingStats) { s.MoveErrors++ })
		return
	}
	p.bump(func(s *ProcessingStats) { s.Rejected++ })
	p.logger.Info("file quarantined", "file", path, "dest", dest, "reasons", len(verdict.Violations))
	p.journal.Record(ctx, filepath.Base(path), verdict.Violations.Error())
}

func (p *DatasetProcessor) fail(start time.Time, err error) DatasetResult {
	p.mu.Lock()
	p.state = StateFailed
	if p.fatal == nil {
		p.fatal = err
	}
	stats := p.stats
	p.mu.Unlock()
	return DatasetResult{
		Dataset:  p.desc.Name,
		State:    StateFailed,
		Stats:    stats,
		Err:      err,
		Duration: time.Since(start),
	}
}

// setFatal records the first fatal error; later ones are dropped.
func (p *DatasetProcessor) setFatal(err error) {
	p.mu.Lock()
	if p.fatal == nil {
		p.fatal = err
	}
	p.mu.Unlock()
}

func (p *DatasetProcessor) fatalError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fatal
}

func (p *DatasetProcessor) setState(state DatasetState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *DatasetProcessor) statsSnapshot() ProcessingStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *DatasetProcessor) bump(fn func(*ProcessingStats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}
