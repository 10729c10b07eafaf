package core

// pipeline.go runs the ordered dataset list. Independent datasets run in
// parallel; datasets that touch the same files are serialized against each
// other so sinks and quarantine directories keep a single logical writer.

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrentDatasets bounds parallel datasets when the config does
// not say otherwise.
const DefaultMaxConcurrentDatasets = 4

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	// MaxConcurrentDatasets bounds datasets processed in parallel;
	// DefaultMaxConcurrentDatasets when zero or negative.
	MaxConcurrentDatasets int

	// WorkersPerDataset is the file worker pool size within one dataset;
	// DefaultWorkersPerDataset when zero or negative.
	WorkersPerDataset int

	Journal *RejectionJournal // optional
	Logger  *slog.Logger      // optional
}

// Pipeline runs every dataset descriptor and aggregates the outcome.
// Datasets are isolated: one dataset's failure never stops another, and the
// run itself always produces a complete RunResult.
type Pipeline struct {
	maxDatasets int
	workers     int
	journal     *RejectionJournal
	logger      *slog.Logger

	mu        sync.Mutex
	runID     string
	startedAt time.Time
	procs     []*DatasetProcessor
}

// NewPipeline builds a pipeline from cfg, filling in defaults.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	maxDatasets := cfg.MaxConcurrentDatasets
	if maxDatasets <= 0 {
		maxDatasets = DefaultMaxConcurrentDatasets
	}
	workers := cfg.WorkersPerDataset
	if workers <= 0 {
		workers = DefaultWorkersPerDataset
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		maxDatasets: maxDatasets,
		workers:     workers,
		journal:     cfg.Journal,
		logger:      logger,
	}
}

// Run processes jobs in the order given and returns once every dataset has
// reached a terminal state. Datasets that share an output file, data
// directory, or mismatch directory run serially relative to each other;
// everything else runs in parallel up to the configured limit.
//
// Rejected files are expected traffic: the aggregate succeeds when every
// dataset completes with zero I/O faults, whatever its rejection count.
func (p *Pipeline) Run(ctx context.Context, jobs []DatasetJob) RunResult {
	runID := uuid.New().String()
	start := time.Now()

	registry := NewSchemaRegistry()
	sinks := NewSinkRegistry()
	logger := p.logger.With("run_id", runID)

	dirOwners := sharedDataDirs(jobs)
	procs := make([]*DatasetProcessor, len(jobs))
	for i, job := range jobs {
		procs[i] = NewDatasetProcessor(ProcessorConfig{
			Descriptor:     job.Descriptor,
			Options:        job.Options,
			Workers:        p.workers,
			PreserveSource: dirOwners[filepath.Clean(job.Descriptor.DataDir)] > 1,
			Registry:       registry,
			Sinks:          sinks,
			Journal:        p.journal,
			Logger:         logger,
		})
	}

	p.mu.Lock()
	p.runID = runID
	p.startedAt = start
	p.procs = procs
	p.mu.Unlock()

	logger.Info("run started", "datasets", len(jobs))

	results := make([]DatasetResult, len(jobs))
	var eg errgroup.Group
	eg.SetLimit(p.maxDatasets)
	for _, group := range conflictGroups(jobs) {
		group := group // per-iteration copy: required under go < 1.22 loop semantics
		eg.Go(func() error {
			for _, idx := range group {
				results[idx] = procs[idx].Run(ctx)
				p.logResult(logger, results[idx])
			}
			return nil
		})
	}
	eg.Wait()

	if err := sinks.CloseAll(); err != nil {
		logger.Warn("closing output files", "error", err)
	}

	return RunResult{
		RunID:     runID,
		StartedAt: start,
		Duration:  time.Since(start),
		Datasets:  results,
	}
}

func (p *Pipeline) logResult(logger *slog.Logger, res DatasetResult) {
	if res.State == StateFailed {
		msg := Describe(res.Err)
		logger.Error("dataset failed",
			"dataset", res.Dataset,
			"code", msg.Code,
			"error", res.Err,
			"files_seen", res.Stats.FilesSeen,
			"accepted", res.Stats.Accepted,
			"rejected", res.Stats.Rejected,
		)
		return
	}
	logger.Info("dataset complete",
		"dataset", res.Dataset,
		"files_seen", res.Stats.FilesSeen,
		"accepted", res.Stats.Accepted,
		"salvaged", res.Stats.Salvaged,
		"rejected", res.Stats.Rejected,
		"errors", res.Stats.ErrorCount(),
		"duration", res.Duration,
	)
}

// RunSnapshot is a point-in-time view of the current (or last) run.
type RunSnapshot struct {
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Datasets  []DatasetSnapshot `json:"datasets"`
}

// DatasetSnapshot is the live view of one dataset.
type DatasetSnapshot struct {
	Name          string          `json:"name"`
	State         DatasetState    `json:"state"`
	Stats         ProcessingStats `json:"stats"`
	ActiveWorkers int             `json:"active_workers"`
}

// Snapshot reports the live state of the current run. Before the first run
// starts it returns a zero snapshot.
func (p *Pipeline) Snapshot() RunSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := RunSnapshot{RunID: p.runID, StartedAt: p.startedAt}
	for _, proc := range p.procs {
		snap.Datasets = append(snap.Datasets, proc.Snapshot())
	}
	return snap
}

// sharedDataDirs counts descriptors per cleaned data directory. A directory
// claimed by more than one dataset switches those datasets to copy-mode
// quarantine, so each sharer still observes the complete file set.
func sharedDataDirs(jobs []DatasetJob) map[string]int {
	counts := make(map[string]int, len(jobs))
	for _, job := range jobs {
		counts[filepath.Clean(job.Descriptor.DataDir)]++
	}
	return counts
}

// conflictGroups partitions job indexes so any two jobs touching the same
// output file, data directory, or mismatch directory land in the same group.
// Each group runs serially in descriptor order; groups are ordered by their
// first member.
func conflictGroups(jobs []DatasetJob) [][]int {
	parent := make([]int, len(jobs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	owners := make(map[string]int)
	claim := func(i int, key string) {
		if prev, ok := owners[key]; ok {
			union(prev, i)
			return
		}
		owners[key] = i
	}
	for i, job := range jobs {
		d := job.Descriptor
		claim(i, "out:"+filepath.Clean(d.OutputFile))
		claim(i, "data:"+filepath.Clean(d.DataDir))
		claim(i, "quar:"+filepath.Clean(d.MismatchDir))
	}

	grouped := make(map[int][]int, len(jobs))
	var roots []int
	for i := range jobs {
		root := find(i)
		if _, ok := grouped[root]; !ok {
			roots = append(roots, root)
		}
		grouped[root] = append(grouped[root], i)
	}
	out := make([][]int, 0, len(roots))
	for _, root := range roots {
		out = append(out, grouped[root])
	}
	return out
}
