package core

import "time"

// DatasetDescriptor names the inputs and outputs of one extraction job.
// Descriptors are immutable value records; every field is required.
type DatasetDescriptor struct {
	Name        string // label for logs, stats, and summaries
	SchemaFile  string // JSON Schema document path
	DataDir     string // directory of JSON source files
	OutputFile  string // CSV output path
	MismatchDir string // quarantine directory for rejected files
}

// DatasetOptions carries optional per-dataset behavior beyond the descriptor.
type DatasetOptions struct {
	// Pattern filters directory entries by base name using filepath.Match
	// syntax. Empty selects every regular file.
	Pattern string

	// SalvageMissing writes records whose only violations are missing
	// required properties, with blank columns, instead of quarantining them.
	SalvageMissing bool

	// Normalizers maps a column name to the named transforms applied to its
	// extracted value, in order. See LookupNormalizer for the names.
	Normalizers map[string][]string
}

// DatasetJob pairs a descriptor with its options.
type DatasetJob struct {
	Descriptor DatasetDescriptor
	Options    DatasetOptions
}

// SourceRecord is one input file's parsed JSON document.
type SourceRecord struct {
	Path string
	Doc  any
}

// CsvRow is an ordered row of column values for one accepted record.
type CsvRow []string

// DatasetState tracks a dataset through its lifecycle.
type DatasetState string

const (
	StateIdle          DatasetState = "idle"
	StateSchemaLoading DatasetState = "schema_loading"
	StateRunning       DatasetState = "running"
	StateCompleted     DatasetState = "completed"
	StateFailed        DatasetState = "failed"
)

// ProcessingStats counts terminal classifications for one dataset. Every
// enumerated file lands in exactly one counter besides FilesSeen.
type ProcessingStats struct {
	FilesSeen   int `json:"files_seen"`
	Accepted    int `json:"accepted"`
	Salvaged    int `json:"salvaged"`
	Rejected    int `json:"rejected"`
	ReadErrors  int `json:"read_errors"`
	MoveErrors  int `json:"move_errors"`
	WriteErrors int `json:"write_errors"`
}

// ErrorCount returns the number of files that hit I/O faults.
func (s ProcessingStats) ErrorCount() int {
	return s.ReadErrors + s.MoveErrors + s.WriteErrors
}

// Add accumulates other into s for run-level aggregation.
func (s *ProcessingStats) Add(other ProcessingStats) {
	s.FilesSeen += other.FilesSeen
	s.Accepted += other.Accepted
	s.Salvaged += other.Salvaged
	s.Rejected += other.Rejected
	s.ReadErrors += other.ReadErrors
	s.MoveErrors += other.MoveErrors
	s.WriteErrors += other.WriteErrors
}

// DatasetResult is the terminal outcome of one dataset.
type DatasetResult struct {
	Dataset  string
	State    DatasetState
	Stats    ProcessingStats
	Err      error // non-nil when State is StateFailed
	Duration time.Duration
}

// Succeeded reports whether the dataset completed with no I/O faults.
// Rejected files are expected traffic and do not affect success.
func (r DatasetResult) Succeeded() bool {
	return r.State == StateCompleted && r.Stats.ErrorCount() == 0
}

// RunResult aggregates every dataset outcome of one pipeline run.
type RunResult struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Datasets  []DatasetResult
}

// Succeeded reports overall success: every dataset succeeded.
func (r RunResult) Succeeded() bool {
	for _, d := range r.Datasets {
		if !d.Succeeded() {
			return false
		}
	}
	return true
}

// Totals sums stats across all datasets.
func (r RunResult) Totals() ProcessingStats {
	var total ProcessingStats
	for _, d := range r.Datasets {
		total.Add(d.Stats)
	}
	return total
}
