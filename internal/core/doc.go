// Package core implements the batch extraction pipeline: directories of
// JSON files are validated against a JSON Schema, accepted documents are
// flattened into CSV rows, and non-conforming files are quarantined.
//
// The package contains all domain logic independent of any transport or UI
// layer. It can be driven by the extract command, a status server, or tests
// without modification.
//
// # Datasets
//
// Work is described by [DatasetDescriptor] values: a schema file, a data
// directory, a CSV output file, and a quarantine directory for files that do
// not match the schema. A [Pipeline] runs an ordered list of descriptors,
// isolating them from each other so one dataset's failure never stops
// another:
//
//	pipeline := core.NewPipeline(core.PipelineConfig{})
//	result := pipeline.Run(ctx, jobs)
//
// # Classification
//
// Every enumerated file reaches exactly one terminal outcome: extracted into
// a CSV row, relocated to quarantine, or recorded as an I/O fault in
// [ProcessingStats]. Rejections are expected traffic; only I/O faults count
// against a run's success.
//
// # Shared resources
//
// Schemas compile once per run via [SchemaRegistry] no matter how many
// datasets name them. Output files get one serialized writer each via
// [SinkRegistry]. Datasets that share an output file, data directory, or
// quarantine directory are serialized against each other by the pipeline;
// everything else runs in parallel.
//
// # Error handling
//
// Technical failures are classified by a small taxonomy (SchemaLoadError,
// FileReadError, FileMoveError, SinkWriteError) and mapped to operator-facing
// messages with [Describe]. Schema violations and JSON parse failures are not
// errors: they are verdicts, and they route files to quarantine.
package core
