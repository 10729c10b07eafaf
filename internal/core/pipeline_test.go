package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func runPipeline(t *testing.T, cfg PipelineConfig, jobs []DatasetJob) RunResult {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return NewPipeline(cfg).Run(context.Background(), jobs)
}

// ============================================================================
// Pipeline Tests
// ============================================================================

func TestPipeline_RunsAllDatasets(t *testing.T) {
	a := newFixture(t, cardSchema)
	a.addFile(t, "a.json", `{"id": "a", "amount": 1}`)
	b := newFixture(t, cardSchema)
	b.addFile(t, "b1.json", `{"id": "b1", "amount": 2}`)
	b.addFile(t, "b2.json", `{"id": 9, "amount": 2}`)

	result := runPipeline(t, PipelineConfig{}, []DatasetJob{
		{Descriptor: a.descriptor("alpha")},
		{Descriptor: b.descriptor("beta")},
	})

	if len(result.Datasets) != 2 {
		t.Fatalf("Datasets = %d, want 2", len(result.Datasets))
	}
	if result.Datasets[0].Dataset != "alpha" || result.Datasets[1].Dataset != "beta" {
		t.Errorf("result order = %v, want descriptor order", []string{result.Datasets[0].Dataset, result.Datasets[1].Dataset})
	}
	if !result.Succeeded() {
		t.Errorf("Succeeded() = false: %+v", result.Datasets)
	}
	totals := result.Totals()
	if totals.FilesSeen != 3 || totals.Accepted != 2 || totals.Rejected != 1 {
		t.Errorf("Totals() = %+v, want 3 seen, 2 accepted, 1 rejected", totals)
	}
}

func TestPipeline_DatasetFailureIsIsolated(t *testing.T) {
	good := newFixture(t, cardSchema)
	good.addFile(t, "ok.json", `{"id": "a", "amount": 1}`)
	bad := newFixture(t, cardSchema)
	badDesc := bad.descriptor("broken")
	badDesc.SchemaFile = filepath.Join(bad.dataDir, "absent.json")

	result := runPipeline(t, PipelineConfig{}, []DatasetJob{
		{Descriptor: badDesc},
		{Descriptor: good.descriptor("healthy")},
	})

	if result.Succeeded() {
		t.Error("Succeeded() = true with a failed dataset")
	}
	if result.Datasets[0].State != StateFailed {
		t.Errorf("broken dataset state = %v, want failed", result.Datasets[0].State)
	}
	if result.Datasets[1].State != StateCompleted {
		t.Errorf("healthy dataset state = %v, want completed", result.Datasets[1].State)
	}

	records := readCsv(t, good.output)
	if len(records) != 2 || records[1][0] != "a" {
		t.Errorf("healthy output = %v, want its row despite sibling failure", records)
	}
}

func TestPipeline_SharedSchemaCompiledOnce(t *testing.T) {
	shared := newFixture(t, cardSchema)
	shared.addFile(t, "a.json", `{"id": "a", "amount": 1}`)
	other := newFixture(t, cardSchema)
	other.addFile(t, "b.json", `{"id": "b", "amount": 2}`)
	otherDesc := other.descriptor("two")
	otherDesc.SchemaFile = shared.schema

	result := runPipeline(t, PipelineConfig{}, []DatasetJob{
		{Descriptor: shared.descriptor("one")},
		{Descriptor: otherDesc},
	})

	if !result.Succeeded() {
		t.Fatalf("Succeeded() = false: %+v", result.Datasets)
	}
}

func TestPipeline_SharedOutputFileGetsOneHeader(t *testing.T) {
	a := newFixture(t, cardSchema)
	a.addFile(t, "a.json", `{"id": "a", "amount": 1}`)
	b := newFixture(t, cardSchema)
	b.addFile(t, "b.json", `{"id": "b", "amount": 2}`)

	descA := a.descriptor("alpha")
	descB := b.descriptor("beta")
	descB.SchemaFile = a.schema
	descB.OutputFile = a.output

	result := runPipeline(t, PipelineConfig{}, []DatasetJob{
		{Descriptor: descA},
		{Descriptor: descB},
	})

	if !result.Succeeded() {
		t.Fatalf("Succeeded() = false: %+v", result.Datasets)
	}
	records := readCsv(t, a.output)
	if len(records) != 3 {
		t.Fatalf("shared output = %v, want one header and two rows", records)
	}
	ids := []string{records[1][0], records[2][0]}
	if !(ids[0] == "a" && ids[1] == "b") && !(ids[0] == "b" && ids[1] == "a") {
		t.Errorf("shared output rows = %v, want one row per dataset", ids)
	}
	for _, rec := range records[1:] {
		if rec[0] == "id" {
			t.Error("header written more than once")
		}
	}
}

func TestPipeline_SharedDataDirPreservesSources(t *testing.T) {
	shared := newFixture(t, cardSchema)
	shared.addFile(t, "good.json", `{"id": "a", "amount": 1}`)
	shared.addFile(t, "bad.json", `{"id": "a"}`)

	strict := newFixture(t, cardSchema)
	strictDesc := strict.descriptor("strict")
	strictDesc.DataDir = shared.dataDir

	result := runPipeline(t, PipelineConfig{}, []DatasetJob{
		{Descriptor: shared.descriptor("lenient")},
		{Descriptor: strictDesc},
	})

	if result.Datasets[0].Stats.FilesSeen != 2 || result.Datasets[1].Stats.FilesSeen != 2 {
		t.Fatalf("stats = %+v / %+v, want both datasets to see both files",
			result.Datasets[0].Stats, result.Datasets[1].Stats)
	}
	// Copy-mode quarantine: sources stay for the sibling dataset.
	remaining := listDir(t, shared.dataDir)
	if strings.Join(remaining, ",") != "bad.json,good.json" {
		t.Errorf("shared data dir = %v, want both sources preserved", remaining)
	}
	if got := listDir(t, shared.mismatch); len(got) != 1 || got[0] != "bad.json" {
		t.Errorf("lenient mismatch dir = %v, want bad.json copy", got)
	}
	if got := listDir(t, strict.mismatch); len(got) != 1 || got[0] != "bad.json" {
		t.Errorf("strict mismatch dir = %v, want bad.json copy", got)
	}
}

func TestPipeline_RunIDIsUUID(t *testing.T) {
	f := newFixture(t, cardSchema)

	result := runPipeline(t, PipelineConfig{}, []DatasetJob{{Descriptor: f.descriptor("cards")}})
	if _, err := uuid.Parse(result.RunID); err != nil {
		t.Errorf("RunID = %q, want a UUID: %v", result.RunID, err)
	}
	if result.StartedAt.IsZero() {
		t.Error("StartedAt is zero")
	}
}

func TestPipeline_SnapshotReflectsRun(t *testing.T) {
	f := newFixture(t, cardSchema)
	f.addFile(t, "a.json", `{"id": "a", "amount": 1}`)

	pipeline := NewPipeline(PipelineConfig{Logger: discardLogger()})
	before := pipeline.Snapshot()
	if before.RunID != "" || len(before.Datasets) != 0 {
		t.Errorf("Snapshot() before run = %+v, want zero", before)
	}

	result := pipeline.Run(context.Background(), []DatasetJob{{Descriptor: f.descriptor("cards")}})
	after := pipeline.Snapshot()
	if after.RunID != result.RunID {
		t.Errorf("Snapshot().RunID = %q, want %q", after.RunID, result.RunID)
	}
	if len(after.Datasets) != 1 || after.Datasets[0].State != StateCompleted {
		t.Errorf("Snapshot().Datasets = %+v, want one completed dataset", after.Datasets)
	}
}

func TestPipeline_EmptyJobList(t *testing.T) {
	result := runPipeline(t, PipelineConfig{}, nil)
	if !result.Succeeded() {
		t.Error("Succeeded() = false for empty run")
	}
	if len(result.Datasets) != 0 {
		t.Errorf("Datasets = %v, want none", result.Datasets)
	}
}

func TestPipeline_ManyIndependentDatasets(t *testing.T) {
	var jobs []DatasetJob
	for i := 0; i < 6; i++ {
		f := newFixture(t, cardSchema)
		f.addFile(t, "a.json", fmt.Sprintf(`{"id": "d%d", "amount": %d}`, i, i))
		jobs = append(jobs, DatasetJob{Descriptor: f.descriptor(fmt.Sprintf("set-%d", i))})
	}

	result := runPipeline(t, PipelineConfig{MaxConcurrentDatasets: 2}, jobs)
	if !result.Succeeded() {
		t.Fatalf("Succeeded() = false: %+v", result.Datasets)
	}
	if totals := result.Totals(); totals.Accepted != 6 {
		t.Errorf("Totals().Accepted = %d, want 6", totals.Accepted)
	}
}

// ============================================================================
// Conflict Grouping Tests
// ============================================================================

func job(out, data, quar string) DatasetJob {
	return DatasetJob{Descriptor: DatasetDescriptor{
		OutputFile:  out,
		DataDir:     data,
		MismatchDir: quar,
	}}
}

func TestConflictGroups_IndependentJobsStayApart(t *testing.T) {
	groups := conflictGroups([]DatasetJob{
		job("a.csv", "d0", "q0"),
		job("b.csv", "d1", "q1"),
	})
	if len(groups) != 2 {
		t.Fatalf("groups = %v, want 2 singletons", groups)
	}
}

func TestConflictGroups_SharedResourcesMerge(t *testing.T) {
	groups := conflictGroups([]DatasetJob{
		job("a.csv", "d0", "q0"),
		job("b.csv", "d1", "q1"),
		job("a.csv", "d2", "q2"), // shares output with 0
		job("c.csv", "d1", "q3"), // shares data dir with 1
		job("d.csv", "d4", "q0"), // shares mismatch dir with 0
	})

	if len(groups) != 2 {
		t.Fatalf("groups = %v, want 2", groups)
	}
	if fmt.Sprint(groups[0]) != "[0 2 4]" {
		t.Errorf("groups[0] = %v, want [0 2 4]", groups[0])
	}
	if fmt.Sprint(groups[1]) != "[1 3]" {
		t.Errorf("groups[1] = %v, want [1 3]", groups[1])
	}
}

func TestConflictGroups_CleansPathsBeforeComparing(t *testing.T) {
	groups := conflictGroups([]DatasetJob{
		job("out/x.csv", "d0", "q0"),
		job("out/../out/x.csv", "d1", "q1"),
	})
	if len(groups) != 1 {
		t.Errorf("groups = %v, want one merged group for equivalent paths", groups)
	}
}

func TestSharedDataDirs_CountsCleanedPaths(t *testing.T) {
	counts := sharedDataDirs([]DatasetJob{
		job("a.csv", "data", "q0"),
		job("b.csv", "./data", "q1"),
		job("c.csv", "other", "q2"),
	})
	if counts["data"] != 2 {
		t.Errorf(`counts["data"] = %d, want 2`, counts["data"])
	}
	if counts["other"] != 1 {
		t.Errorf(`counts["other"] = %d, want 1`, counts["other"])
	}
}

// ============================================================================
// Stats Tests
// ============================================================================

func TestProcessingStats_ErrorCountAndAdd(t *testing.T) {
	a := ProcessingStats{FilesSeen: 3, Accepted: 1, ReadErrors: 1, MoveErrors: 1}
	b := ProcessingStats{FilesSeen: 2, Rejected: 1, WriteErrors: 1}

	if a.ErrorCount() != 2 {
		t.Errorf("ErrorCount() = %d, want 2", a.ErrorCount())
	}
	a.Add(b)
	if a.FilesSeen != 5 || a.Rejected != 1 || a.WriteErrors != 1 {
		t.Errorf("Add() = %+v, want accumulated counters", a)
	}
	if a.ErrorCount() != 3 {
		t.Errorf("ErrorCount() after Add = %d, want 3", a.ErrorCount())
	}
}

func TestDatasetResult_Succeeded(t *testing.T) {
	ok := DatasetResult{State: StateCompleted}
	if !ok.Succeeded() {
		t.Error("completed result with clean stats must succeed")
	}
	faulted := DatasetResult{State: StateCompleted, Stats: ProcessingStats{ReadErrors: 1}}
	if faulted.Succeeded() {
		t.Error("completed result with I/O faults must not succeed")
	}
	failed := DatasetResult{State: StateFailed}
	if failed.Succeeded() {
		t.Error("failed result must not succeed")
	}
	rejections := DatasetResult{State: StateCompleted, Stats: ProcessingStats{Rejected: 9}}
	if !rejections.Succeeded() {
		t.Error("rejections alone must not fail a dataset")
	}
}

func TestPipeline_FailedDatasetKeepsWrittenRows(t *testing.T) {
	f := newFixture(t, cardSchema)
	f.addFile(t, "a_ok.json", `{"id": "a", "amount": 1}`)
	f.addFile(t, "b_ok.json", `{"id": "b", "amount": 2}`)

	// Second dataset reuses the output with a conflicting column set, which
	// breaks its own header negotiation but must not disturb rows already
	// written by the first dataset.
	other := newFixture(t, `{
		"type": "object",
		"properties": {"different": {"type": "string"}}
	}`)
	otherDesc := other.descriptor("conflicting")
	otherDesc.OutputFile = f.output

	result := runPipeline(t, PipelineConfig{WorkersPerDataset: 1}, []DatasetJob{
		{Descriptor: f.descriptor("first")},
		{Descriptor: otherDesc},
	})

	if result.Datasets[0].State != StateCompleted {
		t.Fatalf("first dataset = %+v, want completed", result.Datasets[0])
	}
	if result.Datasets[1].State != StateFailed {
		t.Fatalf("conflicting dataset = %+v, want failed", result.Datasets[1])
	}

	records := readCsv(t, f.output)
	if len(records) != 3 {
		t.Errorf("output = %v, want header and both rows intact", records)
	}
}
