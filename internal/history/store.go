// Package history persists extraction run outcomes to Postgres so operators
// can inspect past runs after the process exits.
//
// The store is optional: the pipeline runs fine without a database, and the
// status server simply reports history as disabled.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/ETL/internal/core"
)

// Store writes and reads extraction run history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an established connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the history tables when absent. Safe to call on every
// startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS extract_runs (
	id          UUID PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL,
	succeeded   BOOLEAN NOT NULL,
	datasets    INT NOT NULL,
	files_seen  INT NOT NULL,
	accepted    INT NOT NULL,
	salvaged    INT NOT NULL,
	rejected    INT NOT NULL,
	io_errors   INT NOT NULL
);
CREATE TABLE IF NOT EXISTS extract_run_datasets (
	run_id       UUID NOT NULL REFERENCES extract_runs(id) ON DELETE CASCADE,
	position     INT NOT NULL,
	name         TEXT NOT NULL,
	state        TEXT NOT NULL,
	files_seen   INT NOT NULL,
	accepted     INT NOT NULL,
	salvaged     INT NOT NULL,
	rejected     INT NOT NULL,
	read_errors  INT NOT NULL,
	move_errors  INT NOT NULL,
	write_errors INT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	duration_ms  BIGINT NOT NULL,
	PRIMARY KEY (run_id, position)
);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// RecordRun stores one finished run with its per-dataset outcomes in a
// single transaction.
func (s *Store) RecordRun(ctx context.Context, result core.RunResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	totals := result.Totals()
	_, err = tx.Exec(ctx, `
		INSERT INTO extract_runs
			(id, started_at, duration_ms, succeeded, datasets, files_seen, accepted, salvaged, rejected, io_errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		result.RunID, result.StartedAt, result.Duration.Milliseconds(), result.Succeeded(),
		len(result.Datasets), totals.FilesSeen, totals.Accepted, totals.Salvaged, totals.Rejected, totals.ErrorCount(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, ds := range result.Datasets {
		errText := ""
		if ds.Err != nil {
			errText = ds.Err.Error()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO extract_run_datasets
				(run_id, position, name, state, files_seen, accepted, salvaged, rejected, read_errors, move_errors, write_errors, error, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			result.RunID, i, ds.Dataset, string(ds.State),
			ds.Stats.FilesSeen, ds.Stats.Accepted, ds.Stats.Salvaged, ds.Stats.Rejected,
			ds.Stats.ReadErrors, ds.Stats.MoveErrors, ds.Stats.WriteErrors,
			errText, ds.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert dataset %s: %w", ds.Dataset, err)
		}
	}

	return tx.Commit(ctx)
}

// RunSummary is one stored run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Succeeded  bool      `json:"succeeded"`
	Datasets   int       `json:"datasets"`
	FilesSeen  int       `json:"files_seen"`
	Accepted   int       `json:"accepted"`
	Salvaged   int       `json:"salvaged"`
	Rejected   int       `json:"rejected"`
	IOErrors   int       `json:"io_errors"`
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, duration_ms, succeeded, datasets, files_seen, accepted, salvaged, rejected, io_errors
		FROM extract_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.DurationMs, &r.Succeeded, &r.Datasets,
			&r.FilesSeen, &r.Accepted, &r.Salvaged, &r.Rejected, &r.IOErrors); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
