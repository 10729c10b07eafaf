package core

// journal.go records quarantine events to an append-only log file.
//
// The journal is best effort: appends retry with bounded backoff, and a
// write that still fails is logged and dropped without ever affecting the
// file's classification.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// journalTimeFormat matches the historical rejection log layout.
const journalTimeFormat = "02/01/2006 03:04:05 PM"

// DefaultJournalAttempts bounds retries per append when the config does not
// say otherwise.
const DefaultJournalAttempts = 5

// RejectionJournal appends one line per quarantined file:
//
//	24/08/2026 09:15:02 AM, ERROR, SCHEMA ERR, card_0017.json, payload.amount: expected number, got string
//
// A nil journal silently drops every record, so callers never need to guard.
type RejectionJournal struct {
	path     string
	attempts uint64
	logger   *slog.Logger

	mu sync.Mutex
}

// NewRejectionJournal creates a journal writing to path. attempts bounds the
// retries per append; logger may be nil for the process default.
func NewRejectionJournal(path string, attempts int, logger *slog.Logger) *RejectionJournal {
	if attempts < 0 {
		attempts = DefaultJournalAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RejectionJournal{path: path, attempts: uint64(attempts), logger: logger}
}

// Path returns the journal file path.
func (j *RejectionJournal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Record appends one rejection line for file. Transient failures retry with
// fibonacci backoff; a final failure is logged, never returned.
func (j *RejectionJournal) Record(ctx context.Context, file, reason string) {
	if j == nil {
		return
	}
	line := fmt.Sprintf("%s, ERROR, SCHEMA ERR, %s, %s\n", time.Now().Format(journalTimeFormat), file, reason)

	backoff := retry.NewFibonacci(250 * time.Millisecond)
	err := retry.Do(ctx, retry.WithMaxRetries(j.attempts, backoff), func(ctx context.Context) error {
		if err := j.append(line); err != nil {
			if retryableIOError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		j.logger.Warn("rejection journal append failed", "path", j.path, "file", file, "error", err)
	}
}

// append opens, writes, and closes per call so the journal survives external
// rotation between appends.
func (j *RejectionJournal) append(line string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
