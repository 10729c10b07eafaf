package core

// quarantine.go relocates rejected source files into a dataset's mismatch
// directory.

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

// QuarantineRouter moves rejected files into one mismatch directory,
// creating it on first use. Routing is serialized per router so the
// collision policy stays correct under concurrent workers; datasets sharing
// a mismatch directory are serialized against each other by the pipeline.
//
// With preserve set the router copies instead of moving, leaving the source
// in place for other datasets reading the same data directory.
type QuarantineRouter struct {
	dir      string
	preserve bool

	mu sync.Mutex
}

// NewQuarantineRouter returns a router targeting dir.
func NewQuarantineRouter(dir string, preserve bool) *QuarantineRouter {
	return &QuarantineRouter{dir: dir, preserve: preserve}
}

// Dir returns the mismatch directory.
func (q *QuarantineRouter) Dir() string { return q.dir }

// Quarantine relocates sourcePath into the mismatch directory and returns
// the file's new path. The original base name is kept; a name collision gets
// a numeric suffix before the extension rather than overwriting anything.
// On any failure the source file is left untouched and still readable.
func (q *QuarantineRouter) Quarantine(sourcePath string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := os.MkdirAll(q.dir, 0755); err != nil {
		return "", &FileMoveError{From: sourcePath, To: q.dir, Err: err}
	}
	dest, err := q.freePath(filepath.Base(sourcePath))
	if err != nil {
		return "", &FileMoveError{From: sourcePath, To: q.dir, Err: err}
	}
	if q.preserve {
		if err := copyFile(sourcePath, dest); err != nil {
			return "", &FileMoveError{From: sourcePath, To: dest, Err: err}
		}
		return dest, nil
	}
	if err := moveFile(sourcePath, dest); err != nil {
		return "", &FileMoveError{From: sourcePath, To: dest, Err: err}
	}
	return dest, nil
}

// freePath picks the first non-colliding destination for base: the name
// itself, then name-1.ext, name-2.ext, and so on. Earlier quarantined files
// are never overwritten.
func (q *QuarantineRouter) freePath(base string) (string, error) {
	dest := filepath.Join(q.dir, base)
	if _, err := os.Lstat(dest); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return dest, nil
		}
		return "", err
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		dest = filepath.Join(q.dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
		_, err := os.Lstat(dest)
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrNotExist) {
			return dest, nil
		}
		return "", err
	}
}

// moveFile renames src onto dest, falling back to copy-and-remove when the
// rename crosses filesystems. Every failure path leaves src in place and no
// partial dest behind, so the file is never in both locations or neither.
func moveFile(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}

// copyFile copies src to a fresh dest, syncing before close. dest must not
// exist; a failed copy removes the partial file.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}
