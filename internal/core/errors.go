package core

// errors.go defines the pipeline's I/O error taxonomy and its operator-facing
// messages. Operators can quote the error code when reporting a failed run:
//
//	SCH001  - Schema load: the schema file is missing, unreadable, or not a
//	          valid JSON Schema document. Fatal to the owning dataset only.
//	FILE001 - File read: a source file could not be read. Recorded in stats;
//	          the dataset keeps processing the remaining files.
//	FILE002 - File move: a quarantine relocation failed. Recorded in stats;
//	          the source file is left untouched.
//	SINK001 - Sink write: a CSV append failed. Fatal to the owning dataset;
//	          rows already written stay intact.
//	ERR000  - Anything else, including cancellation.
//
// JSON parse failures and schema violations carry no code: they are
// rejection verdicts, not errors, and route files to quarantine.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
)

// SchemaLoadError reports a schema document that could not be loaded or
// compiled.
type SchemaLoadError struct {
	Path string
	Err  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("load schema %s: %v", e.Path, e.Err)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// FileReadError reports an unreadable source file or data directory.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// FileMoveError reports a failed quarantine relocation. The source file is
// guaranteed to still be in place.
type FileMoveError struct {
	From string
	To   string
	Err  error
}

func (e *FileMoveError) Error() string {
	return fmt.Sprintf("move %s to %s: %v", e.From, e.To, e.Err)
}

func (e *FileMoveError) Unwrap() error { return e.Err }

// SinkWriteError reports a failed CSV append or sink setup.
type SinkWriteError struct {
	Path string
	Err  error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

// UserMessage is an operator-facing description of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// Describe maps an error to its operator-facing summary. Unknown errors get
// the generic ERR000 entry.
func Describe(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		schemaErr *SchemaLoadError
		readErr   *FileReadError
		moveErr   *FileMoveError
		sinkErr   *SinkWriteError
	)
	switch {
	case errors.As(err, &schemaErr):
		return UserMessage{
			Message: fmt.Sprintf("The schema %s could not be loaded.", schemaErr.Path),
			Action:  "Check that the file exists and is a valid JSON Schema document.",
			Code:    "SCH001",
		}
	case errors.As(err, &readErr):
		return UserMessage{
			Message: fmt.Sprintf("%s could not be read.", readErr.Path),
			Action:  "Check file permissions, then re-run to pick up the skipped files.",
			Code:    "FILE001",
		}
	case errors.As(err, &moveErr):
		return UserMessage{
			Message: fmt.Sprintf("Moving %s to quarantine failed.", moveErr.From),
			Action:  "Check permissions on the quarantine directory; the original file was not touched.",
			Code:    "FILE002",
		}
	case errors.As(err, &sinkErr):
		return UserMessage{
			Message: fmt.Sprintf("Writing to %s failed.", sinkErr.Path),
			Action:  "Check disk space and permissions; rows written before the failure are intact.",
			Code:    "SINK001",
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return UserMessage{
			Message: "The run was cancelled before this dataset finished.",
			Action:  "Re-run to process the remaining files.",
			Code:    "ERR000",
		}
	}
	return UserMessage{
		Message: err.Error(),
		Action:  "See the logs for details.",
		Code:    "ERR000",
	}
}

// retryableIOError reports whether a journal append failure is worth another
// attempt. Permission, disk-space, and path errors are permanent; transient
// conditions get retried.
func retryableIOError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrClosed) {
		return false
	}
	switch {
	case errors.Is(err, syscall.EROFS),
		errors.Is(err, syscall.ENOSPC),
		errors.Is(err, syscall.EDQUOT),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.ENOTDIR),
		errors.Is(err, syscall.EISDIR),
		errors.Is(err, syscall.ENAMETOOLONG):
		return false
	}
	return true
}
