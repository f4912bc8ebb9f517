package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned when an upload carries no content.
	ErrEmptyFile = errors.New("file is empty")
)

// ParseError means the file structure itself is broken; the whole run
// fails, no rows are processed.
type ParseError struct {
	FileName string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.FileName, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MappingError means a required canonical field is entirely absent
// from the file headers; the whole run fails.
type MappingError struct {
	FileName string
	Missing  []string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("file %s is missing required columns: %v", e.FileName, e.Missing)
}

// BusinessRuleError rejects a single row by domain rule. The file
// continues processing.
type BusinessRuleError struct {
	RowNumber int
	Field     string
	Value     string
	Rule      string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("row %d: field %s value %q rejected: %s", e.RowNumber, e.Field, e.Value, e.Rule)
}

// StorageError wraps a persistence failure. Transient failures are
// retried with backoff; permanent ones are dead-lettered.
type StorageError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *StorageError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("storage %s failed (%s): %v", e.Op, kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConcurrencyConflictError means an optimistic-lock version check
// failed; the caller must re-read the file state and retry.
type ConcurrencyConflictError struct {
	FileID          string
	ExpectedVersion int64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("file %s was modified concurrently (expected version %d); re-read and retry", e.FileID, e.ExpectedVersion)
}

// DuplicateFileError blocks re-uploads of already processed content.
type DuplicateFileError struct {
	FileName string
	Checksum string
	State    FileState
}

func (e *DuplicateFileError) Error() string {
	return fmt.Sprintf("file %s duplicates checksum %s already in state %s; reprocessing requires force", e.FileName, e.Checksum, e.State)
}

// IllegalTransitionError rejects a lifecycle move the transition
// table forbids.
type IllegalTransitionError struct {
	From FileState
	To   FileState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}
