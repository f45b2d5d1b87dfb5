package model

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a referenced entity that does not exist. Wrap it with the
// entity kind and id so handlers can surface a useful 404.
var ErrNotFound = errors.New("not found")

// ErrInUse marks a delete rejected because other records still reference the
// entity. Surfaced as a 409.
var ErrInUse = errors.New("still referenced by other records")

// NotFound builds a wrapped ErrNotFound for one entity.
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// ValidationError reports malformed input on a single field. Surfaced as a 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError with a formatted reason.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports a printer double-booking detected during job start:
// HeldByJobID is already printing on the named printer. Surfaced as a 409.
type ConflictError struct {
	PrinterID   int64
	PrinterName string
	HeldByJobID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("printer %q (id %d) is already printing job %d", e.PrinterName, e.PrinterID, e.HeldByJobID)
}

// InvalidStateError reports a lifecycle transition requested from the wrong
// source state. Surfaced as a 400.
type InvalidStateError struct {
	JobID  int64
	Status JobStatus
	Wanted JobStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("print job %d is %s, expected %s", e.JobID, e.Status, e.Wanted)
}
