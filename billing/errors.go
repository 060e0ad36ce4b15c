/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every error the engine returns falls into exactly one of four kinds so
  that callers (the HTTP layer, the CLI) can tell them apart:

    validation  malformed or out-of-range input, detected before any write
    not_found   the operation targets an id that does not exist
    conflict    the serial-number uniqueness constraint was violated
    internal    storage or unexpected fault

USAGE:
  Stores return the sentinels below (or wrap them). The engine wraps
  anything it does not recognise in an InternalError.

    if errors.Is(err, billing.ErrDuplicateSerial) {
        // retry allocation
    }

SEE ALSO:
  - validation.go: Produces ValidationError
  - engine.go: Classifies store failures
  - api/handlers.go: Maps kinds to HTTP status codes
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an operation targets a nonexistent id.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a uniqueness constraint is violated.
	ErrConflict = errors.New("conflict")

	// ErrInternal is returned for storage faults and anything unexpected.
	ErrInternal = errors.New("internal failure")

	// ErrBillNotFound is returned when a bill id does not exist.
	ErrBillNotFound = fmt.Errorf("bill %w", ErrNotFound)

	// ErrIncomeNotFound is returned when an income entry id does not exist.
	ErrIncomeNotFound = fmt.Errorf("income entry %w", ErrNotFound)

	// ErrExpenseNotFound is returned when an expense entry id does not exist.
	ErrExpenseNotFound = fmt.Errorf("expense entry %w", ErrNotFound)

	// ErrDuplicateSerial is returned when a bill write would reuse a serial
	// number already held by another bill.
	ErrDuplicateSerial = fmt.Errorf("%w: serial number already exists", ErrConflict)

	// ErrDuplicatePosting is returned by stores when a bill already has an
	// advance posting.
	ErrDuplicatePosting = fmt.Errorf("%w: ledger posting already exists", ErrConflict)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field and the rule it broke.
// Reason is user-facing and returned verbatim by the API.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// InternalError wraps a storage or unexpected failure with the operation
// that was running when it happened.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() []error {
	return []error{ErrInternal, e.Err}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// internal classifies err for op. Errors that already belong to one of the
// four kinds pass through unchanged.
func internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != KindInternal || errors.Is(err, ErrInternal) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// ErrorKind is the coarse classification surfaced to callers.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindInternal   ErrorKind = "internal"
)

// Kind classifies err. Unknown errors are internal.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// IsValidation returns true if the error is due to invalid client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
