package repositories

import (
	"errors"
	"fmt"
)

// Store error kinds. Every error returned by a repository wraps exactly one
// of these, so callers branch with errors.Is.
var (
	// ErrNotFound means no row matched the key.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness or reference constraint rejected the write.
	ErrConflict = errors.New("conflict")
	// ErrTemporary means the store could not be reached; the call is safe to retry.
	ErrTemporary = errors.New("temporary store failure")
	// ErrFatal means an unexpected, non-retryable storage fault.
	ErrFatal = errors.New("fatal store failure")
)

// StoreError carries the failing operation alongside the error kind and the
// underlying driver error.
type StoreError struct {
	Kind error
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStoreError builds a StoreError of the given kind.
func NewStoreError(kind error, op string, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// NotFound is shorthand for a not-found StoreError.
func NotFound(op string) error {
	return &StoreError{Kind: ErrNotFound, Op: op}
}

// IsNotFound reports whether err is a not-found store error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a conflict store error.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsTemporary reports whether err is a retryable store error.
func IsTemporary(err error) bool { return errors.Is(err, ErrTemporary) }

// IsFatal reports whether err is a non-retryable store error.
func IsFatal(err error) bool { return errors.Is(err, ErrFatal) }
