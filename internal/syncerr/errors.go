// Package syncerr defines the error taxonomy shared by the ledger, the blob
// store backends and the transfer pipelines.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for retry and reporting decisions.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is bad input or configuration. Never retried.
	KindValidation
	// KindTransient is a timeout, lock or connection failure. Retried with backoff.
	KindTransient
	// KindPermanent is a constraint violation or similar. Surfaced unretried.
	KindPermanent
	// KindNotFound is a missing ledger row or blob object.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ErrNotFound is the sentinel matched by errors.Is for KindNotFound errors.
var ErrNotFound = errors.New("not found")

// Error carries the failing operation and its classification.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match NotFound errors from any backend.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation wraps err as a validation failure.
func Validation(op string, err error) error { return newError(KindValidation, op, err) }

// Validationf builds a validation failure from a format string.
func Validationf(op, format string, args ...any) error {
	return newError(KindValidation, op, fmt.Errorf(format, args...))
}

// Transient wraps err as a retryable failure.
func Transient(op string, err error) error { return newError(KindTransient, op, err) }

// Permanent wraps err as a non-retryable failure.
func Permanent(op string, err error) error { return newError(KindPermanent, op, err) }

// NotFound wraps err as a missing-object failure.
func NotFound(op string, err error) error {
	if err == nil {
		err = ErrNotFound
	}
	return newError(KindNotFound, op, err)
}

// KindOf returns the outermost classification found in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var fieldErr *InvalidFieldError
	if errors.As(err, &fieldErr) {
		return KindValidation
	}
	return KindUnknown
}

func IsTransient(err error) bool  { return KindOf(err) == KindTransient }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsPermanent(err error) bool  { return KindOf(err) == KindPermanent }

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// InvalidFieldError is returned when a bulk clear names a column that is not clearable.
type InvalidFieldError struct {
	Field string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %q: only imageData and blobPath can be cleared", e.Field)
}
