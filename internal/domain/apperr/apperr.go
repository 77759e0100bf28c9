// Package apperr defines the closed set of error kinds the HTTP and MCP
// boundaries translate into status codes. Every core operation that can
// fail in a caller-visible way returns one of these, wrapped with context
// via fmt.Errorf("...: %w", err).
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed error categories from the coordination contract.
type Kind string

const (
	KindBadRequest         Kind = "bad_request"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindUnprocessableState Kind = "unprocessable_status"
	KindTooManyRequests    Kind = "too_many_requests"
	KindStorageFault       Kind = "storage_fault"
)

// Error carries a Kind plus a human-readable detail message.
type Error struct {
	Kind   Kind
	Detail string
	err    error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.err }

// Is supports errors.Is comparisons against the sentinel Kind values
// below (e.g. errors.Is(err, apperr.ErrConflict)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Detail == ""
}

func newKind(k Kind) *Error { return &Error{Kind: k} }

// Sentinels for errors.Is comparisons; callers do errors.Is(err, apperr.ErrConflict).
var (
	ErrBadRequest         = newKind(KindBadRequest)
	ErrUnauthorized       = newKind(KindUnauthorized)
	ErrForbidden          = newKind(KindForbidden)
	ErrNotFound           = newKind(KindNotFound)
	ErrConflict           = newKind(KindConflict)
	ErrUnprocessableState = newKind(KindUnprocessableState)
	ErrTooManyRequests    = newKind(KindTooManyRequests)
	ErrStorageFault       = newKind(KindStorageFault)
)

// New builds a Kind error with a detail message.
func New(k Kind, detail string) error {
	return &Error{Kind: k, Detail: detail}
}

// Wrap builds a Kind error with a detail message and an underlying cause.
func Wrap(k Kind, detail string, err error) error {
	return &Error{Kind: k, Detail: detail, err: err}
}

// NotFoundf is a convenience constructor for the common not-found case.
func NotFoundf(format string, args ...any) error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Conflictf is a convenience constructor for the common conflict case.
func Conflictf(format string, args ...any) error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind of err, defaulting to KindStorageFault for
// errors that were never classified (an unexpected failure should 5xx,
// never leak as a 200 or a misleading 4xx).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageFault
}

// DetailOf extracts the human-readable detail, falling back to err.Error().
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Detail != "" {
			return e.Detail
		}
	}
	return err.Error()
}
