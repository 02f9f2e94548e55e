// Package apierr classifies failures so the request boundary can map them to
// HTTP statuses without inspecting dependency-specific error types.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind partitions errors by who is at fault and whether state was committed.
type Kind int

const (
	// KindClient: malformed request; rejected before any side effect.
	KindClient Kind = iota
	// KindDependency: object storage, document store, broker or completion
	// endpoint failed; no partial state committed.
	KindDependency
	// KindValidation: a completion reply failed schema validation. Treated
	// like a dependency failure.
	KindValidation
	// KindNotFound: unknown cycle id or missing image. Distinct from the
	// valid "pending" state of task-list reads.
	KindNotFound
)

// Error carries a kind alongside the wrapped cause.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }

// New wraps err with the given kind. A nil err returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: err}
}

func Client(format string, args ...any) error {
	return New(KindClient, fmt.Errorf(format, args...))
}

func Dependency(err error, msg string) error {
	if err == nil {
		return nil
	}
	return New(KindDependency, fmt.Errorf("%s: %w", msg, err))
}

func Validation(format string, args ...any) error {
	return New(KindValidation, fmt.Errorf(format, args...))
}

func NotFound(format string, args ...any) error {
	return New(KindNotFound, fmt.Errorf(format, args...))
}

// KindOf extracts the kind of err; unclassified errors default to
// KindDependency since they come from collaborators, not callers.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindDependency
}

// HTTPStatus maps an error to the status code reported at the boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindClient:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
