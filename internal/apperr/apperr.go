package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP surface.
type Kind int

const (
	Validation Kind = iota
	Unauthorized
	Forbidden
	NotFound
	Expired
	Conflict
	PolicyRejected
	Internal
)

// Error carries a kind plus a short human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap attaches a cause to an error of the given kind.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Validationf builds a validation error from a format string.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: Validation, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from an error chain, defaulting to Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// HTTPStatus maps an error to its HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Expired:
		return http.StatusGone
	case Conflict:
		return http.StatusConflict
	case PolicyRejected:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
