// Package apperr defines the error kinds surfaced by the services and their
// mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrAuthorization  = errors.New("authorization error")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
)

var kinds = []struct {
	err    error
	status int
}{
	{ErrValidation, http.StatusBadRequest},
	{ErrAuthentication, http.StatusUnauthorized},
	{ErrAuthorization, http.StatusForbidden},
	{ErrNotFound, http.StatusNotFound},
	{ErrConflict, http.StatusConflict},
}

// Validation returns an ErrValidation carrying a client-facing message.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// Authentication returns an ErrAuthentication carrying a client-facing message.
func Authentication(format string, args ...any) error {
	return wrap(ErrAuthentication, format, args...)
}

// Authorization returns an ErrAuthorization carrying a client-facing message.
func Authorization(format string, args ...any) error {
	return wrap(ErrAuthorization, format, args...)
}

// NotFound returns an ErrNotFound carrying a client-facing message.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Conflict returns an ErrConflict carrying a client-facing message.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.kind.Error() + ": " + e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// HTTPStatus maps err onto a response status. Errors of no known kind are 500.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Message returns the text that is safe to show a client. Unknown errors
// collapse to a generic message; the caller is expected to log the original.
func Message(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return "internal error"
}

// IsKnown reports whether err belongs to one of the taxonomy kinds.
func IsKnown(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError
}
