// Package apperr carries the error kinds every route reports. Handlers map a
// kind to an HTTP status in one place; anything without a kind is a 500.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
)

type Error struct {
	Err     error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Unauthenticated() *Error {
	return &Error{Err: ErrUnauthenticated, Message: "Unauthorized"}
}

// NotFound covers both a missing row and a row owned by someone else.
func NotFound(resource string) *Error {
	return &Error{Err: ErrNotFound, Message: resource + " not found"}
}

func Forbidden(message string) *Error {
	return &Error{Err: ErrForbidden, Message: message}
}

func Invalid(message string) *Error {
	return &Error{Err: ErrValidation, Message: message}
}

func ValidationFailed(fields map[string]string) *Error {
	return &Error{Err: ErrValidation, Message: "Validation failed", Fields: fields}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Err: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Public reports whether err carries a message safe to show to clients.
func Public(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e, true
	}
	return nil, false
}
