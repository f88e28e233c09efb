// Package apperr defines the error kinds services return and routers translate to HTTP.
package apperr

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
	ErrGone         = errors.New("gone")
)

// Error is a client-safe error: Message and Meta may be returned to callers verbatim.
type Error struct {
	Kind    error
	Message string
	Meta    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// WithMeta attaches a key to the error's metadata and returns the same error.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newError(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(ErrConflict, format, args...)
}

func InvalidInput(format string, args ...any) *Error {
	return newError(ErrInvalidInput, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return newError(ErrInvalidState, format, args...)
}

func Gone(format string, args ...any) *Error {
	return newError(ErrGone, format, args...)
}

// FromDB converts gorm errors into error kinds. Other errors are wrapped with op and
// stay opaque to clients.
func FromDB(err error, resource string, id any, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("%s with id %v not found", resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Conflict("%s already exists", resource)
	default:
		return fmt.Errorf("failed to %s %s: %w", op, resource, err)
	}
}
