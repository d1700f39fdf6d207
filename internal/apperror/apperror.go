// Package apperror defines the typed application errors shared by the
// service, workspace and HTTP layers.
//
// Every error carries a sentinel (checked with errors.Is) and a message that
// is safe to show to a client. Internal details such as host paths belong in
// logs, never in Message.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrPathEscape = errors.New("path escapes workspace")
)

type AppError struct {
	Err     error  // sentinel
	Message string // human-readable, client-safe
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// PathEscape reports a file name that would resolve outside its owning root.
// The offending name is kept in Field; the message never contains the root.
func PathEscape(name string) *AppError {
	return &AppError{
		Err:     ErrPathEscape,
		Message: fmt.Sprintf("file name %q is not allowed", name),
		Field:   "filename",
	}
}
