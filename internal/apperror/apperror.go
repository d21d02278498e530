// Package apperror defines the error categories shared by every layer.
// Handlers translate them to HTTP status codes; services and repositories
// only ever return them.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication failed")
	ErrNotFound       = errors.New("not found")
	ErrConversion     = errors.New("conversion failed")
	ErrDataLayer      = errors.New("data layer error")
)

type AppError struct {
	Err     error  // category sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error

	// InputFault marks a conversion failure caused by the submitted SVG
	// rather than by the engine itself.
	InputFault bool

	cause error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes both the category sentinel and the underlying cause, so
// errors.Is matches either one.
func (e *AppError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// AuthenticationFailed is returned for a disallowed origin or a bad request
// signature. HTTP handlers map this to 403 Forbidden.
func AuthenticationFailed(message string) *AppError {
	return &AppError{
		Err:     ErrAuthentication,
		Message: message,
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ConversionFailed wraps an engine failure. inputFault decides between a
// client error (malformed SVG) and a server error (engine down, timeout).
func ConversionFailed(message string, inputFault bool, cause error) *AppError {
	return &AppError{
		Err:        ErrConversion,
		Message:    message,
		InputFault: inputFault,
		cause:      cause,
	}
}

// DataLayer wraps a storage failure. The message returned to clients is
// generic; the cause is kept for server-side logs only.
func DataLayer(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrDataLayer,
		Message: op,
		cause:   cause,
	}
}
