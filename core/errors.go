package core

import "github.com/pkg/errors"

// FieldError pins a validation failure to one struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a request-level failure with optional per-field detail.
// The HTTP boundary renders Fields as a field→message object when present,
// falling back to the wrapped error's message.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown marks an error fatal enough that the server should stop serving.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown checks the cause chain for a shutdown error.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
