package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

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

// BatchError reports the items of a batch write that could not be
// persisted even after falling back to individual writes.
type BatchError struct {
	Failed map[string]error // keyed by record ID
}

func NewBatchError() *BatchError {
	return &BatchError{Failed: make(map[string]error)}
}

func (err BatchError) Error() string {
	return fmt.Sprintf("%d item(s) failed to persist", len(err.Failed))
}

func (err BatchError) Empty() bool { return len(err.Failed) == 0 }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
