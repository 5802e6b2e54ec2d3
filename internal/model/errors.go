package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by the result store for unknown identifiers
var ErrNotFound = errors.New("not found")

// Validation error codes
const (
	CodeEmptyFile       = "empty_file"
	CodeTooLarge        = "too_large"
	CodeUnsupportedType = "unsupported_type"
	CodeMissingFile     = "missing_file"
	CodeInvalidKind     = "invalid_kind"
)

// ValidationError is bad input. It is surfaced as 4xx and never retried.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with a formatted message
func NewValidationError(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AnalysisError means the stored media could not be decoded or analyzed.
// Re-uploading is the only recovery path.
type AnalysisError struct {
	Kind MediaKind
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// StorageError means the media store or result store failed
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
