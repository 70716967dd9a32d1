// Package errors provides structured error types for trackport.
// Every error carries a category and a code so callers can decide between
// aborting a run and skipping a single record.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategoryProjection ErrorCategory = "PROJECTION"
	ErrCategorySink       ErrorCategory = "SINK"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidCriteria = "INVALID_CRITERIA"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Store codes
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeDocumentNotFound = "DOCUMENT_NOT_FOUND"
	CodeCorruptDocument  = "CORRUPT_DOCUMENT"

	// Projection codes
	CodeMalformedFacet     = "MALFORMED_FACET"
	CodeMalformedTimestamp = "MALFORMED_TIMESTAMP"

	// Sink codes
	CodeSinkRejected = "SINK_REJECTED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Sentinels for errors.Is comparisons. Matching is by category and code only.
var (
	ErrInvalidCriteria    = New(ErrCategoryValidation, CodeInvalidCriteria, "invalid filter criteria")
	ErrStoreUnavailable   = New(ErrCategoryStore, CodeStoreUnavailable, "index store unavailable")
	ErrMalformedFacet     = New(ErrCategoryProjection, CodeMalformedFacet, "malformed facet value")
	ErrMalformedTimestamp = New(ErrCategoryProjection, CodeMalformedTimestamp, "malformed timestamp")
	ErrSinkRejected       = New(ErrCategorySink, CodeSinkRejected, "sink rejected insert")
)

// Error is the structured error type used throughout the system.
type Error struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new Error.
func New(category ErrorCategory, code, message string) *Error {
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *Error {
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an *Error.
func GetCategory(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an *Error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRecordLevel reports whether err only concerns a single record or row
// (projection or sink failures) rather than the whole source.
func IsRecordLevel(err error) bool {
	switch GetCategory(err) {
	case ErrCategoryProjection, ErrCategorySink:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *Error {
	return New(ErrCategoryValidation, code, message)
}

func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCategoryConfig, CodeInvalidConfig, message, cause)
}

func NewStoreError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewProjectionError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryProjection, code, message, cause)
}

func NewSinkError(message string, cause error) *Error {
	return Wrap(ErrCategorySink, CodeSinkRejected, message, cause)
}

func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
