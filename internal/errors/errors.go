// Package errors consolidates error definitions for vitalstore.
//
// It provides:
// - Stable error codes surfaced to the external boundary
// - Sentinel errors for all error conditions
// - Error category checking functions
// - ErrorToCode mapping
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Boundary error codes - returned to the external caller
// ============================================================================

const (
	CodeUnknown        int32 = 1
	CodeInvalidRequest int32 = 2
	CodeNotFound       int32 = 3
	CodeAlreadyExists  int32 = 4
	CodeSchemaInvalid  int32 = 5
	CodeSchemaMismatch int32 = 6
	CodeMissingFilter  int32 = 7
	CodeInternal       int32 = 8
)

// CodeName returns a human-readable name for an error code.
func CodeName(code int32) string {
	switch code {
	case CodeUnknown:
		return "Unknown"
	case CodeInvalidRequest:
		return "InvalidRequest"
	case CodeNotFound:
		return "NotFound"
	case CodeAlreadyExists:
		return "AlreadyExists"
	case CodeSchemaInvalid:
		return "SchemaInvalid"
	case CodeSchemaMismatch:
		return "SchemaMismatch"
	case CodeMissingFilter:
		return "MissingRequiredFilter"
	case CodeInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Code(%d)", code)
	}
}

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Registration errors
	ErrSchemaInvalid   = errors.New("schema is not a valid JSON Schema")
	ErrDuplicateSeries = errors.New("series already registered")

	// Ingestion errors
	ErrUnknownSeries  = errors.New("unknown series")
	ErrSchemaMismatch = errors.New("value does not match series schema")
	ErrEmptySession   = errors.New("session has no owner")

	// Query errors
	ErrMissingRequiredFilter = errors.New("user_id filter is required")
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrInvalidTimeValue      = errors.New("invalid time value")

	// Not found errors
	ErrNotFound        = errors.New("not found")
	ErrSessionNotFound = errors.New("session not found")

	// Store errors
	ErrStoreClosed = errors.New("store is closed")
	ErrDatabase    = errors.New("database error")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnknownSeries) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsValidation returns true if err rejects caller input. Validation failures
// are permanent: the same request fails the same way every time, so nothing
// in this taxonomy is ever retried internally.
func IsValidation(err error) bool {
	return errors.Is(err, ErrSchemaInvalid) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrMissingRequiredFilter) ||
		errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrInvalidTimeValue) ||
		errors.Is(err, ErrEmptySession)
}

// IsConflict returns true if err is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateSeries)
}

// ErrorToCode maps a sentinel error to its boundary code.
func ErrorToCode(err error) int32 {
	switch {
	case err == nil:
		return CodeUnknown
	case Is(err, ErrSchemaInvalid):
		return CodeSchemaInvalid
	case Is(err, ErrSchemaMismatch):
		return CodeSchemaMismatch
	case Is(err, ErrMissingRequiredFilter):
		return CodeMissingFilter
	case IsNotFound(err):
		return CodeNotFound
	case IsConflict(err):
		return CodeAlreadyExists
	case IsValidation(err):
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NewInvalidParameter creates an invalid-parameter error naming the field.
func NewInvalidParameter(field string, value interface{}) error {
	return fmt.Errorf("%s %q: %w", field, fmt.Sprint(value), ErrInvalidParameter)
}

// ============================================================================
// Sample validation failure detail
// ============================================================================

// SampleError reports a schema validation failure for one sample in an
// ingest request. Index is the sample's position in the request payload.
type SampleError struct {
	Index  int
	Series string
	Detail string
	err    error
}

// NewSampleError wraps cause as a SampleError for the sample at index.
func NewSampleError(index int, series, detail string, cause error) *SampleError {
	return &SampleError{Index: index, Series: series, Detail: detail, err: cause}
}

// Error implements the error interface.
func (e *SampleError) Error() string {
	return fmt.Sprintf("sample %d (series %s): %s", e.Index, e.Series, e.Detail)
}

// Unwrap returns the underlying sentinel for errors.Is support.
func (e *SampleError) Unwrap() error {
	return e.err
}
