package tools

import (
	"errors"
	"fmt"

	"github.com/dyluth/auditor/internal/resolver"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// NotFoundError and AmbiguousIdError are the resolver's error types, surfaced
// unchanged so callers can match them with errors.As.
type (
	NotFoundError    = resolver.NotFoundError
	AmbiguousIdError = resolver.AmbiguousError
)

// Error kinds reported in structured tool results.
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindAmbiguous  = "ambiguous_id"
	KindRange      = "range"
	KindInternal   = "internal"
)

// ValidationError reports a tool call whose parameters break the tool contract.
type ValidationError struct {
	Tool    string
	Field   string
	Message string
	IDs     []string // Offending identifiers, also named in Message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

func invalid(tool, field, format string, args ...any) *ValidationError {
	return &ValidationError{Tool: tool, Field: field, Message: fmt.Sprintf(format, args...)}
}

// RangeError reports a batch request that starts past the end of a dataset.
type RangeError struct {
	Dataset    blackboard.Dataset
	StartIndex int
	Size       int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("startIndex %d is past the end of %s (size %d)", e.StartIndex, e.Dataset, e.Size)
}

// Kind classifies err for structured reporting.
func Kind(err error) string {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		ambiguous  *AmbiguousIdError
		rangeErr   *RangeError
	)
	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &ambiguous):
		return KindAmbiguous
	case errors.As(err, &notFound), blackboard.IsNotFound(err):
		return KindNotFound
	case errors.As(err, &rangeErr):
		return KindRange
	default:
		return KindInternal
	}
}

// IsValidationError checks if an error is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsRangeError checks if an error is (or wraps) a RangeError.
func IsRangeError(err error) bool {
	var target *RangeError
	return errors.As(err, &target)
}
