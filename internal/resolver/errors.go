package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError indicates no element or node matched a reference.
type NotFoundError struct {
	Candidate string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no element or node matches '%s'", e.Candidate)
}

// AmbiguousError indicates several elements or nodes matched a reference.
type AmbiguousError struct {
	Candidate string
	Matches   []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous reference '%s' matches %d ids: %s",
		e.Candidate, len(e.Matches), strings.Join(shortened(e.Matches, 5), ", "))
}

func shortened(ids []string, max int) []string {
	out := make([]string, 0, max+1)
	for i, id := range ids {
		if i == max {
			out = append(out, fmt.Sprintf("...and %d more", len(ids)-max))
			break
		}
		out = append(out, id)
	}
	return out
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous references.
// Lists all matching IDs (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("Error: ambiguous reference '%s' matches %d ids:\n", err.Candidate, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}

	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nUse a longer prefix or the full ID."
	return msg
}

// IsNotFoundError checks if an error is (or wraps) a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is (or wraps) an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}
