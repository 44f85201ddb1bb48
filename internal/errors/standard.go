// Package errors provides standardized error messaging for GridVerify.
// Transformation passes never terminate the process themselves; they
// return a categorised error and the top-level driver decides the exit
// code.
package errors

import (
	"errors"
	"fmt"
)

// Category represents different categories of errors. The category
// determines both the recovery policy and the process exit code.
type Category string

const (
	// CategoryInput covers malformed or unsupported input shapes
	// (multi-dimensional map on an assignment LHS, an unhandled
	// command form). Fatal, no recovery.
	CategoryInput Category = "INPUT"

	// CategoryWellFormedness covers kernel/barrier convention
	// violations. Accumulated across the whole program, then fatal
	// if any were found.
	CategoryWellFormedness Category = "WELL_FORMEDNESS"

	// CategoryCandidate covers user-supplied or synthesized
	// candidate invariants that fail validation. Recovered locally
	// by discarding the candidate.
	CategoryCandidate Category = "CANDIDATE"

	// CategoryInternal covers violated pass invariants; these
	// indicate a bug in the pipeline, not in the input.
	CategoryInternal Category = "INTERNAL"
)

// Exit codes reported by the driver, one per failure class.
const (
	ExitSuccess        = 0
	ExitInputError     = 1
	ExitWellFormedness = 2
	ExitInternalError  = 3
)

// ExitCode returns the process exit code for the category.
func (c Category) ExitCode() int {
	switch c {
	case CategoryInput:
		return ExitInputError
	case CategoryWellFormedness:
		return ExitWellFormedness
	case CategoryInternal:
		return ExitInternalError
	default:
		return ExitInternalError
	}
}

// StandardError provides a consistent error format across all passes.
type StandardError struct {
	Category Category
	Code     string
	Message  string
	Context  map[string]interface{}
}

// Error implements the error interface.
func (e *StandardError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// New creates a new standardized error.
func New(category Category, code, message string, context map[string]interface{}) *StandardError {
	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
	}
}

// Inputf creates an input-malformed error with a formatted message.
func Inputf(code, format string, args ...interface{}) *StandardError {
	return New(CategoryInput, code, fmt.Sprintf(format, args...), nil)
}

// Internalf creates an internal pipeline-invariant error with a
// formatted message.
func Internalf(code, format string, args ...interface{}) *StandardError {
	return New(CategoryInternal, code, fmt.Sprintf(format, args...), nil)
}

// WellFormedness creates the terminal error reported when the
// well-formedness checker accumulated one or more violations.
func WellFormedness(count int) *StandardError {
	return New(CategoryWellFormedness, "KERNEL_NOT_WELL_FORMED",
		fmt.Sprintf("%d well-formedness error(s); verification aborted", count),
		map[string]interface{}{"errors": count})
}

// CategoryOf extracts the category from an error chain, defaulting to
// CategoryInternal for errors that did not originate in this package.
func CategoryOf(err error) Category {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Category
	}
	return CategoryInternal
}
