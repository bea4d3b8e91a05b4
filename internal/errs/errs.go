// Package errs defines the error taxonomy shared by the core operations.
// Callers classify with errors.Is and map to transport codes at the edge.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing device, session or user record.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied marks a requester that is neither owner nor admin.
	ErrAccessDenied = errors.New("access denied")

	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrDownstream marks a store or channel failure surfaced to the caller.
	ErrDownstream = errors.New("downstream failure")
)

// NotFoundf wraps ErrNotFound with a descriptive cause.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// AccessDeniedf wraps ErrAccessDenied with a descriptive cause.
func AccessDeniedf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrAccessDenied}, args...)...)
}

// Validationf wraps ErrValidation with a descriptive cause.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// Downstreamf wraps ErrDownstream with a descriptive cause.
func Downstreamf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrDownstream}, args...)...)
}
