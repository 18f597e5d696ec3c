package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers of the pipeline operations.
var (
	// ErrInvalidInput marks malformed or empty request data. No state change.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks an unknown job or image identifier.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation invalid for the job's current state.
	ErrConflict = errors.New("conflict")

	// ErrCapability marks a failure of an external capability (detection,
	// encoding) rather than of the pipeline itself.
	ErrCapability = errors.New("capability failure")
)

// Invalid wraps a message as an ErrInvalidInput.
func Invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// NotFound wraps a resource description as an ErrNotFound.
func NotFound(what, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, what, id)
}
