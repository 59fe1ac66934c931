package errors

import (
	"errors"
	"fmt"
)

// ConciergeError is the base error type for all application errors
type ConciergeError struct {
	Message  string        // Human-readable error message
	Kind     Kind          // Taxonomy tag used by the request-handling layer
	Context  *ErrorContext // Rich error context
	Cause    error         // Underlying error (for wrapping)
	ExitCode ExitCode      // Exit code for CLI
}

// Error returns the error message with cause if present
func (e *ConciergeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *ConciergeError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns a user-friendly error message with context
func (e *ConciergeError) GetUserMessage() string {
	msg := fmt.Sprintf("ERROR: %s", e.Message)

	if e.Cause != nil {
		msg += fmt.Sprintf("\nCause: %v", e.Cause)
	}

	if e.Context != nil {
		msg += e.Context.Format()
	}

	return msg
}

// NewError creates a new ConciergeError with the given message and exit code
func NewError(message string, kind Kind, exitCode ExitCode) *ConciergeError {
	return &ConciergeError{
		Message:  message,
		Kind:     kind,
		ExitCode: exitCode,
	}
}

// WrapError wraps an existing error with additional context
func WrapError(cause error, message string, kind Kind, exitCode ExitCode) *ConciergeError {
	return &ConciergeError{
		Message:  message,
		Kind:     kind,
		Cause:    cause,
		ExitCode: exitCode,
	}
}

// AsConciergeError finds the first ConciergeError in err's chain.
// Typed wrappers embed *ConciergeError, so they are matched through the
// conciergeErr interface rather than a direct type assertion.
func AsConciergeError(err error) (*ConciergeError, bool) {
	var ce conciergeErr
	if errors.As(err, &ce) {
		return ce.base(), true
	}
	return nil, false
}

type conciergeErr interface {
	error
	base() *ConciergeError
}

func (e *ConciergeError) base() *ConciergeError { return e }
