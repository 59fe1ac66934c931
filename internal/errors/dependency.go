package errors

import (
	"fmt"
	"time"
)

// DependencyError is raised when an external service stays unavailable
// after the retry budget for it is spent.
type DependencyError struct {
	*ConciergeError
	Dependency string
	Attempts   int
}

// NewDependencyError creates a dependency_unavailable error for the named service.
func NewDependencyError(dependency string, attempts int, cause error) *DependencyError {
	return &DependencyError{
		ConciergeError: &ConciergeError{
			Message: fmt.Sprintf("%s is unavailable", dependency),
			Kind:    KindDependencyUnavailable,
			Cause:   cause,
			Context: &ErrorContext{
				Operation: "Calling " + dependency,
				Component: "Resilience",
				Details: map[string]interface{}{
					"dependency": dependency,
				},
				Suggestions: []string{
					"Check your internet connection",
					"Verify the service endpoint and API key",
					"Try again later (service may be unavailable)",
				},
				Recoverable: true,
				Attempts:    attempts,
			},
			ExitCode: ExitDependencyError,
		},
		Dependency: dependency,
		Attempts:   attempts,
	}
}

// ResponseError is raised when a dependency answers with a payload that cannot be used.
type ResponseError struct {
	*ConciergeError
}

// NewResponseError creates an error for an unparseable dependency response.
func NewResponseError(dependency, reason string) *ResponseError {
	return &ResponseError{
		ConciergeError: &ConciergeError{
			Message: fmt.Sprintf("Invalid response from %s", dependency),
			Kind:    KindDependencyUnavailable,
			Context: &ErrorContext{
				Operation: "Parsing response",
				Component: dependency,
				Details: map[string]interface{}{
					"reason": reason,
				},
				Suggestions: []string{
					"Check if the model name is correct",
					"Report this issue if it persists",
				},
			},
			ExitCode: ExitDependencyError,
		},
	}
}

// RateLimitedError is returned when admission control rejects a turn.
type RateLimitedError struct {
	*ConciergeError
	Scope      string
	RetryAfter time.Duration
}

// NewRateLimitedError creates a rate_limited error. Scope is "session" or "global".
func NewRateLimitedError(scope string, retryAfter time.Duration) *RateLimitedError {
	return &RateLimitedError{
		ConciergeError: &ConciergeError{
			Message: fmt.Sprintf("Too many requests (%s limit)", scope),
			Kind:    KindRateLimited,
			Context: &ErrorContext{
				Operation: "Admitting request",
				Component: "Rate Limiter",
				Details: map[string]interface{}{
					"scope":       scope,
					"retry_after": retryAfter.String(),
				},
				Suggestions: []string{
					fmt.Sprintf("Retry after %s", retryAfter.Round(time.Second)),
				},
				Recoverable: true,
			},
			ExitCode: ExitRateLimitedError,
		},
		Scope:      scope,
		RetryAfter: retryAfter,
	}
}

// InvalidRequestError is returned for malformed or oversized input.
type InvalidRequestError struct {
	*ConciergeError
	Field string
}

// NewInvalidRequestError creates an invalid_request error for the given field.
func NewInvalidRequestError(field, reason string) *InvalidRequestError {
	return &InvalidRequestError{
		ConciergeError: &ConciergeError{
			Message: reason,
			Kind:    KindInvalidRequest,
			Context: &ErrorContext{
				Operation: "Validating request",
				Component: "Agent",
				Details: map[string]interface{}{
					"field": field,
				},
			},
			ExitCode: ExitValidationError,
		},
		Field: field,
	}
}
