package errors

// Kind tags an error with its place in the taxonomy.
type Kind string

const (
	// Public kinds cross the HandleTurn boundary.
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindInvalidRequest        Kind = "invalid_request"
	KindRateLimited           Kind = "rate_limited"

	// Internal kinds are absorbed into conversation content or telemetry.
	KindToolFailed    Kind = "tool_failed"
	KindUnknownTool   Kind = "unknown_tool"
	KindLoopExhausted Kind = "loop_exhausted"
	KindConfig        Kind = "config"
	KindInternal      Kind = "internal"
)

// Public reports whether the kind may be returned to an end caller.
func (k Kind) Public() bool {
	switch k {
	case KindDependencyUnavailable, KindInvalidRequest, KindRateLimited:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// KindOf returns the Kind of the first ConciergeError in err's chain,
// or KindInternal for foreign errors. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if ce, ok := AsConciergeError(err); ok && ce.Kind != "" {
		return ce.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
