// Package resilience wraps outbound network calls in a retry envelope:
// a per-attempt timeout, exponential backoff between attempts, and a
// classifier that separates transient failures from terminal ones.
package resilience

import (
	"math"
	"time"

	"github.com/nomadai/concierge/internal/config"
)

// Dependency names used for retry budgets, metrics, and error messages.
const (
	DependencyLLM   = "reasoning_model"
	DependencySTT   = "speech_to_text"
	DependencyTTS   = "speech_synthesis"
	DependencyTools = "tool_outbound"
)

// Policy is the retry budget for one external dependency.
type Policy struct {
	Name        string
	MaxAttempts int
	Timeout     time.Duration // Per attempt; zero disables
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultPolicy returns a conservative budget for short calls.
func DefaultPolicy(name string) Policy {
	return Policy{
		Name:        name,
		MaxAttempts: 3,
		Timeout:     10 * time.Second,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    8 * time.Second,
	}
}

// PolicyFromConfig converts a configured budget into a Policy.
func PolicyFromConfig(name string, rc config.RetryConfig) Policy {
	return Policy{
		Name:        name,
		MaxAttempts: rc.GetMaxAttempts(),
		Timeout:     rc.GetTimeout(),
		BaseDelay:   rc.GetBaseDelay(),
		Multiplier:  rc.GetMultiplier(),
		MaxDelay:    rc.GetMaxDelay(),
	}
}

// Backoff returns the wait after the given zero-based attempt:
// BaseDelay * Multiplier^attempt, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	wait := time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(attempt)))

	if p.MaxDelay > 0 && (wait > p.MaxDelay || wait < 0) {
		wait = p.MaxDelay
	}
	return wait
}

// Budget is the longest a call can take when every attempt times out:
// each attempt's timeout plus the backoff between attempts.
func (p Policy) Budget() time.Duration {
	n := p.attempts()
	total := time.Duration(n) * p.Timeout
	for i := 0; i < n-1; i++ {
		total += p.Backoff(i)
	}
	return total
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
