package resilience

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/logging"
)

// Sleeper waits for d or until ctx is done. Tests substitute a fake
// that records the requested delays and returns immediately.
type Sleeper func(ctx context.Context, d time.Duration) error

// Observer receives one call per attempt with its latency and outcome.
type Observer func(dependency string, attempt int, latency time.Duration, err error)

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retrier runs operations under a Policy.
type Retrier struct {
	policy   Policy
	classify Classifier
	sleep    Sleeper
	now      func() time.Time
	observe  Observer
	logger   *logging.Logger
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithClassifier replaces IsRetryable.
func WithClassifier(c Classifier) Option {
	return func(r *Retrier) { r.classify = c }
}

// WithSleeper replaces the real timer, typically with a fake clock.
func WithSleeper(s Sleeper) Option {
	return func(r *Retrier) { r.sleep = s }
}

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(r *Retrier) { r.now = now }
}

// WithObserver registers an attempt observer, usually the metrics recorder.
func WithObserver(o Observer) Option {
	return func(r *Retrier) { r.observe = o }
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(r *Retrier) { r.logger = l }
}

// NewRetrier creates a Retrier for the given policy.
func NewRetrier(policy Policy, opts ...Option) *Retrier {
	r := &Retrier{
		policy:   policy,
		classify: IsRetryable,
		sleep:    sleepContext,
		now:      time.Now,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the budget the retrier enforces.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do runs op until it succeeds, fails terminally, or the attempt budget is
// spent. Each attempt gets its own timeout derived from ctx. Terminal
// failures are returned unchanged; exhaustion returns a DependencyError
// wrapping the last failure. Cancellation of ctx stops immediately.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	maxAttempts := r.policy.attempts()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if r.policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		}

		start := r.now()
		err := op(attemptCtx)
		attemptTimedOut := attemptCtx.Err() == context.DeadlineExceeded
		cancel()

		if r.observe != nil {
			r.observe(r.policy.Name, attempt, r.now().Sub(start), err)
		}

		if err == nil {
			return nil
		}

		// The caller gave up; do not dress that up as a dependency failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attemptTimedOut && !errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(context.DeadlineExceeded, err)
		}
		lastErr = err

		if !r.classify(err) {
			r.logger.Debug("terminal failure",
				logging.String("dependency", r.policy.Name),
				logging.Int("attempt", attempt+1),
				logging.Error(err))
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			return err
		}

		if attempt == maxAttempts-1 {
			break
		}

		wait := r.policy.Backoff(attempt)
		r.logger.Warn("retrying after transient failure",
			logging.String("dependency", r.policy.Name),
			logging.Int("attempt", attempt+1),
			logging.Int("max_attempts", maxAttempts),
			logging.Duration("backoff", wait),
			logging.Error(err))

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}

	return apperrors.NewDependencyError(r.policy.Name, maxAttempts, lastErr)
}

// Call is the value-returning form of Retrier.Do.
func Call[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
