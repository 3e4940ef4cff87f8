package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// BackoffStrategy selects how retry delays grow between attempts.
type BackoffStrategy string

const (
	// BackoffFixed uses BaseDelay for every retry.
	BackoffFixed BackoffStrategy = "fixed"
	// BackoffLinear scales BaseDelay by the retry number.
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential doubles the delay with every retry.
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the initial attempt.
	MaxAttempts int
	// Strategy selects the backoff schedule.
	Strategy BackoffStrategy
	// BaseDelay is the schedule's base delay.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay before jitter is applied.
	MaxDelay time.Duration
	// Jitter scales each delay by a uniform random factor in [0.5, 1.0)
	// to avoid synchronized retry storms.
	Jitter bool
	// RetryIf determines if an error should be retried. Nil retries all
	// errors except context cancellation.
	RetryIf func(error) bool
	// OnRetry is called before each retry with the upcoming attempt number
	// (1-based), the error being retried, and the computed delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Strategy:    BackoffExponential,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
		RetryIf:     DefaultRetryIf,
	}
}

// DefaultRetryIf retries all errors except context cancellation.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// RetryPolicy re-invokes a unit of work on failure according to a backoff
// schedule. The initial attempt is attempt 0; up to MaxAttempts retries
// follow. A policy holds no mutable state and is safe to share.
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a retry policy, filling in defaults.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts < 0 {
		config.MaxAttempts = 0
	}
	if config.Strategy == "" {
		config.Strategy = BackoffExponential
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	return &RetryPolicy{config: config}
}

// Execute runs fn, retrying on failure until it succeeds, the retry
// predicate declines, attempts run out, or the context ends. When attempts
// run out it returns a *RetryExhaustedError wrapping the last error.
func (p *RetryPolicy) Execute(ctx context.Context, fn UnitOfWork) error {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if p.config.RetryIf != nil && !p.config.RetryIf(err) {
			return err
		}

		if attempt == p.config.MaxAttempts {
			return &RetryExhaustedError{Attempts: attempt + 1, Cause: err}
		}

		delay := p.delay(attempt + 1)
		if p.config.OnRetry != nil {
			p.config.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ExecuteRetry runs a function that returns a value under a retry policy.
func ExecuteRetry[T any](ctx context.Context, p *RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	return ExecuteWithResult(ctx, p, fn)
}

// delay computes the backoff for the given retry number (1-based).
func (p *RetryPolicy) delay(retry int) time.Duration {
	var d time.Duration
	switch p.config.Strategy {
	case BackoffFixed:
		d = p.config.BaseDelay
	case BackoffLinear:
		d = p.config.BaseDelay * time.Duration(retry)
	default:
		d = p.config.BaseDelay << (retry - 1)
		if d <= 0 {
			// shift overflow
			d = p.config.MaxDelay
		}
	}

	if d > p.config.MaxDelay {
		d = p.config.MaxDelay
	}

	if p.config.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()/2))
	}
	return d
}
