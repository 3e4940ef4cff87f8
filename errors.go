package resilience

import (
	"fmt"
	"time"

	"github.com/kbukum/resilience/errors"
)

// CircuitBreakerError is returned when a breaker rejects a call without
// executing it.
type CircuitBreakerError struct {
	// Name identifies the breaker that rejected the call.
	Name string
	// State is the breaker state at rejection time.
	State State
}

// Error returns the string representation of the error.
func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker %q is %s: call rejected", e.Name, e.State)
}

// ErrorCode returns the machine-readable code.
func (e *CircuitBreakerError) ErrorCode() errors.ErrorCode { return errors.ErrCodeCircuitOpen }

// TimeoutError is returned when a protected call exceeds its per-call
// deadline. The underlying work is not stopped; it may still complete in the
// background.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call %q exceeded timeout of %s", e.Name, e.Timeout)
}

// ErrorCode returns the machine-readable code.
func (e *TimeoutError) ErrorCode() errors.ErrorCode { return errors.ErrCodeTimeout }

// BulkheadReason distinguishes the two ways a bulkhead can reject a caller.
type BulkheadReason string

const (
	// BulkheadQueueFull means no slot was free and the wait queue was at capacity.
	BulkheadQueueFull BulkheadReason = "queue-full"
	// BulkheadQueueTimeout means the caller waited in the queue past its deadline.
	BulkheadQueueTimeout BulkheadReason = "queue-timeout"
)

// BulkheadError is returned when a bulkhead rejects a caller.
type BulkheadError struct {
	Name   string
	Reason BulkheadReason
}

func (e *BulkheadError) Error() string {
	return fmt.Sprintf("bulkhead %q rejected call: %s", e.Name, e.Reason)
}

// ErrorCode returns the machine-readable code.
func (e *BulkheadError) ErrorCode() errors.ErrorCode {
	if e.Reason == BulkheadQueueTimeout {
		return errors.ErrCodeBulkheadTimeout
	}
	return errors.ErrCodeBulkheadFull
}

// RateLimitError is returned when a rate limiter denies admission. RetryAfter
// is an estimate of how long the caller should wait before trying again.
type RateLimitError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limiter %q denied call: retry after %s", e.Name, e.RetryAfter)
}

// ErrorCode returns the machine-readable code.
func (e *RateLimitError) ErrorCode() errors.ErrorCode { return errors.ErrCodeRateLimited }

// RetryExhaustedError is returned when a retry policy runs out of attempts.
// It wraps the error from the final attempt.
type RetryExhaustedError struct {
	// Attempts is the total number of invocations, including the initial try.
	Attempts int
	// Cause is the error from the last attempt.
	Cause error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Cause)
}

// Unwrap returns the error from the last attempt.
func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// ErrorCode returns the machine-readable code.
func (e *RetryExhaustedError) ErrorCode() errors.ErrorCode { return errors.ErrCodeRetryExhausted }
