package resilience

import "context"

// UnitOfWork is the function shape every primitive protects. The context is
// the caller's; primitives pass it through unchanged.
type UnitOfWork func(ctx context.Context) error

// Executor is the contract shared by all primitives: run a unit of work
// under this policy, returning the work's error or a typed rejection.
// CircuitBreaker, RetryPolicy, Bulkhead, and RateLimiter all implement it,
// which is what lets them nest without knowing about each other.
type Executor interface {
	Execute(ctx context.Context, fn UnitOfWork) error
}

// Chain composes executors so that the first wraps the second, and so on:
// Chain(cb, retry, bh).Execute(ctx, fn) runs fn inside the bulkhead, inside
// the retry policy, inside the breaker.
func Chain(executors ...Executor) Executor {
	return chain(executors)
}

type chain []Executor

func (c chain) Execute(ctx context.Context, fn UnitOfWork) error {
	wrapped := fn
	for i := len(c) - 1; i >= 0; i-- {
		e := c[i]
		inner := wrapped
		wrapped = func(ctx context.Context) error {
			return e.Execute(ctx, inner)
		}
	}
	return wrapped(ctx)
}

// ExecuteWithResult runs a function that returns a value under an executor.
func ExecuteWithResult[T any](ctx context.Context, e Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Execute(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}
