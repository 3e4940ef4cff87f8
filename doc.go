// Package resilience provides patterns for building fault-tolerant systems.
//
// This package includes:
//   - CircuitBreaker: fails fast when a dependency is unhealthy, with a
//     sliding window of outcomes and fallback support
//   - RetryPolicy: retries failed operations with fixed, linear, or
//     exponential backoff and optional jitter
//   - Bulkhead: bounds concurrent executions with a FIFO wait queue
//   - RateLimiter: token-bucket or sliding-window admission control
//   - MetricsCollector: windowed call statistics with percentiles
//
// Every primitive implements Executor, so they compose by nesting:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("http"))
//	rp := resilience.NewRetryPolicy(resilience.DefaultRetryConfig())
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "http", MaxConcurrent: 10})
//
//	err := resilience.Chain(cb, rp, bh).Execute(ctx, func(ctx context.Context) error {
//	    return callUpstream(ctx)
//	})
//
// Call sites that protect the same logical dependency share state by looking
// the component up by name in a CircuitBreakerRegistry or MetricsRegistry,
// or by materializing a whole RegistrySet from a policy file (see the config
// package).
package resilience
