package resilience

import (
	"sync"

	"github.com/kbukum/resilience/config"
	"github.com/kbukum/resilience/logger"
)

// RegistrySet bundles the process-wide caches for an application: breaker
// and metrics registries plus named bulkheads, rate limiters, and retry
// policies. Build one at start-up (optionally from a loaded policy document)
// and inject it wherever lookup by name is needed.
type RegistrySet struct {
	Breakers *CircuitBreakerRegistry
	Metrics  *MetricsRegistry

	mu        sync.Mutex
	bulkheads map[string]*Bulkhead
	limiters  map[string]RateLimiter
	retries   map[string]*RetryPolicy
}

// NewRegistrySet creates an empty registry set.
func NewRegistrySet() *RegistrySet {
	return &RegistrySet{
		Breakers:  NewCircuitBreakerRegistry(),
		Metrics:   NewMetricsRegistry(),
		bulkheads: make(map[string]*Bulkhead),
		limiters:  make(map[string]RateLimiter),
		retries:   make(map[string]*RetryPolicy),
	}
}

// NewRegistrySetFromPolicies materializes every policy declared in a loaded
// configuration document into a live component.
func NewRegistrySetFromPolicies(p *config.Policies) *RegistrySet {
	rs := NewRegistrySet()
	log := logger.Get("resilience.policies")

	for name, b := range p.Breakers {
		rs.Breakers.GetOrCreate(name, BreakerConfigFromPolicy(name, b))
	}
	for name, r := range p.Retries {
		rs.retries[name] = NewRetryPolicy(RetryConfigFromPolicy(r))
	}
	for name, b := range p.Bulkheads {
		rs.bulkheads[name] = NewBulkhead(BulkheadConfigFromPolicy(name, b))
	}
	for name, l := range p.Limiters {
		rs.limiters[name] = NewRateLimiter(LimiterConfigFromPolicy(name, l))
	}

	log.Info("policies materialized", logger.Fields(
		"breakers", len(p.Breakers),
		"retries", len(p.Retries),
		"bulkheads", len(p.Bulkheads),
		"limiters", len(p.Limiters),
	))
	return rs
}

// Bulkhead returns the named bulkhead, if declared.
func (rs *RegistrySet) Bulkhead(name string) (*Bulkhead, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	b, ok := rs.bulkheads[name]
	return b, ok
}

// Limiter returns the named rate limiter, if declared.
func (rs *RegistrySet) Limiter(name string) (RateLimiter, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	l, ok := rs.limiters[name]
	return l, ok
}

// Retry returns the named retry policy, if declared.
func (rs *RegistrySet) Retry(name string) (*RetryPolicy, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.retries[name]
	return r, ok
}

// BreakerConfigFromPolicy converts a declared breaker policy.
func BreakerConfigFromPolicy(name string, p config.Breaker) CircuitBreakerConfig {
	window := WindowConfig{Kind: WindowKind(p.WindowKind), Size: p.WindowSize, Span: p.WindowSpan}
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: p.FailureThreshold,
		SuccessThreshold: p.SuccessThreshold,
		CallTimeout:      p.CallTimeout,
		ResetTimeout:     p.ResetTimeout,
		Window:           window,
		MetricsWindow:    p.MetricsWindow,
	}
}

// RetryConfigFromPolicy converts a declared retry policy.
func RetryConfigFromPolicy(p config.Retry) RetryConfig {
	return RetryConfig{
		MaxAttempts: p.MaxAttempts,
		Strategy:    BackoffStrategy(p.Strategy),
		BaseDelay:   p.BaseDelay,
		MaxDelay:    p.MaxDelay,
		Jitter:      p.Jitter,
		RetryIf:     DefaultRetryIf,
	}
}

// BulkheadConfigFromPolicy converts a declared bulkhead policy.
func BulkheadConfigFromPolicy(name string, p config.Bulkhead) BulkheadConfig {
	return BulkheadConfig{
		Name:          name,
		MaxConcurrent: p.MaxConcurrent,
		MaxQueue:      p.MaxQueue,
		QueueTimeout:  p.QueueTimeout,
	}
}

// LimiterConfigFromPolicy converts a declared limiter policy.
func LimiterConfigFromPolicy(name string, p config.Limiter) RateLimiterConfig {
	return RateLimiterConfig{
		Name:       name,
		Strategy:   RateLimiterStrategy(p.Strategy),
		Max:        p.Max,
		Window:     p.Window,
		RefillRate: p.RefillRate,
	}
}
