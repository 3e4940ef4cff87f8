package resilience

import (
	"sync"

	"github.com/kbukum/resilience/logger"
)

// CircuitBreakerRegistry is a process-wide named cache of breakers. Call
// sites that share a logical target share one breaker instance by asking for
// the same name. Own one per application and inject it where lookups are
// needed; the registry is deliberately not package-global state.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	log      *logger.Logger
}

// NewCircuitBreakerRegistry creates an empty registry.
func NewCircuitBreakerRegistry() *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		log:      logger.Get("resilience.breakers"),
	}
}

// GetOrCreate returns the breaker cached under name, creating it from config
// on the first call. On a cache hit the config argument is ignored: the
// first caller's configuration wins.
func (r *CircuitBreakerRegistry) GetOrCreate(name string, config CircuitBreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	config.Name = name
	cb := NewCircuitBreaker(config)
	r.breakers[name] = cb
	r.log.Debug("circuit breaker created", logger.Fields("name", name))
	return cb
}

// Get returns the breaker cached under name, if any.
func (r *CircuitBreakerRegistry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

// Remove drops the named breaker from the cache.
func (r *CircuitBreakerRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, name)
}

// Names returns the cached breaker names.
func (r *CircuitBreakerRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// ResetAll resets every cached breaker to closed. Instances stay cached.
func (r *CircuitBreakerRegistry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cb := range r.breakers {
		cb.Reset()
	}
}

// Clear drops every cached instance. Intended for test isolation.
func (r *CircuitBreakerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

// MetricsRegistry is a process-wide named cache of metrics collectors, with
// the same lifecycle semantics as CircuitBreakerRegistry.
type MetricsRegistry struct {
	mu         sync.Mutex
	collectors map[string]*MetricsCollector
	log        *logger.Logger
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		collectors: make(map[string]*MetricsCollector),
		log:        logger.Get("resilience.metrics"),
	}
}

// GetOrCreate returns the collector cached under name, creating it from
// config on the first call. The first caller's configuration wins.
func (r *MetricsRegistry) GetOrCreate(name string, config MetricsConfig) *MetricsCollector {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.collectors[name]; ok {
		return m
	}

	config.Name = name
	m := NewMetricsCollector(config)
	r.collectors[name] = m
	r.log.Debug("metrics collector created", logger.Fields("name", name))
	return m
}

// Get returns the collector cached under name, if any.
func (r *MetricsRegistry) Get(name string) (*MetricsCollector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.collectors[name]
	return m, ok
}

// Remove drops the named collector from the cache.
func (r *MetricsRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.collectors, name)
}

// ResetAll resets every cached collector. Instances stay cached.
func (r *MetricsRegistry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.collectors {
		m.Reset()
	}
}

// Clear drops every cached instance. Intended for test isolation.
func (r *MetricsRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors = make(map[string]*MetricsCollector)
}
