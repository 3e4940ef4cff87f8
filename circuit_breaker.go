package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/resilience/errors"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen allows trial requests to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// StateChange describes a single breaker transition.
type StateChange struct {
	// ID is a unique event identifier for correlation.
	ID   string
	Name string
	From State
	To   State
	At   time.Time
}

// Listener receives breaker notifications. Callbacks fire synchronously in
// call-completion order while the breaker holds its lock, so listeners must
// not call back into the breaker.
type Listener interface {
	OnStateChange(change StateChange)
	OnSuccess(name string, duration time.Duration)
	OnFailure(name string, duration time.Duration, err error)
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker for registries, metrics and logging.
	Name string
	// FailureThreshold is the sliding-window failure count that opens the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes needed to close the circuit.
	SuccessThreshold int
	// CallTimeout bounds each protected call. 0 disables the per-call timeout.
	// The timeout only races the result; it does not stop the underlying work.
	CallTimeout time.Duration
	// ResetTimeout is how long the circuit stays open before the next call
	// is allowed to probe (open -> half-open happens lazily on that call).
	ResetTimeout time.Duration
	// Window configures the sliding window of recent outcomes.
	Window WindowConfig
	// MetricsWindow is how long the breaker's metrics collector retains calls.
	MetricsWindow time.Duration
	// IsFailure decides whether an error counts against the threshold.
	// When it returns false, the call is recorded as a success and the error
	// is still returned to the caller. Nil counts every error.
	IsFailure func(error) bool
	// Fallback, when set, absorbs the final error of a protected call
	// (including open-state rejections) and substitutes its own result.
	Fallback func(ctx context.Context, cause error) error
	// OnStateChange is called when the breaker changes state.
	OnStateChange func(name string, from, to State)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		ResetTimeout:     30 * time.Second,
		Window:           DefaultWindowConfig(),
		MetricsWindow:    time.Minute,
	}
}

// CircuitBreaker implements the circuit breaker pattern. It fails fast when
// the protected dependency is unhealthy instead of piling more load on it.
//
// States:
//   - Closed: normal operation; the sliding window tracks outcomes
//   - Open: calls are rejected without executing until the reset timeout
//   - Half-Open: trial calls probe the dependency; enough successes close
//     the circuit, any failure reopens it
//
// A breaker instance is safe for concurrent use and is intended to be shared
// by every call site targeting the same dependency (see CircuitBreakerRegistry).
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu                sync.Mutex
	state             State
	nextAttempt       time.Time
	halfOpenSuccesses int
	window            SlidingWindow
	metrics           *MetricsCollector
	listeners         []Listener
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.Window.Kind == "" {
		config.Window = DefaultWindowConfig()
	}
	if config.MetricsWindow <= 0 {
		config.MetricsWindow = time.Minute
	}

	return &CircuitBreaker{
		config:  config,
		state:   StateClosed,
		window:  NewSlidingWindow(config.Window),
		metrics: NewMetricsCollector(MetricsConfig{Name: config.Name, Window: config.MetricsWindow}),
	}
}

// AddListener registers a notification listener.
func (cb *CircuitBreaker) AddListener(l Listener) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, l)
}

// Execute runs the given function through the circuit breaker. It returns a
// *CircuitBreakerError when the circuit rejects the call, a *TimeoutError
// when the per-call deadline wins the race, or the function's own error. If
// a fallback is configured it absorbs any of those and substitutes its own
// result.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn UnitOfWork) error {
	if err := cb.allow(); err != nil {
		return cb.fallback(ctx, err)
	}

	start := time.Now()
	err := cb.run(ctx, fn)
	cb.afterCall(time.Since(start), err)
	return cb.fallback(ctx, err)
}

// ExecuteBreaker runs a function that returns a value through a breaker. The
// typed fallback, when non-nil, replaces the config-level one for this call.
func ExecuteBreaker[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error), fallback func(ctx context.Context, cause error) (T, error)) (T, error) {
	var result T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	if err != nil && fallback != nil {
		return fallback(ctx, err)
	}
	return result, err
}

// State returns the current state, applying the lazy open -> half-open
// transition if the reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refreshState(time.Now())
	return cb.state
}

// Metrics returns a snapshot of the breaker's private metrics collector.
func (cb *CircuitBreaker) Metrics() Snapshot {
	return cb.metrics.Snapshot()
}

// WindowResult returns the current sliding-window totals.
func (cb *CircuitBreaker) WindowResult() WindowResult {
	return cb.window.Result()
}

// Failures returns the failure count currently in the sliding window.
func (cb *CircuitBreaker) Failures() int {
	return cb.window.Result().FailureCount
}

// Reset returns the breaker to its construction-time state: closed, with an
// empty window and empty metrics.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toState(StateClosed)
	cb.window.Reset()
	cb.metrics.Reset()
	cb.halfOpenSuccesses = 0
	cb.nextAttempt = time.Time{}
}

// allow decides whether the call may proceed, applying the lazy half-open
// transition first.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refreshState(time.Now())
	if cb.state == StateOpen {
		return &CircuitBreakerError{Name: cb.config.Name, State: cb.state}
	}
	return nil
}

// run executes fn, racing it against the per-call timeout when one is
// configured. A timeout leaves fn running in the background; only the result
// race is cut short.
func (cb *CircuitBreaker) run(ctx context.Context, fn UnitOfWork) error {
	if cb.config.CallTimeout <= 0 {
		return fn(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	timer := time.NewTimer(cb.config.CallTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return &TimeoutError{Name: cb.config.Name, Timeout: cb.config.CallTimeout}
	}
}

func (cb *CircuitBreaker) afterCall(duration time.Duration, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && cb.config.IsFailure != nil && !cb.config.IsFailure(err) {
		// The predicate declared this error benign: it is recorded as a
		// success for window and metrics purposes and leaves state alone.
		// The caller still receives the original error.
		cb.window.Record(true)
		cb.metrics.RecordSuccess(duration)
		return
	}

	if err == nil {
		cb.onSuccess(duration)
	} else {
		cb.onFailure(duration, err)
	}
}

// onSuccess must be called with the lock held.
func (cb *CircuitBreaker) onSuccess(duration time.Duration) {
	cb.window.Record(true)
	cb.metrics.RecordSuccess(duration)
	for _, l := range cb.listeners {
		l.OnSuccess(cb.config.Name, duration)
	}

	if cb.state == StateHalfOpen {
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.config.SuccessThreshold {
			cb.toState(StateClosed)
		}
	}
}

// onFailure must be called with the lock held.
func (cb *CircuitBreaker) onFailure(duration time.Duration, err error) {
	cb.window.Record(false)
	cb.metrics.RecordFailure(duration, string(errors.Code(err)))
	for _, l := range cb.listeners {
		l.OnFailure(cb.config.Name, duration, err)
	}

	switch cb.state {
	case StateHalfOpen:
		// No partial credit: one failure during the trial reopens the circuit.
		cb.toState(StateOpen)
	case StateClosed:
		if cb.window.Result().FailureCount >= cb.config.FailureThreshold {
			cb.toState(StateOpen)
		}
	}
}

// refreshState applies the lazy open -> half-open transition. Must be called
// with the lock held.
func (cb *CircuitBreaker) refreshState(now time.Time) {
	if cb.state == StateOpen && !now.Before(cb.nextAttempt) {
		cb.toState(StateHalfOpen)
	}
}

// toState transitions to a new state and notifies. Must be called with the
// lock held.
func (cb *CircuitBreaker) toState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to

	switch to {
	case StateClosed:
		// Closed always starts from a clean slate.
		cb.window.Reset()
		cb.metrics.Reset()
		cb.halfOpenSuccesses = 0
	case StateHalfOpen:
		cb.halfOpenSuccesses = 0
	case StateOpen:
		cb.halfOpenSuccesses = 0
		cb.nextAttempt = time.Now().Add(cb.config.ResetTimeout)
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
	if len(cb.listeners) > 0 {
		change := StateChange{
			ID:   uuid.NewString(),
			Name: cb.config.Name,
			From: from,
			To:   to,
			At:   time.Now(),
		}
		for _, l := range cb.listeners {
			l.OnStateChange(change)
		}
	}
}

func (cb *CircuitBreaker) fallback(ctx context.Context, err error) error {
	if err != nil && cb.config.Fallback != nil {
		return cb.config.Fallback(ctx, err)
	}
	return err
}
