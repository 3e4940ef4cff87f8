package resilience

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimiterStrategy selects the admission-control algorithm.
type RateLimiterStrategy string

const (
	// StrategyTokenBucket refills tokens continuously at a fixed rate.
	StrategyTokenBucket RateLimiterStrategy = "token_bucket"
	// StrategySlidingWindow counts requests in sub-windows of the window.
	StrategySlidingWindow RateLimiterStrategy = "sliding_window"
)

// subBucketCount is the number of sub-windows the sliding-window strategy
// divides its window into.
const subBucketCount = 10

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	// Name identifies this rate limiter for metrics/logging.
	Name string
	// Strategy selects the algorithm; token bucket is the default.
	Strategy RateLimiterStrategy
	// Max is the bucket capacity (token bucket) or the request budget per
	// window (sliding window).
	Max int
	// Window is the measurement window. For the token bucket it derives the
	// refill rate when RefillRate is unset.
	Window time.Duration
	// RefillRate is tokens per second for the token bucket. 0 derives
	// Max per Window.
	RefillRate float64
	// OnLimit is called when a request is denied.
	OnLimit func(name string)
}

// DefaultRateLimiterConfig returns a token bucket of 10 requests per second.
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{
		Name:     name,
		Strategy: StrategyTokenBucket,
		Max:      10,
		Window:   time.Second,
	}
}

// RateLimiter is admission control over a unit of work. Execute never
// invokes the work when admission is denied; it returns a *RateLimitError
// carrying a retry-after estimate instead.
type RateLimiter interface {
	Executor
	// Allow reports (and consumes) admission without blocking.
	Allow() bool
	// RetryAfter estimates how long until the next admission could succeed.
	RetryAfter() time.Duration
	// Reset restores the limiter to its construction-time state.
	Reset()
}

// NewRateLimiter creates a rate limiter using the configured strategy.
func NewRateLimiter(config RateLimiterConfig) RateLimiter {
	if config.Max <= 0 {
		config.Max = 10
	}
	if config.Window <= 0 {
		config.Window = time.Second
	}

	switch config.Strategy {
	case StrategySlidingWindow:
		sub := config.Window / subBucketCount
		if sub <= 0 {
			sub = time.Millisecond
		}
		return &slidingWindowLimiter{config: config, sub: sub, buckets: make(map[int64]int)}
	default:
		rate := config.RefillRate
		if rate <= 0 {
			rate = float64(config.Max) / config.Window.Seconds()
		}
		return &tokenBucketLimiter{
			config:     config,
			rate:       rate,
			tokens:     float64(config.Max),
			lastRefill: time.Now(),
		}
	}
}

// ExecuteLimited runs a function that returns a value under a rate limiter.
func ExecuteLimited[T any](ctx context.Context, rl RateLimiter, fn func(ctx context.Context) (T, error)) (T, error) {
	return ExecuteWithResult(ctx, rl, fn)
}

// tokenBucketLimiter holds up to Max tokens, refilled lazily in proportion
// to elapsed time. Each admitted call consumes one token.
type tokenBucketLimiter struct {
	config RateLimiterConfig
	rate   float64

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

func (l *tokenBucketLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}

	if l.config.OnLimit != nil {
		l.config.OnLimit(l.config.Name)
	}
	return false
}

func (l *tokenBucketLimiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		return 0
	}
	ms := math.Ceil((1 - l.tokens) / l.rate * 1000)
	return time.Duration(ms) * time.Millisecond
}

func (l *tokenBucketLimiter) Execute(ctx context.Context, fn UnitOfWork) error {
	if !l.Allow() {
		return &RateLimitError{Name: l.config.Name, RetryAfter: l.RetryAfter()}
	}
	return fn(ctx)
}

func (l *tokenBucketLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = float64(l.config.Max)
	l.lastRefill = time.Now()
}

// refill adds tokens for the elapsed time, capped at capacity. Must be
// called with the lock held.
func (l *tokenBucketLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.config.Max) {
		l.tokens = float64(l.config.Max)
	}
}

// slidingWindowLimiter divides the window into sub-buckets keyed by
// floor(now/sub) and admits while the retained counts sum below Max.
type slidingWindowLimiter struct {
	config RateLimiterConfig
	sub    time.Duration

	mu      sync.Mutex
	buckets map[int64]int
}

func (l *slidingWindowLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := l.evict(time.Now())

	total := 0
	for _, n := range l.buckets {
		total += n
	}
	if total < l.config.Max {
		l.buckets[key]++
		return true
	}

	if l.config.OnLimit != nil {
		l.config.OnLimit(l.config.Name)
	}
	return false
}

// RetryAfter is a coarse estimate: one sub-window, not the exact time until
// the oldest sub-bucket expires.
func (l *slidingWindowLimiter) RetryAfter() time.Duration {
	return l.sub
}

func (l *slidingWindowLimiter) Execute(ctx context.Context, fn UnitOfWork) error {
	if !l.Allow() {
		return &RateLimitError{Name: l.config.Name, RetryAfter: l.RetryAfter()}
	}
	return fn(ctx)
}

func (l *slidingWindowLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[int64]int)
}

// evict drops sub-buckets older than the window and returns the current
// bucket key. Must be called with the lock held.
func (l *slidingWindowLimiter) evict(now time.Time) int64 {
	key := now.UnixNano() / int64(l.sub)
	oldest := key - subBucketCount + 1
	for k := range l.buckets {
		if k < oldest {
			delete(l.buckets, k)
		}
	}
	return key
}
