package resilience

import (
	"context"
	"sync"
	"time"
)

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of concurrent calls.
	MaxConcurrent int
	// MaxQueue is the maximum number of callers allowed to wait for a slot.
	// 0 rejects immediately when all slots are busy.
	MaxQueue int
	// QueueTimeout is how long a queued caller waits for a slot.
	// 0 waits until a slot frees or the context ends.
	QueueTimeout time.Duration
	// OnReject is called when a request is rejected.
	OnReject func(name string)
	// OnAcquire is called when a slot is acquired.
	OnAcquire func(name string)
	// OnRelease is called when a slot is released.
	OnRelease func(name string)
}

// DefaultBulkheadConfig returns sensible defaults.
func DefaultBulkheadConfig(name string) BulkheadConfig {
	return BulkheadConfig{
		Name:          name,
		MaxConcurrent: 10,
		MaxQueue:      0,
	}
}

type bulkheadWaiter struct {
	grant chan struct{}
}

// Bulkhead bounds the number of simultaneous executions and queues excess
// callers in strict FIFO order up to MaxQueue. A released slot is handed
// directly to the earliest waiter, so a woken waiter never re-queues.
type Bulkhead struct {
	config BulkheadConfig

	mu     sync.Mutex
	active int
	queue  []*bulkheadWaiter
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.MaxQueue < 0 {
		config.MaxQueue = 0
	}
	return &Bulkhead{config: config}
}

// Execute runs the given function within the bulkhead. It returns a
// *BulkheadError when the queue is full or the queue timeout elapses.
func (b *Bulkhead) Execute(ctx context.Context, fn UnitOfWork) error {
	if err := b.acquire(ctx); err != nil {
		if b.config.OnReject != nil {
			b.config.OnReject(b.config.Name)
		}
		return err
	}

	if b.config.OnAcquire != nil {
		b.config.OnAcquire(b.config.Name)
	}

	defer func() {
		b.release()
		if b.config.OnRelease != nil {
			b.config.OnRelease(b.config.Name)
		}
	}()

	return fn(ctx)
}

// ExecuteBulkhead runs a function that returns a value within a bulkhead.
func ExecuteBulkhead[T any](ctx context.Context, b *Bulkhead, fn func(ctx context.Context) (T, error)) (T, error) {
	return ExecuteWithResult(ctx, b, fn)
}

// InUse returns the number of slots currently in use.
func (b *Bulkhead) InUse() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Available returns the number of free slots.
func (b *Bulkhead) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config.MaxConcurrent - b.active
}

// Queued returns the number of callers waiting for a slot.
func (b *Bulkhead) Queued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// MaxConcurrent returns the maximum concurrent calls allowed.
func (b *Bulkhead) MaxConcurrent() int {
	return b.config.MaxConcurrent
}

// Reset rejects every queued waiter and zeroes the active count. Calls still
// holding a slot are unaffected; their release clamps at zero.
func (b *Bulkhead) Reset() {
	b.mu.Lock()
	waiters := b.queue
	b.queue = nil
	b.active = 0
	b.mu.Unlock()

	for _, w := range waiters {
		close(w.grant)
	}
}

// acquire obtains a slot, queueing if necessary.
func (b *Bulkhead) acquire(ctx context.Context) error {
	b.mu.Lock()
	if b.active < b.config.MaxConcurrent {
		b.active++
		b.mu.Unlock()
		return nil
	}

	if len(b.queue) >= b.config.MaxQueue {
		b.mu.Unlock()
		return &BulkheadError{Name: b.config.Name, Reason: BulkheadQueueFull}
	}

	w := &bulkheadWaiter{grant: make(chan struct{}, 1)}
	b.queue = append(b.queue, w)
	b.mu.Unlock()

	var timeout <-chan time.Time
	if b.config.QueueTimeout > 0 {
		timer := time.NewTimer(b.config.QueueTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case _, handoff := <-w.grant:
		if !handoff {
			// Reset rejected us.
			return &BulkheadError{Name: b.config.Name, Reason: BulkheadQueueFull}
		}
		// Direct hand-off: the releasing call kept the slot accounted for us.
		return nil
	case <-timeout:
		return b.abandon(w, &BulkheadError{Name: b.config.Name, Reason: BulkheadQueueTimeout})
	case <-ctx.Done():
		return b.abandon(w, ctx.Err())
	}
}

// abandon removes w from the queue and returns cause. If a grant raced the
// timeout the slot is already ours, so the call proceeds instead.
func (b *Bulkhead) abandon(w *bulkheadWaiter, cause error) error {
	b.mu.Lock()
	for i, queued := range b.queue {
		if queued == w {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			b.mu.Unlock()
			return cause
		}
	}
	b.mu.Unlock()

	if _, handoff := <-w.grant; handoff {
		return nil
	}
	return cause
}

// release frees a slot, handing it to the earliest waiter if any.
func (b *Bulkhead) release() {
	b.mu.Lock()
	if len(b.queue) > 0 {
		w := b.queue[0]
		b.queue = b.queue[1:]
		// The slot transfers to the waiter; active stays unchanged.
		b.mu.Unlock()
		w.grant <- struct{}{}
		return
	}
	if b.active > 0 {
		b.active--
	}
	b.mu.Unlock()
}
