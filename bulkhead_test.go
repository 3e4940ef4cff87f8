package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBulkhead_AllowsUpToMaxConcurrent(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 2})

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(ctx context.Context) error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}

	<-started
	<-started

	if b.InUse() != 2 {
		t.Errorf("expected 2 in use, got %d", b.InUse())
	}
	if b.Available() != 0 {
		t.Errorf("expected 0 available, got %d", b.Available())
	}

	close(release)
	wg.Wait()

	if b.InUse() != 0 {
		t.Errorf("expected 0 in use after completion, got %d", b.InUse())
	}
}

func TestBulkhead_RejectsWhenQueueFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxQueue: 0})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := b.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("function should not have been called")
		return nil
	})

	var bhErr *BulkheadError
	if !errors.As(err, &bhErr) {
		t.Fatalf("expected *BulkheadError, got %v", err)
	}
	if bhErr.Reason != BulkheadQueueFull {
		t.Errorf("expected queue-full reason, got %s", bhErr.Reason)
	}

	close(release)
}

func TestBulkhead_QueuedCallerRunsAfterRelease(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxQueue: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		done <- b.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		})
	}()

	// Wait until the second caller is queued, then free the slot.
	deadline := time.After(time.Second)
	for b.Queued() != 1 {
		select {
		case <-deadline:
			t.Fatal("second caller never queued")
		case <-time.After(time.Millisecond):
		}
	}

	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected queued caller to succeed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued caller never ran")
	}
}

func TestBulkhead_QueueServesFIFO(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxQueue: 3})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 1; i <= 3; i++ {
		// Queue one at a time so arrival order is deterministic.
		deadline := time.After(time.Second)
		for b.Queued() != i-1 {
			select {
			case <-deadline:
				t.Fatalf("caller %d never queued", i-1)
			case <-time.After(time.Millisecond):
			}
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
	}

	deadline := time.After(time.Second)
	for b.Queued() != 3 {
		select {
		case <-deadline:
			t.Fatal("callers never queued")
		case <-time.After(time.Millisecond):
		}
	}

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("expected FIFO order [1 2 3], got %v", order)
	}
}

func TestBulkhead_QueueTimeout(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{
		Name:          "test",
		MaxConcurrent: 1,
		MaxQueue:      1,
		QueueTimeout:  20 * time.Millisecond,
	})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := b.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("function should not have been called")
		return nil
	})

	var bhErr *BulkheadError
	if !errors.As(err, &bhErr) {
		t.Fatalf("expected *BulkheadError, got %v", err)
	}
	if bhErr.Reason != BulkheadQueueTimeout {
		t.Errorf("expected queue-timeout reason, got %s", bhErr.Reason)
	}
	if b.Queued() != 0 {
		t.Errorf("expected timed-out waiter removed from queue, got %d queued", b.Queued())
	}

	close(release)
}

func TestBulkhead_ContextCancelWhileQueued(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxQueue: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}()

	deadline := time.After(time.Second)
	for b.Queued() != 1 {
		select {
		case <-deadline:
			t.Fatal("caller never queued")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued caller never returned after cancellation")
	}

	close(release)
}

func TestBulkhead_Callbacks(t *testing.T) {
	var acquires, releases, rejects atomic.Int32
	b := NewBulkhead(BulkheadConfig{
		Name:          "test",
		MaxConcurrent: 1,
		OnAcquire:     func(name string) { acquires.Add(1) },
		OnRelease:     func(name string) { releases.Add(1) },
		OnReject:      func(name string) { rejects.Add(1) },
	})

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return nil })

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	close(release)

	deadline := time.After(time.Second)
	for releases.Load() != 2 {
		select {
		case <-deadline:
			t.Fatal("release callback never fired twice")
		case <-time.After(time.Millisecond):
		}
	}

	if acquires.Load() != 2 {
		t.Errorf("expected 2 acquires, got %d", acquires.Load())
	}
	if rejects.Load() != 1 {
		t.Errorf("expected 1 reject, got %d", rejects.Load())
	}
}

func TestBulkhead_Reset(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1, MaxQueue: 2})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		done <- b.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		})
	}()

	deadline := time.After(time.Second)
	for b.Queued() != 1 {
		select {
		case <-deadline:
			t.Fatal("caller never queued")
		case <-time.After(time.Millisecond):
		}
	}

	b.Reset()

	select {
	case err := <-done:
		var bhErr *BulkheadError
		if !errors.As(err, &bhErr) {
			t.Errorf("expected *BulkheadError for reset waiter, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued caller never returned after reset")
	}

	if b.InUse() != 0 {
		t.Errorf("expected 0 in use after reset, got %d", b.InUse())
	}
	if b.Queued() != 0 {
		t.Errorf("expected empty queue after reset, got %d", b.Queued())
	}

	// The in-flight call's release clamps at zero instead of going negative.
	close(release)
	deadline = time.After(time.Second)
	for b.InUse() != 0 {
		select {
		case <-deadline:
			t.Fatalf("expected in-use to stay 0, got %d", b.InUse())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestBulkhead_ConcurrentLoad(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 5, MaxQueue: 100})

	var peak atomic.Int32
	var current atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(ctx context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				current.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > 5 {
		t.Errorf("expected at most 5 concurrent executions, got %d", peak.Load())
	}
	if b.InUse() != 0 {
		t.Errorf("expected 0 in use after load, got %d", b.InUse())
	}
}

func TestBulkhead_MaxConcurrentAccessor(t *testing.T) {
	b := NewBulkhead(DefaultBulkheadConfig("test"))
	if b.MaxConcurrent() != 10 {
		t.Errorf("expected 10, got %d", b.MaxConcurrent())
	}
}

func TestExecuteBulkhead(t *testing.T) {
	b := NewBulkhead(DefaultBulkheadConfig("test"))

	got, err := ExecuteBulkhead(context.Background(), b, func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if got != "ok" {
		t.Errorf("expected 'ok', got %q", got)
	}
}
