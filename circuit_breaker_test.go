package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/kbukum/resilience/errors"
)

func TestCircuitBreaker_StartsInClosedState(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
}

func TestCircuitBreaker_AllowsRequestsWhenClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	var called bool
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called {
		t.Error("function was not called")
	}
}

func TestCircuitBreaker_OpensAtFailureThreshold(t *testing.T) {
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		ResetTimeout:     time.Hour,
	}
	cb := NewCircuitBreaker(config)

	testErr := errors.New("test error")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error {
			return testErr
		})
	}

	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen, got %s", cb.State())
	}

	// Next request should be rejected without running the function.
	err := cb.Execute(ctx, func(ctx context.Context) error {
		t.Error("function should not have been called")
		return nil
	})

	var cbErr *CircuitBreakerError
	if !errors.As(err, &cbErr) {
		t.Fatalf("expected *CircuitBreakerError, got %v", err)
	}
	if cbErr.Name != "test" {
		t.Errorf("expected breaker name 'test', got %s", cbErr.Name)
	}
	if apperrors.Code(err) != apperrors.ErrCodeCircuitOpen {
		t.Errorf("expected code %s, got %s", apperrors.ErrCodeCircuitOpen, apperrors.Code(err))
	}
}

func TestCircuitBreaker_StaysClosedBelowThreshold(t *testing.T) {
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 5,
		ResetTimeout:     time.Hour,
	}
	cb := NewCircuitBreaker(config)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error {
			return errors.New("fail")
		})
	}

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
	if cb.Failures() != 4 {
		t.Errorf("expected 4 failures, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_WindowEvictionKeepsCircuitClosed(t *testing.T) {
	// With a window of 3, old failures fall out before the count reaches
	// the threshold again.
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		ResetTimeout:     time.Hour,
		Window:           WindowConfig{Kind: WindowCount, Size: 3},
	}
	cb := NewCircuitBreaker(config)

	ctx := context.Background()
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errors.New("fail") })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errors.New("fail") })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return nil })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errors.New("fail") })

	// Window now holds fail, success, fail: 2 failures, under the threshold.
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
	if cb.Failures() != 2 {
		t.Errorf("expected 2 failures in window, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_TransitionsToHalfOpenAfterResetTimeout(t *testing.T) {
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		ResetTimeout:     50 * time.Millisecond,
	}
	cb := NewCircuitBreaker(config)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen, got %s", cb.State())
	}

	time.Sleep(60 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Errorf("expected StateHalfOpen, got %s", cb.State())
	}
}

func TestCircuitBreaker_ClosesAfterSuccessesInHalfOpen(t *testing.T) {
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		ResetTimeout:     10 * time.Millisecond,
	}
	cb := NewCircuitBreaker(config)
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error {
		return errors.New("fail")
	})

	time.Sleep(15 * time.Millisecond)

	err := cb.Execute(ctx, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("expected StateHalfOpen after 1 of 2 successes, got %s", cb.State())
	}

	err = cb.Execute(ctx, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
}

func TestCircuitBreaker_ClosingResetsWindow(t *testing.T) {
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 2,
		ResetTimeout:     10 * time.Millisecond,
	}
	cb := NewCircuitBreaker(config)
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return errors.New("fail") })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errors.New("fail") })

	time.Sleep(15 * time.Millisecond)

	_ = cb.Execute(ctx, func(ctx context.Context) error { return nil })

	if cb.State() != StateClosed {
		t.Fatalf("expected StateClosed, got %s", cb.State())
	}
	if r := cb.WindowResult(); r.TotalCalls != 0 {
		t.Errorf("expected empty window after close, got %d calls", r.TotalCalls)
	}
	if snap := cb.Metrics(); snap.TotalCalls != 0 {
		t.Errorf("expected empty metrics after close, got %d calls", snap.TotalCalls)
	}
}

func TestCircuitBreaker_ReopensOnFailureInHalfOpen(t *testing.T) {
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	}
	cb := NewCircuitBreaker(config)
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error {
		return errors.New("fail")
	})

	time.Sleep(15 * time.Millisecond)

	_ = cb.Execute(ctx, func(ctx context.Context) error {
		return errors.New("fail again")
	})

	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen, got %s", cb.State())
	}
}

func TestCircuitBreaker_CallTimeout(t *testing.T) {
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		CallTimeout:      20 * time.Millisecond,
		ResetTimeout:     time.Hour,
	}
	cb := NewCircuitBreaker(config)

	release := make(chan struct{})
	defer close(release)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	})

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if timeoutErr.Timeout != 20*time.Millisecond {
		t.Errorf("expected 20ms timeout in error, got %v", timeoutErr.Timeout)
	}

	// The timeout counted as a failure and tripped the breaker.
	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen after timeout, got %s", cb.State())
	}
}

func TestCircuitBreaker_IsFailurePredicate(t *testing.T) {
	benign := errors.New("not found")
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		IsFailure: func(err error) bool {
			return !errors.Is(err, benign)
		},
	}
	cb := NewCircuitBreaker(config)

	// The benign error is returned to the caller but recorded as a success.
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return benign
	})

	if !errors.Is(err, benign) {
		t.Errorf("expected the benign error back, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("expected 0 failures, got %d", cb.Failures())
	}
	if snap := cb.Metrics(); snap.SuccessCalls != 1 {
		t.Errorf("expected 1 success recorded, got %d", snap.SuccessCalls)
	}
}

func TestCircuitBreaker_FallbackOnFailure(t *testing.T) {
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 10,
		ResetTimeout:     time.Hour,
		Fallback: func(ctx context.Context, cause error) error {
			return nil
		},
	}
	cb := NewCircuitBreaker(config)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	if err != nil {
		t.Errorf("expected fallback to absorb the error, got %v", err)
	}
	// The failure is still recorded against the window.
	if cb.Failures() != 1 {
		t.Errorf("expected 1 failure recorded, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_FallbackOnOpenRejection(t *testing.T) {
	var sawCause error
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		Fallback: func(ctx context.Context, cause error) error {
			sawCause = cause
			return nil
		},
	}
	cb := NewCircuitBreaker(config)
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error {
		return errors.New("fail")
	})

	err := cb.Execute(ctx, func(ctx context.Context) error {
		t.Error("function should not have been called")
		return nil
	})

	if err != nil {
		t.Errorf("expected fallback to absorb the rejection, got %v", err)
	}
	var cbErr *CircuitBreakerError
	if !errors.As(sawCause, &cbErr) {
		t.Errorf("expected fallback cause to be *CircuitBreakerError, got %v", sawCause)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	}
	cb := NewCircuitBreaker(config)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen, got %s", cb.State())
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after reset, got %s", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("expected 0 failures after reset, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var mu sync.Mutex
	var stateChanges []struct{ from, to State }

	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			stateChanges = append(stateChanges, struct{ from, to State }{from, to})
			mu.Unlock()
		},
	}
	cb := NewCircuitBreaker(config)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	time.Sleep(15 * time.Millisecond)
	_ = cb.State() // trigger the lazy transition

	mu.Lock()
	defer mu.Unlock()

	if len(stateChanges) < 2 {
		t.Fatalf("expected at least 2 state changes, got %d", len(stateChanges))
	}
	if stateChanges[0].from != StateClosed || stateChanges[0].to != StateOpen {
		t.Errorf("expected closed->open, got %s->%s", stateChanges[0].from, stateChanges[0].to)
	}
	if stateChanges[1].from != StateOpen || stateChanges[1].to != StateHalfOpen {
		t.Errorf("expected open->half-open, got %s->%s", stateChanges[1].from, stateChanges[1].to)
	}
}

type recordingListener struct {
	mu        sync.Mutex
	changes   []StateChange
	successes int
	failures  int
}

func (l *recordingListener) OnStateChange(change StateChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, change)
}

func (l *recordingListener) OnSuccess(name string, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successes++
}

func (l *recordingListener) OnFailure(name string, duration time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures++
}

func TestCircuitBreaker_ListenerNotifications(t *testing.T) {
	config := CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	}
	cb := NewCircuitBreaker(config)
	listener := &recordingListener{}
	cb.AddListener(listener)

	ctx := context.Background()
	_ = cb.Execute(ctx, func(ctx context.Context) error { return nil })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errors.New("fail") })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errors.New("fail") })

	listener.mu.Lock()
	defer listener.mu.Unlock()

	if listener.successes != 1 {
		t.Errorf("expected 1 success notification, got %d", listener.successes)
	}
	if listener.failures != 2 {
		t.Errorf("expected 2 failure notifications, got %d", listener.failures)
	}
	if len(listener.changes) != 1 {
		t.Fatalf("expected 1 state change, got %d", len(listener.changes))
	}
	change := listener.changes[0]
	if change.From != StateClosed || change.To != StateOpen {
		t.Errorf("expected closed->open, got %s->%s", change.From, change.To)
	}
	if change.Name != "test" {
		t.Errorf("expected name 'test', got %s", change.Name)
	}
	if change.ID == "" {
		t.Error("expected non-empty change ID")
	}
	if change.At.IsZero() {
		t.Error("expected change timestamp to be set")
	}
}

func TestCircuitBreaker_MetricsRecordCalls(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return nil })
	_ = cb.Execute(ctx, func(ctx context.Context) error { return errors.New("fail") })

	snap := cb.Metrics()
	if snap.TotalCalls != 2 {
		t.Errorf("expected 2 calls in metrics, got %d", snap.TotalCalls)
	}
	if snap.SuccessCalls != 1 || snap.FailureCalls != 1 {
		t.Errorf("expected 1/1 split, got %d/%d", snap.SuccessCalls, snap.FailureCalls)
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(context.Background(), func(ctx context.Context) error {
				return nil
			})
			_ = cb.State()
			_ = cb.Failures()
		}()
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
}

func TestExecuteBreaker(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	got, err := ExecuteBreaker(context.Background(), cb, func(ctx context.Context) (string, error) {
		return "value", nil
	}, nil)

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if got != "value" {
		t.Errorf("expected 'value', got %q", got)
	}
}

func TestExecuteBreaker_TypedFallback(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	got, err := ExecuteBreaker(context.Background(), cb, func(ctx context.Context) (string, error) {
		return "", errors.New("fail")
	}, func(ctx context.Context, cause error) (string, error) {
		return "fallback", nil
	})

	if err != nil {
		t.Errorf("expected fallback to absorb the error, got %v", err)
	}
	if got != "fallback" {
		t.Errorf("expected 'fallback', got %q", got)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
