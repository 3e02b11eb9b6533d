package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGuard_NoOptionsRunsOp(t *testing.T) {
	g := NewGuard()
	calls := 0
	err := g.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("Execute() = %v with %d calls", err, calls)
	}
	if g.Limiter() != nil || g.Breaker() != nil {
		t.Error("unconfigured guard should expose nil components")
	}
}

func TestGuard_EveryAttemptPassesLimiter(t *testing.T) {
	clock := newFakeClock()
	w := NewSlidingWindow(SlidingWindowConfig{Budget: 10, Window: time.Hour, Now: clock.Now})
	g := NewGuard(
		WithLimiter(w),
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})),
	)

	_ = g.Execute(context.Background(), failOp)

	if got := w.InWindow(); got != 3 {
		t.Errorf("InWindow = %d, want 3 (one per attempt)", got)
	}
}

func TestGuard_RetryStopsOnOpenCircuit(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1})
	g := NewGuard(
		WithCircuitBreaker(cb),
		WithRetry(NewRetry(RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			RetryIf:      func(err error) bool { return !errors.Is(err, ErrCircuitOpen) },
		})),
	)

	var calls int32
	err := g.Execute(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errProvider
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
	if calls != 1 {
		t.Errorf("provider calls = %d, want 1", calls)
	}
}

func TestGuard_AttemptTimeout(t *testing.T) {
	g := NewGuard(
		WithAttemptTimeout(20*time.Millisecond),
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})),
	)

	var calls int32
	err := g.Execute(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
	if calls != 2 {
		t.Errorf("attempts = %d, want 2", calls)
	}
}

func TestGuard_ZeroAttemptTimeoutIgnored(t *testing.T) {
	g := NewGuard(WithAttemptTimeout(0))
	if g.timeout != nil {
		t.Error("zero timeout should leave attempts unbounded")
	}
}

func TestGuard_BulkheadFullCountsAsAttempt(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: -1})
	_ = b.Acquire(context.Background())
	defer b.Release()

	g := NewGuard(WithBulkhead(b))
	err := g.Execute(context.Background(), okOp)
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Execute() error = %v, want ErrBulkheadFull", err)
	}
}

func TestGuard_LimiterRespectsContext(t *testing.T) {
	w := NewSlidingWindow(SlidingWindowConfig{Budget: 1, Window: time.Hour})
	_ = w.Acquire(context.Background())

	g := NewGuard(WithLimiter(w))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	called := false
	err := g.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want DeadlineExceeded", err)
	}
	if called {
		t.Error("op must not run without a limiter slot")
	}
}
