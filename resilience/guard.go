package resilience

import (
	"context"
	"time"
)

// Guard composes the protections for one upstream provider.
type Guard struct {
	limiter  *SlidingWindow
	bulkhead *Bulkhead
	breaker  *CircuitBreaker
	retry    *Retry
	timeout  *Timeout
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// NewGuard creates a guard. With no options it runs op directly.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithLimiter gates every attempt on a sliding window.
func WithLimiter(w *SlidingWindow) GuardOption {
	return func(g *Guard) {
		g.limiter = w
	}
}

// WithBulkhead caps concurrent attempts.
func WithBulkhead(b *Bulkhead) GuardOption {
	return func(g *Guard) {
		g.bulkhead = b
	}
}

// WithCircuitBreaker fails attempts fast while the provider is failing.
func WithCircuitBreaker(cb *CircuitBreaker) GuardOption {
	return func(g *Guard) {
		g.breaker = cb
	}
}

// WithRetry retries failed attempts.
func WithRetry(r *Retry) GuardOption {
	return func(g *Guard) {
		g.retry = r
	}
}

// WithAttemptTimeout bounds each attempt.
func WithAttemptTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = NewTimeout(TimeoutConfig{Timeout: d})
		}
	}
}

// Execute runs op through the configured protections.
//
// Retry is outermost: every attempt is a real upstream call, so each one
// passes, in order, the limiter, the bulkhead, the circuit breaker and the
// attempt timeout.
func (g *Guard) Execute(ctx context.Context, op func(context.Context) error) error {
	attempt := op

	if g.timeout != nil {
		inner := attempt
		attempt = func(ctx context.Context) error {
			return g.timeout.Execute(ctx, inner)
		}
	}

	if g.breaker != nil {
		inner := attempt
		attempt = func(ctx context.Context) error {
			return g.breaker.Execute(ctx, inner)
		}
	}

	if g.bulkhead != nil {
		inner := attempt
		attempt = func(ctx context.Context) error {
			return g.bulkhead.Execute(ctx, inner)
		}
	}

	if g.limiter != nil {
		inner := attempt
		attempt = func(ctx context.Context) error {
			if err := g.limiter.Acquire(ctx); err != nil {
				return err
			}
			return inner(ctx)
		}
	}

	if g.retry != nil {
		return g.retry.Execute(ctx, attempt)
	}
	return attempt(ctx)
}

// Limiter returns the guard's sliding window, if any.
func (g *Guard) Limiter() *SlidingWindow {
	return g.limiter
}

// Breaker returns the guard's circuit breaker, if any.
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}
