package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig configures the per-attempt deadline.
type TimeoutConfig struct {
	// Timeout is the maximum duration of one attempt.
	// Default: 10 seconds
	Timeout time.Duration
}

// Timeout bounds one upstream attempt. Its deadline is attached as the
// context cause, so an expiry of this deadline is told apart from an
// expiry of the caller's own deadline.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a per-attempt deadline.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Timeout{d: config.Timeout}
}

// Config returns the effective configuration.
func (t *Timeout) Config() TimeoutConfig {
	return TimeoutConfig{Timeout: t.d}
}

// Execute runs op under the deadline. When the attempt deadline fires it
// returns ErrTimeout at once; op sees the cancelled context at its next
// suspension point and its late result is dropped. When the parent context
// ends first, the parent's error is returned unchanged.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeoutCause(ctx, t.d, ErrTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(attemptCtx) }()

	var err error
	select {
	case err = <-done:
		if err == nil {
			return nil
		}
	case <-attemptCtx.Done():
		err = attemptCtx.Err()
	}

	if ctx.Err() == nil && errors.Is(context.Cause(attemptCtx), ErrTimeout) && errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
