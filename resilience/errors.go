package resilience

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrBulkheadFull is returned when the bulkhead is at capacity and the
	// caller is not allowed to wait.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an attempt exceeds its deadline.
	// It wraps context.DeadlineExceeded.
	ErrTimeout = fmt.Errorf("resilience: operation timed out: %w", context.DeadlineExceeded)

	// ErrInvalidWindow is returned when a window is declared with a
	// non-positive budget or duration.
	ErrInvalidWindow = errors.New("resilience: budget and window must be positive")
)
