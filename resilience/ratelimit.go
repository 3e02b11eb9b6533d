package resilience

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowConfig configures a sliding window limiter.
type SlidingWindowConfig struct {
	// Budget is the number of calls admitted in any Window-length interval.
	// Default: 10
	Budget int

	// Window is the trailing interval the budget applies to.
	// Default: 1 second
	Window time.Duration

	// Now is the clock. Acquire sleeps on the wall clock, so a fake clock is
	// only meaningful with TryAcquire.
	// Default: time.Now
	Now func() time.Time

	// OnWait is called after a caller was held back, with the time it waited.
	OnWait func(waited time.Duration)
}

// SlidingWindow admits at most Budget calls in any trailing Window.
//
// Contract:
// - Concurrency: safe for concurrent use; the timestamp list is guarded by a mutex.
// - Context: Acquire returns ctx.Err() if the context ends while waiting.
// - Errors: exhaustion is never an error; callers wait for a slot.
type SlidingWindow struct {
	config SlidingWindowConfig

	mu     sync.Mutex
	calls  []time.Time // admission times, oldest first
	waits  int64
	waited time.Duration
}

// NewSlidingWindow creates a sliding window limiter.
func NewSlidingWindow(config SlidingWindowConfig) *SlidingWindow {
	if config.Budget <= 0 {
		config.Budget = 10
	}
	if config.Window <= 0 {
		config.Window = time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &SlidingWindow{
		config: config,
		calls:  make([]time.Time, 0, min(config.Budget, 64)),
	}
}

// Acquire blocks until the call fits in the window, then records it.
func (w *SlidingWindow) Acquire(ctx context.Context) error {
	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait, ok := w.admit()
		if ok {
			if waited > 0 {
				w.recordWait(waited)
			}
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			waited += wait
		}
	}
}

// TryAcquire records the call if it fits in the window without waiting.
func (w *SlidingWindow) TryAcquire() bool {
	_, ok := w.admit()
	return ok
}

// admit records a call when there is room. Otherwise it returns how long
// until the oldest retained call leaves the window.
func (w *SlidingWindow) admit() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.config.Now()
	w.pruneLocked(now)

	if len(w.calls) < w.config.Budget {
		w.calls = append(w.calls, now)
		return 0, true
	}

	wait := w.calls[0].Add(w.config.Window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// pruneLocked drops calls that are at least Window old.
func (w *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.config.Window)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}

func (w *SlidingWindow) recordWait(d time.Duration) {
	w.mu.Lock()
	w.waits++
	w.waited += d
	w.mu.Unlock()

	if w.config.OnWait != nil {
		w.config.OnWait(d)
	}
}

// InWindow returns the number of calls counted in the current window.
func (w *SlidingWindow) InWindow() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.config.Now())
	return len(w.calls)
}

// Reset forgets all recorded calls.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = w.calls[:0]
}

// Stats returns a snapshot of the limiter.
func (w *SlidingWindow) Stats() WindowStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.config.Now())
	return WindowStats{
		Budget:   w.config.Budget,
		Window:   w.config.Window,
		InWindow: len(w.calls),
		Waits:    w.waits,
		Waited:   w.waited,
	}
}

// WindowStats contains sliding window statistics.
type WindowStats struct {
	Budget   int
	Window   time.Duration
	InWindow int
	Waits    int64
	Waited   time.Duration
}

// Saturated reports whether the window is at its budget.
func (s WindowStats) Saturated() bool {
	return s.InWindow >= s.Budget
}
