package resilience

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Limiters holds one sliding window per operation name.
//
// Operations are normally declared at startup. Acquire also accepts an
// undeclared operation and creates its window on first use; windows for
// different operations never share state.
type Limiters struct {
	mu      sync.Mutex
	windows map[string]*SlidingWindow
	now     func() time.Time
	onWait  func(op string, waited time.Duration)
}

// LimitersOption configures Limiters.
type LimitersOption func(*Limiters)

// WithClock sets the clock for every window.
func WithClock(now func() time.Time) LimitersOption {
	return func(l *Limiters) {
		l.now = now
	}
}

// WithWaitObserver is called whenever a caller of op had to wait.
func WithWaitObserver(fn func(op string, waited time.Duration)) LimitersOption {
	return func(l *Limiters) {
		l.onWait = fn
	}
}

// NewLimiters creates an empty set of limiters.
func NewLimiters(opts ...LimitersOption) *Limiters {
	l := &Limiters{
		windows: make(map[string]*SlidingWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Declare registers op with its budget and returns its window.
// Declaring an existing operation returns the existing window unchanged.
func (l *Limiters) Declare(op string, budget int, window time.Duration) (*SlidingWindow, error) {
	if budget <= 0 || window <= 0 {
		return nil, ErrInvalidWindow
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getOrCreateLocked(op, budget, window), nil
}

// Acquire waits for a slot in op's window, creating the window with budget
// and window on first use.
func (l *Limiters) Acquire(ctx context.Context, op string, budget int, window time.Duration) error {
	if budget <= 0 || window <= 0 {
		return ErrInvalidWindow
	}

	l.mu.Lock()
	w := l.getOrCreateLocked(op, budget, window)
	l.mu.Unlock()

	return w.Acquire(ctx)
}

// Get returns the window for op.
func (l *Limiters) Get(op string) (*SlidingWindow, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[op]
	return w, ok
}

// Operations returns the declared operation names, sorted.
func (l *Limiters) Operations() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ops := make([]string, 0, len(l.windows))
	for op := range l.windows {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Snapshot returns statistics for every operation.
func (l *Limiters) Snapshot() map[string]WindowStats {
	l.mu.Lock()
	windows := make(map[string]*SlidingWindow, len(l.windows))
	for op, w := range l.windows {
		windows[op] = w
	}
	l.mu.Unlock()

	out := make(map[string]WindowStats, len(windows))
	for op, w := range windows {
		out[op] = w.Stats()
	}
	return out
}

func (l *Limiters) getOrCreateLocked(op string, budget int, window time.Duration) *SlidingWindow {
	if w, ok := l.windows[op]; ok {
		return w
	}

	cfg := SlidingWindowConfig{
		Budget: budget,
		Window: window,
		Now:    l.now,
	}
	if l.onWait != nil {
		onWait := l.onWait
		cfg.OnWait = func(d time.Duration) { onWait(op, d) }
	}

	w := NewSlidingWindow(cfg)
	l.windows[op] = w
	return w
}
