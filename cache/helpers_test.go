package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errTierDown = errors.New("tier down")

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Name() string { return "broken" }
func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errTierDown
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error { return errTierDown }
func (brokenStore) Delete(context.Context, string) error                    { return errTierDown }

type lookupEvent struct {
	category, tier, outcome string
}

type recordingRecorder struct {
	mu     sync.Mutex
	events []lookupEvent
}

func (r *recordingRecorder) RecordCacheLookup(_ context.Context, category, tier, outcome string) {
	r.mu.Lock()
	r.events = append(r.events, lookupEvent{category, tier, outcome})
	r.mu.Unlock()
}

func (r *recordingRecorder) count(tier, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.tier == tier && e.outcome == outcome {
			n++
		}
	}
	return n
}
