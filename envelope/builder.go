package envelope

import (
	"encoding/json"
	"sync"
	"time"
)

// Builder accumulates per-category outcomes in completion order.
//
// Contract:
// - Concurrency: safe for concurrent use by invocation goroutines.
// - Errors: recording and building never fail.
type Builder struct {
	mu        sync.Mutex
	requestID string
	cls       Classification
	started   time.Time
	results   []Result
}

// NewBuilder starts an envelope for one query.
func NewBuilder(requestID string, cls Classification) *Builder {
	if cls.Categories == nil {
		cls.Categories = []string{}
	}
	return &Builder{
		requestID: requestID,
		cls:       cls,
		started:   time.Now(),
		results:   make([]Result, 0, len(cls.Categories)),
	}
}

// Succeeded records a value for category.
func (b *Builder) Succeeded(category string, value json.RawMessage, cached bool, latency time.Duration) {
	b.add(Result{
		Category:  category,
		Success:   true,
		Value:     value,
		Cached:    cached,
		LatencyMs: latency.Milliseconds(),
	})
}

// Failed records err for category. A nil err is recorded as an unknown error.
func (b *Builder) Failed(category string, err error, latency time.Duration) {
	e := Normalize(category, err)
	if e == nil {
		e = &Error{Type: TypeUnknown, Category: category, Message: "invocation failed without an error"}
	}
	b.add(Result{
		Category:  category,
		Success:   false,
		ErrorType: e.Type,
		Message:   e.Message,
		LatencyMs: latency.Milliseconds(),
	})
}

func (b *Builder) add(r Result) {
	b.mu.Lock()
	b.results = append(b.results, r)
	b.mu.Unlock()
}

// Build returns the envelope. It may be called more than once.
func (b *Builder) Build() *Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	results := make([]Result, len(b.results))
	copy(results, b.results)

	success := false
	for _, r := range results {
		if r.Success {
			success = true
			break
		}
	}

	return &Envelope{
		RequestID:      b.requestID,
		Success:        success,
		Results:        results,
		Classification: b.cls,
		DurationMs:     time.Since(b.started).Milliseconds(),
	}
}
