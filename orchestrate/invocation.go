package orchestrate

import (
	"encoding/json"
	"sync"
	"time"
)

// Status is the lifecycle state of an Invocation.
type Status string

const (
	StatusPending      Status = "pending"
	StatusCacheHit     Status = "cache_hit"
	StatusUpstreamCall Status = "upstream_call"
	StatusSucceeded    Status = "succeeded"
	StatusFailed       Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Request is one caller query.
type Request struct {
	// ID identifies the request. Generated when empty.
	ID string `json:"request_id,omitempty"`

	// Query is the raw user text.
	Query string `json:"query"`

	// Params are structured arguments passed to adapters, such as a
	// location or a forecast horizon.
	Params map[string]any `json:"params,omitempty"`
}

// Invocation is one dispatch of one category for one request.
// It lives only until the envelope is built.
type Invocation struct {
	mu sync.Mutex

	Category string
	Args     map[string]any
	Value    json.RawMessage
	Err      error
	Cached   bool
	Latency  time.Duration

	path []Status
}

func newInvocation(category string) *Invocation {
	return &Invocation{Category: category, path: []Status{StatusPending}}
}

func (i *Invocation) transition(s Status) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.path[len(i.path)-1].Terminal() {
		return
	}
	i.path = append(i.path, s)
}

// Status returns the current state.
func (i *Invocation) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.path[len(i.path)-1]
}

// Path returns every state the invocation passed through, in order.
func (i *Invocation) Path() []Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Status, len(i.path))
	copy(out, i.path)
	return out
}

func (i *Invocation) succeed(value json.RawMessage, cached bool, latency time.Duration) {
	i.mu.Lock()
	i.Value, i.Cached, i.Latency = value, cached, latency
	i.mu.Unlock()
	i.transition(StatusSucceeded)
}

func (i *Invocation) fail(err error, latency time.Duration) {
	i.mu.Lock()
	i.Err, i.Latency = err, latency
	i.mu.Unlock()
	i.transition(StatusFailed)
}
