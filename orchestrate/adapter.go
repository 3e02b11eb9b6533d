package orchestrate

import (
	"context"
	"encoding/json"
)

// Adapter calls one upstream tool.
//
// Contract:
//   - Concurrency: Invoke must be safe for concurrent use.
//   - Context: Invoke must honor cancellation and deadlines.
//   - Errors: failures should be *envelope.Error values of type validation,
//     data missing or upstream. Any other error is recorded as unknown.
//   - Ownership: args must not be modified.
type Adapter interface {
	// Category is the cache category and tool family this adapter serves.
	Category() string

	// Invoke performs the upstream call and returns its JSON result.
	Invoke(ctx context.Context, args map[string]any) (json.RawMessage, error)
}

// AdapterFunc adapts a function to Adapter.
type AdapterFunc struct {
	Name string
	Fn   func(ctx context.Context, args map[string]any) (json.RawMessage, error)
}

// NewAdapterFunc returns an Adapter for category backed by fn.
func NewAdapterFunc(category string, fn func(ctx context.Context, args map[string]any) (json.RawMessage, error)) AdapterFunc {
	return AdapterFunc{Name: category, Fn: fn}
}

// Category returns the adapter's category.
func (a AdapterFunc) Category() string { return a.Name }

// Invoke calls the wrapped function.
func (a AdapterFunc) Invoke(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	return a.Fn(ctx, args)
}
