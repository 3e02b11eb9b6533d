package orchestrate

import (
	"maps"
	"time"

	"github.com/jonwraymond/agriroute/resilience"
)

// RateLimit is an upstream call budget. A zero value disables limiting.
type RateLimit struct {
	Budget int
	Window time.Duration
}

// Enabled reports whether the limit is set.
func (r RateLimit) Enabled() bool {
	return r.Budget > 0 && r.Window > 0
}

// ArgsFunc derives adapter arguments from a request.
type ArgsFunc func(req Request) map[string]any

// Binding declares one adapter and the protections around its upstream.
type Binding struct {
	// Adapter serves the category. Required.
	Adapter Adapter

	// RateLimit is the sliding-window budget for upstream calls.
	RateLimit RateLimit

	// MaxConcurrent caps concurrent upstream calls. Zero disables the bulkhead.
	MaxConcurrent int

	// Retry configures retries of upstream errors. Nil disables retries.
	// RetryIf defaults to upstream errors only.
	Retry *resilience.RetryConfig

	// Breaker configures the circuit breaker. Nil disables it.
	// IsFailure defaults to upstream errors and timeouts.
	Breaker *resilience.CircuitBreakerConfig

	// AttemptTimeout bounds each upstream attempt. Zero relies on the
	// invocation deadline alone.
	AttemptTimeout time.Duration

	// Args builds the adapter arguments.
	// Default: a copy of Request.Params.
	Args ArgsFunc
}

// Category returns the bound adapter's category.
func (b Binding) Category() string {
	if b.Adapter == nil {
		return ""
	}
	return b.Adapter.Category()
}

// ParamsArgs is the default ArgsFunc.
func ParamsArgs(req Request) map[string]any {
	if req.Params == nil {
		return map[string]any{}
	}
	return maps.Clone(req.Params)
}
