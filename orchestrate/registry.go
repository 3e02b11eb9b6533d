package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonwraymond/agriroute/cache"
	"github.com/jonwraymond/agriroute/envelope"
	"github.com/jonwraymond/agriroute/resilience"
)

// route is a binding resolved at startup.
type route struct {
	adapter Adapter
	args    ArgsFunc
	guard   *resilience.Guard
}

// Registry maps categories to resolved bindings. It is immutable once built.
type Registry struct {
	manager  *cache.Manager
	limiters *resilience.Limiters
	routes   map[string]*route
}

// NewRegistry resolves bindings against the cache manager.
//
// Every binding's category must be declared by manager. Rate limits are
// declared on limiters under the category name; limiters may be nil when no
// binding sets a RateLimit.
func NewRegistry(manager *cache.Manager, limiters *resilience.Limiters, bindings ...Binding) (*Registry, error) {
	if manager == nil {
		return nil, fmt.Errorf("%w: cache manager is required", ErrInvalidBinding)
	}
	if limiters == nil {
		limiters = resilience.NewLimiters()
	}

	r := &Registry{
		manager:  manager,
		limiters: limiters,
		routes:   make(map[string]*route, len(bindings)),
	}

	for i, b := range bindings {
		name := b.Category()
		if name == "" {
			return nil, fmt.Errorf("%w: binding %d has no adapter or category", ErrInvalidBinding, i)
		}
		if _, dup := r.routes[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBinding, name)
		}
		if _, ok := manager.Category(name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrNoCacheCategory, name)
		}

		guard, err := r.guardFor(name, b)
		if err != nil {
			return nil, err
		}

		args := b.Args
		if args == nil {
			args = ParamsArgs
		}
		r.routes[name] = &route{adapter: b.Adapter, args: args, guard: guard}
	}
	return r, nil
}

func (r *Registry) guardFor(name string, b Binding) (*resilience.Guard, error) {
	var opts []resilience.GuardOption

	if b.RateLimit.Enabled() {
		w, err := r.limiters.Declare(name, b.RateLimit.Budget, b.RateLimit.Window)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidBinding, name, err)
		}
		opts = append(opts, resilience.WithLimiter(w))
	} else if b.RateLimit != (RateLimit{}) {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidBinding, name, resilience.ErrInvalidWindow)
	}

	if b.MaxConcurrent > 0 {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: b.MaxConcurrent,
		})))
	}

	if b.Breaker != nil {
		cfg := *b.Breaker
		if cfg.IsFailure == nil {
			cfg.IsFailure = countsAgainstProvider
		}
		opts = append(opts, resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(cfg)))
	}

	if b.Retry != nil {
		cfg := *b.Retry
		if cfg.RetryIf == nil {
			cfg.RetryIf = envelope.Retryable
		}
		opts = append(opts, resilience.WithRetry(resilience.NewRetry(cfg)))
	}

	opts = append(opts, resilience.WithAttemptTimeout(b.AttemptTimeout))
	return resilience.NewGuard(opts...), nil
}

// countsAgainstProvider reports whether err reflects provider health.
// Validation and data-missing errors are answers, not outages.
func countsAgainstProvider(err error) bool {
	switch envelope.TypeOf(err) {
	case envelope.TypeUpstream, envelope.TypeTimeout:
		return true
	}
	return false
}

// Categories returns the bound categories, sorted.
func (r *Registry) Categories() []string {
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether category is bound.
func (r *Registry) Has(category string) bool {
	_, ok := r.routes[category]
	return ok
}

// Manager returns the cache manager.
func (r *Registry) Manager() *cache.Manager {
	return r.manager
}

// Limiters returns the rate limiters.
func (r *Registry) Limiters() *resilience.Limiters {
	return r.limiters
}

// Breaker returns the circuit breaker of category, if it has one.
func (r *Registry) Breaker(category string) (*resilience.CircuitBreaker, bool) {
	rt, ok := r.routes[category]
	if !ok || rt.guard.Breaker() == nil {
		return nil, false
	}
	return rt.guard.Breaker(), true
}

func (r *Registry) route(category string) (*route, bool) {
	rt, ok := r.routes[category]
	return rt, ok
}

// call runs the adapter under the guard.
func (rt *route) call(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	var out json.RawMessage
	err := rt.guard.Execute(ctx, func(ctx context.Context) error {
		v, err := rt.adapter.Invoke(ctx, args)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
