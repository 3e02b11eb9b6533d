package health

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jonwraymond/agriroute/cache"
	"github.com/jonwraymond/agriroute/resilience"
)

// StoreChecker pings the durable cache tier.
type StoreChecker struct {
	store cache.Store
}

// NewStoreChecker checks store. A nil store, or one that cannot be pinged,
// reports the cache as running on its fallback tier only.
func NewStoreChecker(store cache.Store) *StoreChecker {
	return &StoreChecker{store: store}
}

// Name returns "cache.durable".
func (c *StoreChecker) Name() string {
	return "cache.durable"
}

// Check pings the durable tier.
func (c *StoreChecker) Check(ctx context.Context) Result {
	if c.store == nil {
		return Degraded("no durable tier configured; serving from fallback").WithError(ErrNoDurableTier)
	}
	details := map[string]any{"tier": c.store.Name()}

	pinger, ok := c.store.(cache.Pinger)
	if !ok {
		return Healthy("durable tier does not support ping").WithDetails(details)
	}
	if err := pinger.Ping(ctx); err != nil {
		return Degraded("durable tier unreachable; serving from fallback").
			WithDetails(details).
			WithError(fmt.Errorf("%w: %w", ErrCheckFailed, err))
	}
	return Healthy("durable tier reachable").WithDetails(details)
}

// FallbackCheckerConfig configures the FallbackChecker.
type FallbackCheckerConfig struct {
	// WarnOccupancy is the fill ratio at which a category's fallback tier is
	// reported. It is informational: a full LRU is still correct.
	// Default: 0.9
	WarnOccupancy float64
}

// FallbackChecker reports fallback tier occupancy per category.
type FallbackChecker struct {
	manager *cache.Manager
	config  FallbackCheckerConfig
}

// NewFallbackChecker checks every category of manager.
func NewFallbackChecker(manager *cache.Manager, config FallbackCheckerConfig) *FallbackChecker {
	if config.WarnOccupancy <= 0 || config.WarnOccupancy > 1 {
		config.WarnOccupancy = 0.9
	}
	return &FallbackChecker{manager: manager, config: config}
}

// Name returns "cache.fallback".
func (c *FallbackChecker) Name() string {
	return "cache.fallback"
}

// Check reports entries, capacity, evictions and hit counts per category.
// It is always healthy; full categories are listed in the message.
func (c *FallbackChecker) Check(ctx context.Context) Result {
	details := make(map[string]any)
	var full []string

	for _, name := range c.manager.Categories() {
		if ctx.Err() != nil {
			return Unhealthy("check cancelled", ctx.Err())
		}
		stats, err := c.manager.Stats(name)
		if err != nil {
			continue
		}
		details[name] = map[string]any{
			"entries":   stats.Entries,
			"capacity":  stats.Capacity,
			"evictions": stats.Evictions,
			"hits":      stats.Hits(),
			"misses":    stats.Misses,
		}
		if stats.Capacity > 0 && float64(stats.Entries) >= c.config.WarnOccupancy*float64(stats.Capacity) {
			full = append(full, name)
		}
	}

	if len(full) > 0 {
		return Healthy("fallback near capacity: " + strings.Join(full, ", ")).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d categories", len(details))).WithDetails(details)
}

// LimiterChecker reports upstream operations at full budget.
type LimiterChecker struct {
	limiters *resilience.Limiters
}

// NewLimiterChecker checks every declared operation of limiters.
func NewLimiterChecker(limiters *resilience.Limiters) *LimiterChecker {
	return &LimiterChecker{limiters: limiters}
}

// Name returns "ratelimit".
func (c *LimiterChecker) Name() string {
	return "ratelimit"
}

// Check is Degraded while any operation's window is saturated, because new
// upstream calls for it will wait.
func (c *LimiterChecker) Check(ctx context.Context) Result {
	snapshot := c.limiters.Snapshot()
	details := make(map[string]any, len(snapshot))
	var saturated []string

	for op, stats := range snapshot {
		details[op] = map[string]any{
			"budget":    stats.Budget,
			"window":    stats.Window.String(),
			"in_window": stats.InWindow,
			"waits":     stats.Waits,
			"waited":    stats.Waited.String(),
		}
		if stats.Saturated() {
			saturated = append(saturated, op)
		}
	}
	sort.Strings(saturated)

	if len(saturated) > 0 {
		return Degraded("at full budget: " + strings.Join(saturated, ", ")).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d operations under budget", len(snapshot))).WithDetails(details)
}

// BreakerSource lists circuit breakers by provider name.
type BreakerSource interface {
	Categories() []string
	Breaker(category string) (*resilience.CircuitBreaker, bool)
}

// BreakerChecker reports open circuits.
type BreakerChecker struct {
	source BreakerSource
}

// NewBreakerChecker checks every breaker of source.
func NewBreakerChecker(source BreakerSource) *BreakerChecker {
	return &BreakerChecker{source: source}
}

// Name returns "upstream".
func (c *BreakerChecker) Name() string {
	return "upstream"
}

// Check is Degraded while any circuit is open, and Unhealthy when every
// breaker is open.
func (c *BreakerChecker) Check(ctx context.Context) Result {
	details := make(map[string]any)
	var open []string
	breakers := 0

	for _, name := range c.source.Categories() {
		cb, ok := c.source.Breaker(name)
		if !ok {
			continue
		}
		breakers++
		m := cb.Metrics()
		details[name] = map[string]any{
			"state":    m.State.String(),
			"failures": m.Failures,
		}
		if m.State == resilience.StateOpen {
			open = append(open, name)
		}
	}

	switch {
	case breakers > 0 && len(open) == breakers:
		return Unhealthy("all providers open: "+strings.Join(open, ", "), ErrCheckFailed).WithDetails(details)
	case len(open) > 0:
		return Degraded("open: " + strings.Join(open, ", ")).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d providers closed", breakers)).WithDetails(details)
}
