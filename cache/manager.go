package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Lookup outcomes reported to a Recorder.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeError   = "error"
	OutcomeCorrupt = "corrupt"
)

// Recorder receives one event per tier consulted during a lookup.
type Recorder interface {
	RecordCacheLookup(ctx context.Context, category, tier, outcome string)
}

// WriteResult is the outcome of writing one entry to one tier. Write
// results are logged and discarded; they never reach the caller.
type WriteResult struct {
	Tier string
	Err  error
}

// OK reports whether the write succeeded.
func (r WriteResult) OK() bool { return r.Err == nil }

// entry is the serialized form held by every tier.
type entry struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// flight is the shared result of a coalesced compute. panicked carries a
// recovered panic so each waiter can re-raise it on its own goroutine.
type flight[T any] struct {
	value    T
	payload  []byte
	panicked any
}

type categoryState struct {
	Category
	fallback *MemoryStore

	durableHits    atomic.Int64
	fallbackHits   atomic.Int64
	misses         atomic.Int64
	durableErrors  atomic.Int64
	fallbackErrors atomic.Int64
	corrupt        atomic.Int64
	writeErrors    atomic.Int64
}

// Manager owns the categories and routes lookups through the tiers.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Categories are fixed at construction.
// - Errors: cache faults are never returned; only compute errors and
// unknown categories are.
type Manager struct {
	categories   map[string]*categoryState
	durable      Store
	logger       *zap.Logger
	now          func() time.Time
	recorder     Recorder
	writeTimeout time.Duration
	group        *singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock sets the clock used for entry expiry and the fallback tiers.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRecorder reports every tier lookup.
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) {
		m.recorder = r
	}
}

// WithWriteTimeout bounds cache writes, which outlive the caller's context.
// Default: 2 seconds
func WithWriteTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.writeTimeout = d
		}
	}
}

// WithCoalesce collapses concurrent misses for the same key into one
// compute. Off by default: duplicate computes are otherwise allowed.
func WithCoalesce(enabled bool) ManagerOption {
	return func(m *Manager) {
		if enabled {
			m.group = &singleflight.Group{}
		} else {
			m.group = nil
		}
	}
}

// NewManager builds a manager over categories. durable may be nil, in which
// case only the fallback tiers are used. Each category gets its own
// fallback MemoryStore sized by its Capacity.
func NewManager(categories []Category, durable Store, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		categories:   make(map[string]*categoryState, len(categories)),
		durable:      durable,
		logger:       zap.NewNop(),
		now:          time.Now,
		writeTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "cache"))

	for _, c := range categories {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.categories[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidCategory, c.Name)
		}
		if c.Capacity == 0 {
			c.Capacity = DefaultCapacity
		}
		m.categories[c.Name] = &categoryState{
			Category: c,
			fallback: NewMemoryStore(MemoryStoreConfig{Capacity: c.Capacity, Now: m.now}),
		}
	}
	return m, nil
}

// Category returns the named category.
func (m *Manager) Category(name string) (Category, bool) {
	cs, ok := m.categories[name]
	if !ok {
		return Category{}, false
	}
	return cs.Category, true
}

// Categories returns the category names, sorted.
func (m *Manager) Categories() []string {
	names := make([]string, 0, len(m.categories))
	for name := range m.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Durable returns the durable tier, or nil.
func (m *Manager) Durable() Store {
	return m.durable
}

// Fallback returns the named category's fallback tier.
func (m *Manager) Fallback(category string) (*MemoryStore, bool) {
	cs, ok := m.categories[category]
	if !ok {
		return nil, false
	}
	return cs.fallback, true
}

// GetOrCompute returns the cached value for (category, args), or calls
// compute and caches its result.
//
// hit reports whether the value came from a tier. err is non-nil only when
// compute fails or the category is unknown; compute errors are never cached.
func GetOrCompute[T any](
	ctx context.Context,
	m *Manager,
	category string,
	args map[string]any,
	compute func(context.Context) (T, error),
) (value T, hit bool, err error) {
	var zero T

	cs, err := m.state(category)
	if err != nil {
		return zero, false, err
	}

	key, err := Key(category, args)
	if err != nil {
		m.logger.Warn("cache key failed, computing uncached",
			zap.String("category", category), zap.Error(err))
		v, err := compute(ctx)
		return v, false, err
	}

	if payload, ok := m.lookup(ctx, cs, key); ok {
		var v T
		err := json.Unmarshal(payload, &v)
		if err == nil {
			return v, true, nil
		}
		m.logger.Warn("cached payload does not decode, invalidating",
			zap.String("category", category), zap.String("key", key), zap.Error(err))
		cs.corrupt.Add(1)
		m.deleteAll(ctx, cs, key)
	}

	if m.group == nil {
		v, err := compute(ctx)
		if err != nil {
			return zero, false, err
		}
		m.store(ctx, cs, key, args, v)
		return v, false, nil
	}

	// The shared compute is detached from the first caller's cancellation
	// and keeps only its deadline; each waiter stops on its own context.
	ch := m.group.DoChan(key, func() (res any, err error) {
		fctx, cancel := detach(ctx)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				res, err = flight[T]{panicked: r}, nil
			}
		}()
		v, err := compute(fctx)
		if err != nil {
			return nil, err
		}
		return flight[T]{value: v, payload: m.store(fctx, cs, key, args, v)}, nil
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case r = <-ch:
	}
	if r.Err != nil {
		if r.Shared && isContextErr(r.Err) && ctx.Err() == nil {
			// The leader's deadline expired; this caller still has time.
			v, err := compute(ctx)
			if err != nil {
				return zero, false, err
			}
			m.store(ctx, cs, key, args, v)
			return v, false, nil
		}
		return zero, false, r.Err
	}
	f := r.Val.(flight[T])
	if f.panicked != nil {
		panic(f.panicked)
	}
	if r.Shared && f.payload != nil {
		var v T
		if err := json.Unmarshal(f.payload, &v); err == nil {
			return v, false, nil
		}
	}
	return f.value, false, nil
}

// detach returns a context that ignores ctx's cancellation but keeps its
// values and deadline.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	out := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(out, deadline)
	}
	return out, func() {}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Invalidate deletes the entry for (category, args) from every tier.
func (m *Manager) Invalidate(ctx context.Context, category string, args map[string]any) error {
	cs, err := m.state(category)
	if err != nil {
		return err
	}
	key, err := Key(category, args)
	if err != nil {
		return err
	}

	var errs []error
	for _, tier := range m.tiers(cs) {
		if err := tier.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// CategoryStats contains per-category cache statistics.
type CategoryStats struct {
	Category       string `json:"category"`
	DurableHits    int64  `json:"durable_hits"`
	FallbackHits   int64  `json:"fallback_hits"`
	Misses         int64  `json:"misses"`
	DurableErrors  int64  `json:"durable_errors"`
	FallbackErrors int64  `json:"fallback_errors"`
	Corrupt        int64  `json:"corrupt"`
	WriteErrors    int64  `json:"write_errors"`
	Evictions      int64  `json:"evictions"`
	Entries        int    `json:"entries"`
	Capacity       int    `json:"capacity"`
}

// Hits returns hits across both tiers.
func (s CategoryStats) Hits() int64 {
	return s.DurableHits + s.FallbackHits
}

// Stats returns statistics for the named category.
func (m *Manager) Stats(category string) (CategoryStats, error) {
	cs, err := m.state(category)
	if err != nil {
		return CategoryStats{}, err
	}
	return CategoryStats{
		Category:       cs.Name,
		DurableHits:    cs.durableHits.Load(),
		FallbackHits:   cs.fallbackHits.Load(),
		Misses:         cs.misses.Load(),
		DurableErrors:  cs.durableErrors.Load(),
		FallbackErrors: cs.fallbackErrors.Load(),
		Corrupt:        cs.corrupt.Load(),
		WriteErrors:    cs.writeErrors.Load(),
		Evictions:      cs.fallback.Evictions(),
		Entries:        cs.fallback.Len(),
		Capacity:       cs.fallback.Capacity(),
	}, nil
}

func (m *Manager) state(category string) (*categoryState, error) {
	cs, ok := m.categories[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return cs, nil
}

// tiers returns the lookup order for a category.
func (m *Manager) tiers(cs *categoryState) []Store {
	if m.durable == nil {
		return []Store{cs.fallback}
	}
	return []Store{m.durable, cs.fallback}
}

// lookup walks the tiers and returns the first live payload. A hit in a
// tier back-fills the tiers after it.
func (m *Manager) lookup(ctx context.Context, cs *categoryState, key string) ([]byte, bool) {
	tiers := m.tiers(cs)
	now := m.now()

	for i, tier := range tiers {
		raw, ok, err := tier.Get(ctx, key)
		if err != nil {
			m.countTierError(cs, tier)
			m.record(ctx, cs.Name, tier.Name(), OutcomeError)
			m.logger.Warn("cache tier unavailable, demoting",
				zap.String("category", cs.Name), zap.String("tier", tier.Name()), zap.Error(err))
			continue
		}
		if !ok {
			m.record(ctx, cs.Name, tier.Name(), OutcomeMiss)
			continue
		}

		var e entry
		if err := json.Unmarshal(raw, &e); err != nil || len(e.Payload) == 0 {
			cs.corrupt.Add(1)
			m.record(ctx, cs.Name, tier.Name(), OutcomeCorrupt)
			m.logger.Warn("undecodable cache entry, invalidating",
				zap.String("category", cs.Name), zap.String("tier", tier.Name()), zap.String("key", key))
			_ = tier.Delete(ctx, key)
			continue
		}
		if !now.Before(e.ExpiresAt) {
			m.record(ctx, cs.Name, tier.Name(), OutcomeMiss)
			_ = tier.Delete(ctx, key)
			continue
		}

		if tier == m.durable {
			cs.durableHits.Add(1)
		} else {
			cs.fallbackHits.Add(1)
		}
		m.record(ctx, cs.Name, tier.Name(), OutcomeHit)

		for _, lower := range tiers[i+1:] {
			if err := lower.Set(ctx, key, raw, e.ExpiresAt.Sub(now)); err != nil {
				m.logger.Debug("cache back-fill failed",
					zap.String("category", cs.Name), zap.String("tier", lower.Name()), zap.Error(err))
			}
		}
		return e.Payload, true
	}

	cs.misses.Add(1)
	return nil, false
}

// store serializes value and writes it to every tier. It returns the
// payload, or nil when nothing was cached.
func (m *Manager) store(ctx context.Context, cs *categoryState, key string, args map[string]any, value any) []byte {
	ttl := cs.TTLFor(args)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		cs.writeErrors.Add(1)
		m.logger.Warn("cache value does not serialize, skipping write",
			zap.String("category", cs.Name), zap.Error(err))
		return nil
	}

	now := m.now()
	raw, err := json.Marshal(entry{Payload: payload, CreatedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		cs.writeErrors.Add(1)
		m.logger.Warn("cache entry does not serialize, skipping write",
			zap.String("category", cs.Name), zap.Error(err))
		return nil
	}

	for _, r := range m.write(ctx, cs, key, raw, ttl) {
		if !r.OK() {
			cs.writeErrors.Add(1)
			m.logger.Warn("cache write failed",
				zap.String("category", cs.Name), zap.String("tier", r.Tier), zap.Error(r.Err))
		}
	}
	return payload
}

// write stores raw in every tier. The write is detached from the caller's
// cancellation so a computed result is kept even if the caller gave up.
func (m *Manager) write(ctx context.Context, cs *categoryState, key string, raw []byte, ttl time.Duration) []WriteResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.writeTimeout)
	defer cancel()

	tiers := m.tiers(cs)
	results := make([]WriteResult, 0, len(tiers))
	for _, tier := range tiers {
		results = append(results, WriteResult{Tier: tier.Name(), Err: tier.Set(ctx, key, raw, ttl)})
	}
	return results
}

func (m *Manager) deleteAll(ctx context.Context, cs *categoryState, key string) {
	for _, tier := range m.tiers(cs) {
		_ = tier.Delete(ctx, key)
	}
}

func (m *Manager) countTierError(cs *categoryState, tier Store) {
	if tier == m.durable {
		cs.durableErrors.Add(1)
	} else {
		cs.fallbackErrors.Add(1)
	}
}

func (m *Manager) record(ctx context.Context, category, tier, outcome string) {
	if m.recorder != nil {
		m.recorder.RecordCacheLookup(ctx, category, tier, outcome)
	}
}
