package orchestrate

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonwraymond/agriroute/cache"
	"github.com/jonwraymond/agriroute/classify"
	"github.com/jonwraymond/agriroute/resilience"
)

var testCategories = []string{"weather", "regulatory", "search"}

func newTestManager(t testing.TB, names ...string) *cache.Manager {
	t.Helper()
	if len(names) == 0 {
		names = testCategories
	}
	cats := make([]cache.Category, len(names))
	for i, n := range names {
		cats[i] = cache.Category{Name: n, Capacity: 16, DefaultTTL: time.Minute}
	}
	m, err := cache.NewManager(cats, nil, cache.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return m
}

// countingAdapter returns a fixed value and counts calls.
type countingAdapter struct {
	name  string
	calls atomic.Int64
	fn    func(ctx context.Context, args map[string]any) (json.RawMessage, error)
}

func newCounting(name string, fn func(ctx context.Context, args map[string]any) (json.RawMessage, error)) *countingAdapter {
	if fn == nil {
		fn = func(context.Context, map[string]any) (json.RawMessage, error) {
			return json.RawMessage(`{"source":"` + name + `"}`), nil
		}
	}
	return &countingAdapter{name: name, fn: fn}
}

func (a *countingAdapter) Category() string { return a.name }

func (a *countingAdapter) Invoke(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	a.calls.Add(1)
	return a.fn(ctx, args)
}

func newTestOrchestrator(t testing.TB, cfg Config, bindings ...Binding) *Orchestrator {
	t.Helper()
	reg, err := NewRegistry(newTestManager(t), resilience.NewLimiters(), bindings...)
	require.NoError(t, err)
	return New(nil, reg, cfg, WithLogger(zaptest.NewLogger(t)))
}

func classification(tier classify.Tier, categories ...string) classify.Classification {
	return classify.Classification{
		Tier:       tier,
		Categories: categories,
		Verbosity:  classify.VerbosityFor(tier),
	}
}
