package health

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/agriroute/cache"
	"github.com/jonwraymond/agriroute/resilience"
)

// noPingStore is a durable tier without Ping.
type noPingStore struct{ cache.Store }

func (noPingStore) Name() string { return "custom" }

func TestStoreChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	checker := NewStoreChecker(cache.NewRedisStore(client, "agri"))

	assert.Equal(t, "cache.durable", checker.Name())
	r := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, "redis", r.Details["tier"])

	mr.Close()
	r = checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.ErrorIs(t, r.Error, ErrCheckFailed)
}

func TestStoreChecker_NoDurableTier(t *testing.T) {
	r := NewStoreChecker(nil).Check(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.ErrorIs(t, r.Error, ErrNoDurableTier)
}

func TestStoreChecker_WithoutPing(t *testing.T) {
	r := NewStoreChecker(noPingStore{}).Check(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)
}

func TestStoreChecker_SQLite(t *testing.T) {
	store, err := cache.NewSQLiteStore(context.Background(), cache.SQLiteStoreConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r := NewStoreChecker(store).Check(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, "sqlite", r.Details["tier"])
}

func TestFallbackChecker(t *testing.T) {
	m, err := cache.NewManager([]cache.Category{
		{Name: "weather", Capacity: 2, DefaultTTL: time.Minute},
		{Name: "search", Capacity: 10, DefaultTTL: time.Minute},
	}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := range 3 {
		_, _, err := cache.GetOrCompute(ctx, m, "weather", map[string]any{"day": i},
			func(context.Context) (json.RawMessage, error) { return json.RawMessage(`1`), nil })
		require.NoError(t, err)
	}

	r := NewFallbackChecker(m, FallbackCheckerConfig{}).Check(ctx)
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Contains(t, r.Message, "weather")
	assert.NotContains(t, r.Message, "search")

	weather := r.Details["weather"].(map[string]any)
	assert.Equal(t, 2, weather["entries"])
	assert.EqualValues(t, 1, weather["evictions"])
}

func TestLimiterChecker(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiters := resilience.NewLimiters(resilience.WithClock(func() time.Time { return now }))
	_, err := limiters.Declare("weather", 2, time.Second)
	require.NoError(t, err)
	_, err = limiters.Declare("search", 5, time.Second)
	require.NoError(t, err)

	checker := NewLimiterChecker(limiters)
	assert.Equal(t, StatusHealthy, checker.Check(context.Background()).Status)

	ctx := context.Background()
	require.NoError(t, limiters.Acquire(ctx, "weather", 2, time.Second))
	require.NoError(t, limiters.Acquire(ctx, "weather", 2, time.Second))

	r := checker.Check(ctx)
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, "at full budget: weather", r.Message)

	now = now.Add(2 * time.Second)
	assert.Equal(t, StatusHealthy, checker.Check(ctx).Status)
}

type breakers map[string]*resilience.CircuitBreaker

func (b breakers) Categories() []string {
	return []string{"regulatory", "search", "weather"}
}

func (b breakers) Breaker(name string) (*resilience.CircuitBreaker, bool) {
	cb, ok := b[name]
	return cb, ok
}

func TestBreakerChecker(t *testing.T) {
	weather := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	search := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	checker := NewBreakerChecker(breakers{"weather": weather, "search": search})
	ctx := context.Background()
	fail := func(context.Context) error { return errors.New("502") }

	assert.Equal(t, StatusHealthy, checker.Check(ctx).Status)

	_ = weather.Execute(ctx, fail)
	r := checker.Check(ctx)
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, "open: weather", r.Message)

	_ = search.Execute(ctx, fail)
	assert.Equal(t, StatusUnhealthy, checker.Check(ctx).Status)
}
