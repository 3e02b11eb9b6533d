package orchestrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/agriroute/resilience"
)

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name     string
		bindings []Binding
		wantErr  error
	}{
		{
			name:     "valid",
			bindings: []Binding{{Adapter: newCounting("weather", nil)}, {Adapter: newCounting("search", nil)}},
		},
		{
			name:     "nil adapter",
			bindings: []Binding{{}},
			wantErr:  ErrInvalidBinding,
		},
		{
			name:     "duplicate",
			bindings: []Binding{{Adapter: newCounting("weather", nil)}, {Adapter: newCounting("weather", nil)}},
			wantErr:  ErrDuplicateBinding,
		},
		{
			name:     "no cache category",
			bindings: []Binding{{Adapter: newCounting("soil", nil)}},
			wantErr:  ErrNoCacheCategory,
		},
		{
			name:     "half-set rate limit",
			bindings: []Binding{{Adapter: newCounting("weather", nil), RateLimit: RateLimit{Budget: 5}}},
			wantErr:  resilience.ErrInvalidWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(newTestManager(t), nil, tt.bindings...)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewRegistry_RequiresManager(t *testing.T) {
	_, err := NewRegistry(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidBinding)
}

func TestRegistry_DeclaresLimits(t *testing.T) {
	limiters := resilience.NewLimiters()
	reg, err := NewRegistry(newTestManager(t), limiters,
		Binding{Adapter: newCounting("weather", nil), RateLimit: RateLimit{Budget: 10, Window: time.Second}},
		Binding{Adapter: newCounting("search", nil)},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"search", "weather"}, reg.Categories())
	assert.True(t, reg.Has("weather"))
	assert.False(t, reg.Has("regulatory"))
	assert.Equal(t, []string{"weather"}, limiters.Operations())

	w, ok := limiters.Get("weather")
	require.True(t, ok)
	assert.Equal(t, 10, w.Stats().Budget)
	assert.Same(t, limiters, reg.Limiters())
}

func TestRegistry_Breaker(t *testing.T) {
	reg, err := NewRegistry(newTestManager(t), nil,
		Binding{Adapter: newCounting("weather", nil), Breaker: &resilience.CircuitBreakerConfig{}},
		Binding{Adapter: newCounting("search", nil)},
	)
	require.NoError(t, err)

	_, ok := reg.Breaker("weather")
	assert.True(t, ok)
	_, ok = reg.Breaker("search")
	assert.False(t, ok)
}

func TestParamsArgs_Copies(t *testing.T) {
	params := map[string]any{"location": "Dourdan"}
	args := ParamsArgs(Request{Params: params})
	args["location"] = "Étampes"

	assert.Equal(t, "Dourdan", params["location"])
	assert.Equal(t, map[string]any{}, ParamsArgs(Request{}))
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusCacheHit.Terminal())
	assert.False(t, StatusUpstreamCall.Terminal())
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
