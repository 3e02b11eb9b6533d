package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/agriroute/resilience"
)

// UpstreamConfig binds a category to a JSON HTTP provider.
type UpstreamConfig struct {
	Category string `yaml:"category"`

	// Endpoint may be a secret reference.
	Endpoint string `yaml:"endpoint"`

	// Default: POST
	Method string `yaml:"method"`

	// Headers values may be secret references.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds each HTTP request. Zero relies on the invocation
	// deadline.
	Timeout time.Duration `yaml:"timeout"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// MaxConcurrent caps concurrent calls. Zero disables the bulkhead.
	MaxConcurrent int `yaml:"max_concurrent"`

	// Retry is disabled when nil.
	Retry *RetryConfig `yaml:"retry"`

	// Breaker is disabled when nil.
	Breaker *BreakerConfig `yaml:"breaker"`

	// AttemptTimeout bounds each retry attempt.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// RateLimitConfig is a sliding-window budget. Zero values disable it.
type RateLimitConfig struct {
	Budget int           `yaml:"budget"`
	Window time.Duration `yaml:"window"`
}

// RetryConfig configures retries of upstream errors.
type RetryConfig struct {
	// Default: 2
	MaxAttempts int `yaml:"max_attempts"`
	// Default: 200ms
	InitialDelay time.Duration `yaml:"initial_delay"`
	// Default: 5s
	MaxDelay time.Duration `yaml:"max_delay"`
	Jitter   bool          `yaml:"jitter"`
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// Default: 5
	MaxFailures int `yaml:"max_failures"`
	// Default: 30s
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

func (u UpstreamConfig) validate() error {
	if u.Category == "" {
		return errors.New("upstream: category is required")
	}
	if u.Endpoint == "" {
		return fmt.Errorf("upstream %q: endpoint is required", u.Category)
	}
	switch strings.ToUpper(u.Method) {
	case "", http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("upstream %q: method %q is not GET or POST", u.Category, u.Method)
	}
	if (u.RateLimit.Budget > 0) != (u.RateLimit.Window > 0) {
		return fmt.Errorf("upstream %q: rate_limit needs both budget and window", u.Category)
	}
	if u.RateLimit.Budget < 0 || u.RateLimit.Window < 0 || u.MaxConcurrent < 0 {
		return fmt.Errorf("upstream %q: limits must not be negative", u.Category)
	}
	if u.Timeout < 0 || u.AttemptTimeout < 0 {
		return fmt.Errorf("upstream %q: timeouts must not be negative", u.Category)
	}
	return nil
}

// ResilienceRetry returns the resilience retry configuration, or nil.
// RetryIf is left to the orchestrator.
func (u UpstreamConfig) ResilienceRetry() *resilience.RetryConfig {
	if u.Retry == nil {
		return nil
	}
	return &resilience.RetryConfig{
		MaxAttempts:  u.Retry.MaxAttempts,
		InitialDelay: u.Retry.InitialDelay,
		MaxDelay:     u.Retry.MaxDelay,
		Jitter:       u.Retry.Jitter,
	}
}

// ResilienceBreaker returns the circuit breaker configuration, or nil.
func (u UpstreamConfig) ResilienceBreaker() *resilience.CircuitBreakerConfig {
	if u.Breaker == nil {
		return nil
	}
	return &resilience.CircuitBreakerConfig{
		MaxFailures:  u.Breaker.MaxFailures,
		ResetTimeout: u.Breaker.ResetTimeout,
	}
}
