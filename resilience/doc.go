// Package resilience protects slow or rate-limited upstream providers.
//
// # Patterns
//
//   - Sliding window: admits at most Budget calls in any trailing Window.
//     Exhaustion makes the caller wait; it never rejects. Limiters keeps one
//     window per operation name.
//
//   - Bulkhead: caps concurrent calls to one provider.
//
//   - Circuit breaker: fails fast after consecutive provider failures.
//
//   - Retry: repeats attempts whose errors are classified retryable.
//
//   - Timeout: bounds one attempt.
//
// # Usage
//
// A Guard composes the patterns for one provider:
//
//	limiters := resilience.NewLimiters()
//	weather, _ := limiters.Declare("weather", 30, time.Minute)
//
//	guard := resilience.NewGuard(
//	    resilience.WithLimiter(weather),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	    resilience.WithAttemptTimeout(5*time.Second),
//	)
//
//	err := guard.Execute(ctx, func(ctx context.Context) error {
//	    return callWeatherProvider(ctx)
//	})
package resilience
