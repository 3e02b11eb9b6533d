// Package observe provides tracing, metrics and logging for query dispatch.
//
// An Observer owns the OpenTelemetry providers, a zap-backed Logger and the
// Prometheus registry served on /metrics. Middleware wraps one tool
// invocation with a span, metrics and a log line; Metrics also records
// cache tier lookups and rate-limiter waits.
package observe
