package observe

import (
	"context"
	"encoding/json"
	"time"
)

// InvokeFunc is the signature of one category invocation.
// The bool result reports whether the value came from cache.
type InvokeFunc func(ctx context.Context, meta InvocationMeta) (json.RawMessage, bool, error)

// Middleware wraps invocations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a function safe for concurrent use.
//   - Context: the span is propagated through ctx to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = NewLoggerFromZap(nil)
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Tracer returns the middleware's tracer.
func (m *Middleware) Tracer() Tracer { return m.tracer }

// Metrics returns the middleware's metrics.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Wrap wraps fn with a span, invocation metrics and one log line.
func (m *Middleware) Wrap(fn InvokeFunc) InvokeFunc {
	return func(ctx context.Context, meta InvocationMeta) (json.RawMessage, bool, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		value, cached, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordInvocation(ctx, meta, duration, cached, err)

		logger := m.logger.WithInvocation(meta)
		fields := []Field{
			{Key: "duration_ms", Value: duration.Milliseconds()},
			{Key: "cached", Value: cached},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err})
			logger.Warn(ctx, "invocation failed", fields...)
		} else {
			logger.Info(ctx, "invocation completed", fields...)
		}

		return value, cached, err
	}
}

// MiddlewareFromObserver builds a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
