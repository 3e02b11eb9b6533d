package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/agriroute/envelope"
)

// Metrics records invocation, cache and limiter metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly and never block on ctx.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordInvocation records one category invocation and its outcome.
	// A nil err is a success; cached marks results served from cache.
	RecordInvocation(ctx context.Context, meta InvocationMeta, duration time.Duration, cached bool, err error)

	// RecordCacheLookup records one tier consulted during a cache lookup.
	RecordCacheLookup(ctx context.Context, category, tier, outcome string)

	// RecordLimiterWait records time spent waiting on an upstream rate limit.
	RecordLimiterWait(ctx context.Context, operation string, waited time.Duration)

	// RecordDispatch records one whole query.
	RecordDispatch(ctx context.Context, tier string, targets, failures int, duration time.Duration)
}

type metricsImpl struct {
	invocations  metric.Int64Counter
	errors       metric.Int64Counter
	durationHist metric.Float64Histogram
	lookups      metric.Int64Counter
	limiterWaits metric.Int64Counter
	limiterHist  metric.Float64Histogram
	dispatches   metric.Int64Counter
	dispatchHist metric.Float64Histogram
}

// NewMetrics creates instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.invocations, err = meter.Int64Counter(
		"agriroute.invoke.total",
		metric.WithDescription("Total number of category invocations"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter(
		"agriroute.invoke.errors",
		metric.WithDescription("Total number of failed category invocations"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.durationHist, err = meter.Float64Histogram(
		"agriroute.invoke.duration_ms",
		metric.WithDescription("Category invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.lookups, err = meter.Int64Counter(
		"agriroute.cache.lookups",
		metric.WithDescription("Cache tier lookups by outcome"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}
	if m.limiterWaits, err = meter.Int64Counter(
		"agriroute.limiter.waits",
		metric.WithDescription("Number of calls delayed by an upstream rate limit"),
		metric.WithUnit("{wait}"),
	); err != nil {
		return nil, err
	}
	if m.limiterHist, err = meter.Float64Histogram(
		"agriroute.limiter.wait_ms",
		metric.WithDescription("Time spent waiting on an upstream rate limit"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.dispatches, err = meter.Int64Counter(
		"agriroute.dispatch.total",
		metric.WithDescription("Total number of dispatched queries"),
		metric.WithUnit("{query}"),
	); err != nil {
		return nil, err
	}
	if m.dispatchHist, err = meter.Float64Histogram(
		"agriroute.dispatch.duration_ms",
		metric.WithDescription("Query dispatch duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metricsImpl) RecordInvocation(ctx context.Context, meta InvocationMeta, duration time.Duration, cached bool, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("category", meta.Category),
		attribute.Bool("cached", cached),
	}
	m.invocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("category", meta.Category),
			attribute.String("error_type", string(envelope.TypeOf(err))),
		))
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, category, tier, outcome string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("tier", tier),
		attribute.String("outcome", outcome),
	))
}

func (m *metricsImpl) RecordLimiterWait(ctx context.Context, operation string, waited time.Duration) {
	opt := metric.WithAttributes(attribute.String("operation", operation))
	m.limiterWaits.Add(ctx, 1, opt)
	m.limiterHist.Record(ctx, float64(waited.Milliseconds()), opt)
}

func (m *metricsImpl) RecordDispatch(ctx context.Context, tier string, targets, failures int, duration time.Duration) {
	outcome := "success"
	switch {
	case targets > 0 && failures == targets:
		outcome = "failure"
	case failures > 0:
		outcome = "partial"
	}
	opt := metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("outcome", outcome),
	)
	m.dispatches.Add(ctx, 1, opt)
	m.dispatchHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordInvocation(context.Context, InvocationMeta, time.Duration, bool, error) {}
func (NoopMetrics) RecordCacheLookup(context.Context, string, string, string)                    {}
func (NoopMetrics) RecordLimiterWait(context.Context, string, time.Duration)                     {}
func (NoopMetrics) RecordDispatch(context.Context, string, int, int, time.Duration)              {}
