package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/agriroute/envelope"
)

// DispatchSpanName is the name of the span covering one whole query.
const DispatchSpanName = "agriroute.dispatch"

// InvocationMeta describes one category invocation for telemetry.
type InvocationMeta struct {
	Category  string // Category name (required)
	RequestID string // Request the invocation belongs to (optional)
	Tier      string // Classification tier of the request (optional)
}

// SpanName returns the deterministic span name for this invocation.
// Format: agriroute.invoke.<category>
func (m InvocationMeta) SpanName() string {
	return "agriroute.invoke." + m.Category
}

func (m InvocationMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("agriroute.category", m.Category)}
	if m.RequestID != "" {
		attrs = append(attrs, attribute.String("agriroute.request_id", m.RequestID))
	}
	if m.Tier != "" {
		attrs = append(attrs, attribute.String("agriroute.tier", m.Tier))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with invocation-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for one category invocation.
	StartSpan(ctx context.Context, meta InvocationMeta) (context.Context, trace.Span)

	// StartDispatch starts the parent span for a whole query.
	StartDispatch(ctx context.Context, requestID, tier string) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error and its type.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

// NewNoopTracer returns a tracer whose spans are never recorded.
func NewNoopTracer() Tracer {
	return NewTracer(nil)
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta InvocationMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("agriroute.error", false))
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) StartDispatch(ctx context.Context, requestID, tier string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, DispatchSpanName,
		trace.WithAttributes(
			attribute.String("agriroute.request_id", requestID),
			attribute.String("agriroute.tier", tier),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.Bool("agriroute.error", true),
			attribute.String("agriroute.error_type", string(envelope.TypeOf(err))),
		)
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
