package observe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/agriroute/envelope"
)

func recordingTracer(t *testing.T) (Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTracer(tp.Tracer("test")), rec
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestInvocationMeta_SpanName(t *testing.T) {
	assert.Equal(t, "agriroute.invoke.weather", InvocationMeta{Category: "weather"}.SpanName())
}

func TestTracer_SuccessSpan(t *testing.T) {
	tracer, rec := recordingTracer(t)

	_, span := tracer.StartSpan(context.Background(), InvocationMeta{Category: "weather", RequestID: "r1", Tier: "simple"})
	tracer.EndSpan(span, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "agriroute.invoke.weather", s.Name())
	assert.Equal(t, codes.Ok, s.Status().Code)

	v, ok := attrValue(s.Attributes(), "agriroute.request_id")
	require.True(t, ok)
	assert.Equal(t, "r1", v.AsString())
	v, _ = attrValue(s.Attributes(), "agriroute.error")
	assert.False(t, v.AsBool())
}

func TestTracer_ErrorSpan(t *testing.T) {
	tracer, rec := recordingTracer(t)

	_, span := tracer.StartSpan(context.Background(), InvocationMeta{Category: "soil"})
	tracer.EndSpan(span, envelope.DataMissingf("no soil data"))

	s := rec.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	v, _ := attrValue(s.Attributes(), "agriroute.error_type")
	assert.Equal(t, "data_missing", v.AsString())
	assert.Len(t, s.Events(), 1)
}

func TestTracer_DispatchParentsInvocations(t *testing.T) {
	tracer, rec := recordingTracer(t)

	ctx, parent := tracer.StartDispatch(context.Background(), "req-9", "complex")
	_, child := tracer.StartSpan(ctx, InvocationMeta{Category: "weather"})
	tracer.EndSpan(child, nil)
	tracer.EndSpan(parent, nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, DispatchSpanName, spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestNoopTracer(t *testing.T) {
	tracer := NewNoopTracer()
	_, span := tracer.StartSpan(context.Background(), InvocationMeta{Category: "x"})
	tracer.EndSpan(span, envelope.Validationf("bad"))
	assert.False(t, span.SpanContext().IsValid())
}
