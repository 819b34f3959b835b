package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "callbridge", cfg.ServiceName)
	assert.Equal(t, "http://localhost:14268/api/traces", cfg.JaegerURL)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracePlatformCall(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := TracePlatformCall(context.Background(), "get", "GET", "/api/objects/42")
	AddSpanAttributes(ctx, EntityGUIDKey.String("42"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "platform.get", spans[0].Name())

	v, ok := attrValue(spans[0].Attributes(), EntityGUIDKey)
	require.True(t, ok)
	assert.Equal(t, "42", v.AsString())
}

func TestTraceSignal(t *testing.T) {
	recorder := installRecorder(t)

	_, span := TraceSignal(context.Background(), "connect", "session-1")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "signal.connect", spans[0].Name())
	v, ok := attrValue(spans[0].Attributes(), SessionIDKey)
	require.True(t, ok)
	assert.Equal(t, "session-1", v.AsString())
}

func TestRecordError(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartSpan(context.Background(), "op")
	RecordError(ctx, errors.New("commit failed"))
	RecordError(ctx, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "commit failed", spans[0].Status().Description)
	assert.Len(t, spans[0].Events(), 1)
}

func TestMeasureDuration(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartSpan(context.Background(), "op")
	MeasureDuration(ctx, time.Now().Add(-25*time.Millisecond))
	span.End()

	v, ok := attrValue(recorder.Ended()[0].Attributes(), DurationKey)
	require.True(t, ok)
	assert.GreaterOrEqual(t, v.AsInt64(), int64(25))
}

func TestTraceHTTPRequest(t *testing.T) {
	recorder := installRecorder(t)

	_, span := TraceHTTPRequest(context.Background(), "POST", "/api/v1/call/end")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/v1/call/end", spans[0].Name())
	route, ok := attrValue(spans[0].Attributes(), "http.route")
	require.True(t, ok)
	assert.Equal(t, "/api/v1/call/end", route.AsString())
}

func TestClampRate(t *testing.T) {
	assert.Equal(t, 0.0, clampRate(-0.5))
	assert.Equal(t, 0.25, clampRate(0.25))
	assert.Equal(t, 1.0, clampRate(3))
}
