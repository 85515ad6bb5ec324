package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	tel, err := Init(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, tel.Tracer())
	assert.NotNil(t, tel.Meter())

	cfg := &Config{Enabled: false, ServiceName: "test-service"}
	tel, err = Init(ctx, cfg)
	require.NoError(t, err)
	assert.Same(t, tel, Get())
	assert.Nil(t, tel.tracerProvider)
	assert.NoError(t, Shutdown(ctx))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	globalTelemetry = &Telemetry{tracer: provider.Tracer("test")}
	t.Cleanup(func() { globalTelemetry = nil })

	ctx, span := StartSpan(context.Background(), "purchase")
	assert.NotEmpty(t, GetTraceID(ctx))

	SetSpanAttributes(ctx, attribute.String(AttrTicketTypeID, "tt-1"))
	SetSpanError(ctx, errors.New("sold out"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "purchase", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String(AttrTicketTypeID, "tt-1"))
	assert.Equal(t, "sold out", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}
