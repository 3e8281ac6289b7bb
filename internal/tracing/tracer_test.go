package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitTracerInstallsGlobals(t *testing.T) {
	prevProvider, prevPropagator := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})

	tp, err := InitTracer("logistics-test", "http://127.0.0.1:14268/api/traces")
	require.NoError(t, err)

	_, ok := tp.(*sdktrace.TracerProvider)
	assert.True(t, ok)
	assert.Same(t, tp, otel.GetTracerProvider())
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())

	// nothing was recorded, so shutting down never reaches the collector
	require.NoError(t, Shutdown(context.Background(), tp))
}

func TestShutdownIgnoresForeignProviders(t *testing.T) {
	assert.NoError(t, Shutdown(context.Background(), noop.NewTracerProvider()))
}
