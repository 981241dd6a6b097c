package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_DisabledInstallsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, nil)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "cycle")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestInit_UnsupportedExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "zipkin"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zipkin")
}

func TestInit_StdoutExporter(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: true, Exporter: "stdout", SampleRatio: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ShutdownWithTimeout(context.Background(), shutdown, nil) })

	_, span := otel.Tracer("test").Start(context.Background(), "cycle")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestShutdownWithTimeout_Nil(t *testing.T) {
	ShutdownWithTimeout(context.Background(), nil, nil)
}
