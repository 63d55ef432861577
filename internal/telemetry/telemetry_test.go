package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	tracer, shutdown, err := Setup(context.Background(), Config{ServiceName: "test"})
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "tick")
	assert.False(t, span.SpanContext().IsValid(), "no-op spans carry no context")
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	ctx := context.Background()
	tracer, shutdown, err := Setup(ctx, Config{Endpoint: "http://127.0.0.1:4318"})
	require.NoError(t, err)

	_, span := tracer.Start(ctx, "tick")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	// Export fails without a collector; shutdown must still return.
	sctx, cancel := context.WithCancel(ctx)
	cancel()
	_ = shutdown(sctx)
}
