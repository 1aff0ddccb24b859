package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := Tracer("test").Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitEnabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: true, ServiceName: "sprintboard-test", ServiceVersion: "dev"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = Init(context.Background(), Config{})
	})

	ctx, span := Tracer("test").Start(context.Background(), "real")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	counter, err := Meter("test").Int64Counter("sprintboard.test.counter")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	require.NoError(t, shutdown(context.Background()))
}
