package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-api/pkg/config"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown := Init(context.Background(), config.TracingConfig{Enabled: false}, "test", nil)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitWithoutExporter(t *testing.T) {
	shutdown := Init(context.Background(), config.TracingConfig{Enabled: true, Exporter: "none", SampleRatio: 1}, "test", nil)
	require.NoError(t, shutdown(context.Background()))
}
