package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/config"
)

func TestNewDisabled(t *testing.T) {
	p, err := New(context.Background(), config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.tracerProvider)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewRequiresLogger(t *testing.T) {
	_, err := New(context.Background(), config.TelemetryConfig{}, nil)
	assert.ErrorContains(t, err, "logger is required")
}

func TestShutdownNil(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}
