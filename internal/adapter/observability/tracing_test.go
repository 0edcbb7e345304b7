package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
)

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), config.Config{OTLPEndpoint: ""})
	require.NoError(t, err)
	assert.Nil(t, shutdown)
}

func TestSetupTracing_WithEndpoint(t *testing.T) {
	cfg := config.Config{OTLPEndpoint: "localhost:4317", OTELServiceName: "test-service", AppEnv: "prod"}

	// The gRPC exporter connects lazily, so setup succeeds without a collector.
	shutdown, err := SetupTracing(context.Background(), cfg)
	if err != nil {
		assert.Nil(t, shutdown)
		return
	}
	require.NotNil(t, shutdown)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
