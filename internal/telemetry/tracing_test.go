package telemetry_test

import (
	"context"
	"testing"

	"github.com/dom/cardclash/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()

	shutdown, err := telemetry.Setup(ctx, "cardclash-test", "", true)
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))

	shutdown, err = telemetry.Setup(ctx, "cardclash-test", "http://localhost:4318", false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))
}

func TestSetup_Enabled(t *testing.T) {
	ctx := context.Background()

	// The exporter connects lazily, so construction succeeds without a collector.
	shutdown, err := telemetry.Setup(ctx, "cardclash-test", "http://127.0.0.1:4318/v1/traces", true)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_ = shutdown(cctx)
}
