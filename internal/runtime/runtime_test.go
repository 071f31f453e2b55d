package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"funnelgrid/config"
)

func TestNewLimitsDefaults(t *testing.T) {
	l := NewLimits(0, 0)
	require.Equal(t, config.DefaultMaxConcurrentRequests, l.MaxConcurrentRequests)
	require.Equal(t, config.DefaultMaxActiveRuns, l.MaxActiveRuns)
	require.Equal(t, config.DefaultMaxRowsPerSource, l.MaxRowsPerSource)
	require.Equal(t, config.DefaultOperationTimeout, l.OperationTimeout)
}

func TestControllerRequestGate(t *testing.T) {
	ctrl := NewController(NewLimits(1, 1))

	require.NoError(t, ctrl.AcquireRequest(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := ctrl.AcquireRequest(ctx)
	require.Error(t, err, "second acquire must block until timeout while slot is held")

	ctrl.ReleaseRequest()
	require.NoError(t, ctrl.AcquireRequest(context.Background()))
	ctrl.ReleaseRequest()
}

func TestControllerRunSingleFlight(t *testing.T) {
	ctrl := NewController(NewLimits(4, 1))

	require.True(t, ctrl.TryAcquireRun())
	require.False(t, ctrl.TryAcquireRun(), "second run must be rejected, not queued")

	ctrl.ReleaseRun()
	require.True(t, ctrl.TryAcquireRun())
	ctrl.ReleaseRun()
}
