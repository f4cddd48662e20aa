package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestController_HappyPathLifecycle(t *testing.T) {
	c := New(0)
	require.Equal(t, StateIdle, c.State())

	require.NoError(t, c.Start())
	require.Equal(t, StateRunning, c.State())

	require.NoError(t, c.Pause())
	require.Equal(t, StatePaused, c.State())

	require.NoError(t, c.Resume())
	require.Equal(t, StateRunning, c.State())

	require.NoError(t, c.Stop())
	require.Equal(t, StateStopped, c.State())

	require.NoError(t, c.Reset())
	require.Equal(t, StateIdle, c.State())
}

func TestController_HaltIsTerminalUntilReset(t *testing.T) {
	c := New(0)
	require.NoError(t, c.Start())
	require.NoError(t, c.Halt())
	require.Equal(t, StateHalted, c.State())

	require.Error(t, c.Start())
	require.Error(t, c.Resume())
	require.Equal(t, StateHalted, c.State())

	require.NoError(t, c.Reset())
	require.Equal(t, StateIdle, c.State())
}

func TestController_IllegalTransitionsRejected(t *testing.T) {
	c := New(0)
	require.Error(t, c.Pause())
	require.Error(t, c.Stop())
	require.Equal(t, StateIdle, c.State())
}

func TestController_WaitTickPacesCalls(t *testing.T) {
	c := New(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, c.WaitTick(ctx))
	require.NoError(t, c.WaitTick(ctx))
	require.NoError(t, c.WaitTick(ctx))
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestController_NoLimiterWaitTickIsNoop(t *testing.T) {
	c := New(0)
	require.NoError(t, c.WaitTick(context.Background()))
}
