package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func newTestView(t *testing.T, snapshots Snapshots, clk clockwork.Clock, interval time.Duration) *SnapshotView {
	t.Helper()
	cfg := Config{
		Logger:          newTestLogger(),
		Snapshots:       snapshots,
		Clock:           clk,
		RefreshInterval: interval,
		CacheTTL:        time.Hour,
		Top:             2,
	}
	require.NoError(t, cfg.Validate())
	v, err := NewSnapshotView(cfg)
	require.NoError(t, err)
	return v
}

func TestStakes_Server_Config_Validate(t *testing.T) {
	t.Parallel()

	require.ErrorContains(t, (&Config{}).Validate(), "logger is required")
	require.ErrorContains(t, (&Config{Logger: newTestLogger()}).Validate(), "snapshots are required")

	cfg := Config{Logger: newTestLogger(), Snapshots: newFakeSnapshots()}
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Clock)
	require.NotNil(t, cfg.Engine.Logger)
	require.Equal(t, defaultRefreshInterval, cfg.RefreshInterval)
	require.Equal(t, 3*defaultRefreshInterval, cfg.CacheTTL)
	require.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)
	require.Equal(t, defaultTop, cfg.Top)
}

func TestStakes_Server_SnapshotView_InvalidEngineConfig(t *testing.T) {
	t.Parallel()

	cfg := Config{Logger: newTestLogger(), Snapshots: newFakeSnapshots()}
	cfg.Engine.Thresholds = []float64{1.5}
	require.NoError(t, cfg.Validate())
	_, err := NewSnapshotView(cfg)
	require.ErrorContains(t, err, "threshold")
}

func TestStakes_Server_SnapshotView_ReadyDefaultFalse(t *testing.T) {
	t.Parallel()

	v := newTestView(t, newFakeSnapshots(), clockwork.NewFakeClock(), time.Second)
	require.False(t, v.Ready())
	_, ok := v.Report(true)
	require.False(t, ok)
}

func TestStakes_Server_SnapshotView_RefreshCachesBothReports(t *testing.T) {
	t.Parallel()

	v := newTestView(t, newFakeSnapshots(), clockwork.NewFakeClock(), time.Second)
	require.NoError(t, v.Refresh(context.Background()))
	require.True(t, v.Ready())

	ungrouped, ok := v.Report(false)
	require.True(t, ok)
	require.Equal(t, "2024-03-31", ungrouped.Date)
	require.False(t, ungrouped.Grouped)
	require.Equal(t, 4, ungrouped.Units)
	require.Len(t, ungrouped.Top, 2)

	grouped, ok := v.Report(true)
	require.True(t, ok)
	require.True(t, grouped.Grouped)
	require.Equal(t, 4, grouped.Validators)
	require.Equal(t, 3, grouped.Units)
	require.Equal(t, []string{"P-avax1a"}, grouped.Top[0].Addresses)
	require.Equal(t, uint64(110), uint64(grouped.Including.Total))
	require.Equal(t, uint64(100), uint64(grouped.Excluding.Total))
}

func TestStakes_Server_SnapshotView_RefreshErrorKeepsPreviousReports(t *testing.T) {
	t.Parallel()

	snapshots := newFakeSnapshots()
	v := newTestView(t, snapshots, clockwork.NewFakeClock(), time.Second)
	require.NoError(t, v.Refresh(context.Background()))

	snapshots.setErr(errors.New("boom"))
	require.ErrorContains(t, v.Refresh(context.Background()), "boom")

	require.True(t, v.Ready(), "ready should remain true after a later refresh failure")
	_, ok := v.Report(true)
	require.True(t, ok, "reports should not be dropped on refresh failure")
}

func TestStakes_Server_SnapshotView_RefreshCanceled(t *testing.T) {
	t.Parallel()

	v := newTestView(t, newFakeSnapshots(), clockwork.NewFakeClock(), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, v.Refresh(ctx), context.Canceled)
	require.False(t, v.Ready())
}

func TestStakes_Server_SnapshotView_Run_InitialFailureThenTick(t *testing.T) {
	t.Parallel()

	clk := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	interval := 10 * time.Second

	snapshots := newFakeSnapshots()
	snapshots.setErr(errors.New("initial fail"))
	v := newTestView(t, snapshots, clk, interval)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	select {
	case n := <-snapshots.calls:
		require.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial refresh")
	}
	require.False(t, v.Ready(), "ready must remain false after initial refresh failure")

	snapshots.setErr(nil)

	blockCtx, blockCancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(blockCancel)
	require.NoError(t, clk.BlockUntilContext(blockCtx, 1))
	clk.Advance(interval + time.Nanosecond)

	select {
	case n := <-snapshots.calls:
		require.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second refresh")
	}
	require.Eventually(t, func() bool { return v.Ready() }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := v.Report(false)
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestStakes_Server_SnapshotView_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	v := newTestView(t, newFakeSnapshots(), clockwork.NewFakeClock(), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
}
