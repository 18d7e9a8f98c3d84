package history

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
	"github.com/malbeclabs/stakes/stakes/pkg/snapshot"
)

func newTestLogger() *slog.Logger {
	if os.Getenv("DEBUG") != "" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), StoreConfig{Logger: newTestLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestSnapshots(t *testing.T) *snapshot.Store {
	t.Helper()
	store, err := snapshot.NewStore(snapshot.StoreConfig{Logger: newTestLogger(), Root: t.TempDir()})
	require.NoError(t, err)
	return store
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	require.NoError(t, err)
	return d
}

// writeSnapshot writes a basic snapshot whose first validator has an own stake of top.
func writeSnapshot(t *testing.T, store *snapshot.Store, date time.Time, top uint64) {
	t.Helper()
	records := []engine.ValidatorRecord{
		{ID: "NodeID-A", RewardAddresses: []string{"P-avax1a"}, Weight: top, DelegatedWeight: 10},
		{ID: "NodeID-B", RewardAddresses: []string{"P-avax1b"}, Weight: 100, DelegatedWeight: 0},
		{ID: "NodeID-C", RewardAddresses: []string{"P-avax1b"}, Weight: 100, DelegatedWeight: 0},
		{ID: "NodeID-D", RewardAddresses: []string{"P-avax1d"}, Weight: 50, DelegatedWeight: 50},
	}
	_, err := store.WriteValidators(date, records, false)
	require.NoError(t, err)
}
