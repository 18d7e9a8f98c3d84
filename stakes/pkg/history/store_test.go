package history

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

func TestStakes_History_StoreConfig_Validate(t *testing.T) {
	t.Parallel()

	_, err := NewStore(context.Background(), StoreConfig{})
	require.ErrorContains(t, err, "logger is required")
}

func TestStakes_History_Store_UpsertAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	rows := []Row{
		{
			Date:              mustDate(t, "2024-06-30"),
			Grouped:           true,
			Validators:        1200,
			Units:             900,
			TotalIncluding:    250_000_000_000_000_000,
			TotalExcluding:    180_000_000_000_000_000,
			GiniIncluding:     0.82,
			GiniExcluding:     0.76,
			NakamotoIncluding: []engine.NakamotoPoint{{Threshold: 0.33, Count: 24}, {Threshold: 0.5, Count: 60}},
			NakamotoExcluding: []engine.NakamotoPoint{{Threshold: 0.33, Count: 30}, {Threshold: 0.5, Count: 75}},
			References:        map[engine.ReferenceKind]float64{engine.ReferenceEqual: 0, engine.ReferenceUniform: 0.33},
		},
		{
			Date:              mustDate(t, "2024-03-31"),
			Grouped:           true,
			Validators:        1100,
			Units:             850,
			GiniIncluding:     0.8,
			NakamotoIncluding: []engine.NakamotoPoint{{Threshold: 0.33, Count: 22}},
		},
		{
			Date:          mustDate(t, "2024-03-31"),
			Grouped:       false,
			Validators:    1100,
			Units:         1100,
			GiniIncluding: 0.7,
		},
	}
	require.NoError(t, store.Upsert(ctx, rows))

	grouped, err := store.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	require.Equal(t, mustDate(t, "2024-03-31"), grouped[0].Date)
	require.Equal(t, mustDate(t, "2024-06-30"), grouped[1].Date)

	got := grouped[1]
	require.True(t, got.Grouped)
	require.Equal(t, 1200, got.Validators)
	require.Equal(t, 900, got.Units)
	require.Equal(t, uint64(250_000_000_000_000_000), got.TotalIncluding)
	require.Equal(t, uint64(180_000_000_000_000_000), got.TotalExcluding)
	require.InDelta(t, 0.82, got.GiniIncluding, 1e-12)
	require.InDelta(t, 0.76, got.GiniExcluding, 1e-12)
	if diff := cmp.Diff(rows[0].NakamotoIncluding, got.NakamotoIncluding); diff != "" {
		t.Fatalf("nakamoto including mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rows[0].NakamotoExcluding, got.NakamotoExcluding); diff != "" {
		t.Fatalf("nakamoto excluding mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, rows[0].References, got.References)

	ungrouped, err := store.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, ungrouped, 1)
	require.False(t, ungrouped[0].Grouped)
	require.InDelta(t, 0.7, ungrouped[0].GiniIncluding, 1e-12)
}

func TestStakes_History_Store_UpsertReplacesExistingRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	row := Row{Date: mustDate(t, "2024-03-31"), Grouped: true, Validators: 10, Units: 8, GiniIncluding: 0.5}
	require.NoError(t, store.Upsert(ctx, []Row{row}))

	row.Units = 7
	row.GiniIncluding = 0.6
	require.NoError(t, store.Upsert(ctx, []Row{row}))

	rows, err := store.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 7, rows[0].Units)
	require.InDelta(t, 0.6, rows[0].GiniIncluding, 1e-12)
}

func TestStakes_History_Store_EmptyList(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.Upsert(context.Background(), nil))

	rows, err := store.List(context.Background(), true)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestStakes_History_NewRow(t *testing.T) {
	t.Parallel()

	res := &engine.Result{
		Date:       mustDate(t, "2024-03-31"),
		Grouped:    true,
		Validators: 4,
		Units:      3,
		Including:  engine.Metrics{Total: 400, Gini: 0.4, Nakamoto: []engine.NakamotoPoint{{Threshold: 0.5, Count: 2}}},
		Excluding:  engine.Metrics{Total: 300, Gini: 0.2},
		References: []engine.ReferenceCurve{
			{Kind: engine.ReferenceEqual, Gini: 0},
			{Kind: engine.ReferenceUniform, Gini: 0.31},
		},
	}
	row := NewRow(res)
	require.Equal(t, res.Date, row.Date)
	require.True(t, row.Grouped)
	require.Equal(t, uint64(400), row.TotalIncluding)
	require.Equal(t, uint64(300), row.TotalExcluding)
	require.Equal(t, res.Including.Nakamoto, row.NakamotoIncluding)
	require.Len(t, row.References, 2)
	require.InDelta(t, 0.31, row.References[engine.ReferenceUniform], 1e-12)
}
