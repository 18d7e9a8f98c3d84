package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStakes_Engine_NormalizeAddresses(t *testing.T) {
	t.Parallel()

	in := []string{" P-avax1b", "P-avax1a", "", "P-avax1b", "  "}
	require.Equal(t, []string{"P-avax1a", "P-avax1b"}, NormalizeAddresses(in))
	require.Equal(t, " P-avax1b", in[0], "input must not be modified")
	require.Nil(t, NormalizeAddresses(nil))
	require.Nil(t, NormalizeAddresses([]string{"", " "}))
}

func TestStakes_Engine_GroupByRewardAddresses_SetEquality(t *testing.T) {
	t.Parallel()

	records := []ValidatorRecord{
		validator("NodeID-1", 100, 0, "A", "B"),
		validator("NodeID-2", 50, 5, "B", "A"),
		validator("NodeID-3", 70, 0, "A"),
		validator("NodeID-4", 30, 0, "A", "B", "A"),
	}

	entities, stats := GroupByRewardAddresses(records)
	require.Len(t, entities, 2)
	require.Equal(t, GroupStats{Validators: 4, Entities: 2}, stats)

	ab := entities[0]
	require.Equal(t, []string{"A", "B"}, ab.Addresses)
	require.Equal(t, []string{"NodeID-1", "NodeID-2", "NodeID-4"}, ab.IDs())
	require.Equal(t, uint64(180), ab.Weight)
	require.Equal(t, uint64(5), ab.DelegatedWeight)
	require.Equal(t, uint64(185), ab.TotalWeight)
	require.Equal(t, 3, ab.ValidatorCount())

	// {A} and {A, B} overlap but are not the same set.
	a := entities[1]
	require.Equal(t, []string{"A"}, a.Addresses)
	require.Equal(t, []string{"NodeID-3"}, a.IDs())
}

func TestStakes_Engine_GroupByRewardAddresses_ConservesWeightAndPartitions(t *testing.T) {
	t.Parallel()

	records := []ValidatorRecord{
		validator("NodeID-1", 10, 1, "X"),
		validator("NodeID-2", 20, 2, "Y"),
		validator("NodeID-3", 30, 3, "X"),
		validator("NodeID-4", 40, 4),
		validator("NodeID-5", 50, 5, "Y", "Z"),
		validator("NodeID-6", 60, 6, "Z", "Y"),
	}

	var wantTotal, wantOwn uint64
	for _, r := range records {
		wantTotal += r.TotalWeight()
		wantOwn += r.Weight
	}

	entities, stats := GroupByRewardAddresses(records)
	require.Equal(t, 4, stats.Entities)
	require.Equal(t, 1, stats.Degraded)

	seen := make(map[string]int)
	var gotTotal, gotOwn uint64
	for _, e := range entities {
		gotTotal += e.TotalWeight
		gotOwn += e.Weight
		for _, id := range e.IDs() {
			seen[id]++
		}
	}
	require.Equal(t, wantTotal, gotTotal)
	require.Equal(t, wantOwn, gotOwn)
	require.Len(t, seen, len(records))
	for id, n := range seen {
		require.Equal(t, 1, n, "validator %s must belong to exactly one entity", id)
	}
}

func TestStakes_Engine_GroupByRewardAddresses_DegradedSingletons(t *testing.T) {
	t.Parallel()

	records := []ValidatorRecord{
		validator("NodeID-1", 10, 0),
		validator("NodeID-2", 20, 0),
		{ID: "NodeID-3", Weight: 30, RewardAddresses: []string{" "}},
	}
	entities, stats := GroupByRewardAddresses(records)
	require.Len(t, entities, 3)
	require.Equal(t, 3, stats.Degraded)
	for i, e := range entities {
		require.True(t, e.Degraded)
		require.Nil(t, e.Addresses)
		require.Equal(t, "id:"+records[i].ID, e.Key)
	}
}

func TestStakes_Engine_Entity_Locations(t *testing.T) {
	t.Parallel()

	us := &Geo{CountryCode: "US", City: "Ashburn", ASN: 16509}
	records := []ValidatorRecord{
		{ID: "NodeID-1", RewardAddresses: []string{"A"}, Weight: 1, Version: "v1", Geo: us},
		{ID: "NodeID-2", RewardAddresses: []string{"A"}, Weight: 1, Version: "v2", Geo: &Geo{CountryCode: "US", City: "Ashburn", ASN: 16509}},
		{ID: "NodeID-3", RewardAddresses: []string{"A"}, Weight: 1, Version: "v1", Geo: &Geo{CountryCode: "DE", City: "Frankfurt", ASN: 24940}},
		{ID: "NodeID-4", RewardAddresses: []string{"A"}, Weight: 1},
	}
	entities, _ := GroupByRewardAddresses(records)
	require.Len(t, entities, 1)
	require.Equal(t, []string{"v1", "v2", "v1", ""}, entities[0].Versions)
	require.Equal(t, []Location{
		{Country: "US", City: "Ashburn", ASN: 16509},
		{Country: "DE", City: "Frankfurt", ASN: 24940},
	}, entities[0].Locations)
}

func TestStakes_Engine_Singletons(t *testing.T) {
	t.Parallel()

	records := []ValidatorRecord{
		validator("NodeID-1", 10, 0, "A"),
		validator("NodeID-2", 20, 0, "A"),
		validator("NodeID-3", 30, 0),
	}
	units := Singletons(records)
	require.Len(t, units, 3)
	require.Equal(t, []string{"A"}, units[0].Addresses)
	require.False(t, units[0].Degraded)
	require.True(t, units[2].Degraded)
	require.Equal(t, uint64(20), units[1].TotalWeight)
}

func TestStakes_Engine_Rank_StableDescending(t *testing.T) {
	t.Parallel()

	records := []ValidatorRecord{
		validator("NodeID-1", 10, 50),
		validator("NodeID-2", 60, 0),
		validator("NodeID-3", 30, 0),
		validator("NodeID-4", 60, 0),
	}

	byTotal := Rank(records, IncludingDelegations)
	ids := func(rs []ValidatorRecord) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}
	require.Equal(t, []string{"NodeID-1", "NodeID-2", "NodeID-4", "NodeID-3"}, ids(byTotal))

	byOwn := Rank(records, ExcludingDelegations)
	require.Equal(t, []string{"NodeID-2", "NodeID-4", "NodeID-3", "NodeID-1"}, ids(byOwn))

	// Input order is untouched and ranking is deterministic.
	require.Equal(t, "NodeID-1", records[0].ID)
	require.Equal(t, byTotal, Rank(records, IncludingDelegations))
	require.Equal(t, []float64{60, 60, 60, 30}, Weights(byTotal, IncludingDelegations))
}
