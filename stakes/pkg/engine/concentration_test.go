package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStakes_Engine_Subnet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10.0.1.5", "10.0.1.0/24", true},
		{"10.0.1.5:9651", "10.0.1.0/24", true},
		{"::ffff:10.0.1.5", "10.0.1.0/24", true},
		{"2001:db8:abcd:12::1", "2001:db8:abcd::/48", true},
		{"[2001:db8:abcd:12::1]:9651", "2001:db8:abcd::/48", true},
		{"", "", false},
		{"not-an-ip", "", false},
	}
	for _, tt := range tests {
		got, ok := Subnet(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestStakes_Engine_Concentrate(t *testing.T) {
	t.Parallel()

	aws := &Geo{CountryCode: "US", City: "Ashburn", ASN: 16509, ASNOrg: "AMAZON-02"}
	hetzner := &Geo{CountryCode: "DE", City: "Falkenstein", ASN: 24940, ASNOrg: "Hetzner Online GmbH"}
	records := []ValidatorRecord{
		{ID: "NodeID-1", RewardAddresses: []string{"A"}, Weight: 50, IP: "10.0.1.1", Version: "avalanchego/1.11.0", Geo: aws},
		{ID: "NodeID-2", RewardAddresses: []string{"A"}, Weight: 10, IP: "10.0.2.1", Version: "avalanchego/1.11.0", Geo: hetzner},
		{ID: "NodeID-3", RewardAddresses: []string{"B"}, Weight: 20, IP: "10.0.1.9", Version: "avalanchego/1.10.0", Geo: aws},
		{ID: "NodeID-4", RewardAddresses: []string{"C"}, Weight: 15, IP: "192.168.0.1", Geo: hetzner},
		{ID: "NodeID-5", Weight: 5},
	}
	entities, _ := GroupByRewardAddresses(records)
	ranked := Rank(entities, IncludingDelegations)

	c := Concentrate(ranked[:3], 100)
	require.Len(t, c.Entities, 3)

	first := c.Entities[0]
	require.Equal(t, 1, first.Rank)
	require.Equal(t, "A", first.Address)
	require.Equal(t, 2, first.Validators)
	require.Equal(t, uint64(60), first.TotalWeight)
	assert.InDelta(t, 0.6, first.Share, 1e-12)
	require.Equal(t, []string{"US", "DE"}, first.Countries)
	require.Equal(t, []string{"AMAZON-02", "Hetzner Online GmbH"}, first.ASNs)
	require.Equal(t, []string{"10.0.1.0/24", "10.0.2.0/24"}, first.Subnets)
	require.Equal(t, []string{"avalanchego/1.11.0"}, first.Versions)

	require.Equal(t, []string{"DE", "US"}, c.Countries)
	require.Equal(t, []string{"AMAZON-02", "Hetzner Online GmbH"}, c.ASNs)
	require.Equal(t, []Overlap{
		{Value: "AMAZON-02", Ranks: []int{1, 2}},
		{Value: "Hetzner Online GmbH", Ranks: []int{1, 3}},
	}, c.SharedASNs)
	require.Equal(t, []Overlap{{Value: "10.0.1.0/24", Ranks: []int{1, 2}}}, c.SharedSubnet)
	require.Equal(t, 3, c.EntitiesSharingASN)
}

func TestStakes_Engine_Concentrate_DegradedEntityUsesNodeID(t *testing.T) {
	t.Parallel()

	entities := Singletons([]ValidatorRecord{{ID: "NodeID-9", Weight: 5}})
	c := Concentrate(entities, 0)
	require.Len(t, c.Entities, 1)
	require.Equal(t, "NodeID-9", c.Entities[0].Address)
	require.Zero(t, c.Entities[0].Share)
	require.Empty(t, c.SharedASNs)
	require.Zero(t, c.EntitiesSharingASN)
}
