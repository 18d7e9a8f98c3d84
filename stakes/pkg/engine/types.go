package engine

import (
	"slices"
	"strings"
	"time"
)

// WeightKind selects which stake weight of a validator or entity is measured.
type WeightKind int

const (
	// IncludingDelegations measures own stake plus delegated stake.
	IncludingDelegations WeightKind = iota
	// ExcludingDelegations measures the validator's own stake only.
	ExcludingDelegations
)

func (k WeightKind) String() string {
	switch k {
	case IncludingDelegations:
		return "including-delegations"
	case ExcludingDelegations:
		return "excluding-delegations"
	default:
		return "unknown"
	}
}

// Geo is the geolocation of a node's public IP.
type Geo struct {
	CountryCode string
	Country     string
	Region      string
	City        string
	Latitude    float64
	Longitude   float64
	ASN         uint
	ASNOrg      string
}

// Location is the comparable (country, city, asn) tuple used to count distinct sites.
type Location struct {
	Country string
	City    string
	ASN     uint
}

func (g *Geo) Location() Location {
	if g == nil {
		return Location{}
	}
	return Location{Country: g.CountryCode, City: g.City, ASN: g.ASN}
}

// ValidatorRecord is one validator of a snapshot, optionally joined with its peer metadata.
type ValidatorRecord struct {
	ID              string
	RewardAddresses []string
	Weight          uint64
	DelegatedWeight uint64
	StartTime       time.Time
	EndTime         time.Time

	// Peer metadata, set by the join stage.
	IP      string
	Version string
	Geo     *Geo
}

// TotalWeight is the validator's own stake plus its delegations.
func (v ValidatorRecord) TotalWeight() uint64 {
	return v.Weight + v.DelegatedWeight
}

func (v ValidatorRecord) Stake(kind WeightKind) uint64 {
	if kind == ExcludingDelegations {
		return v.Weight
	}
	return v.TotalWeight()
}

// PeerRecord is a node observed on the network.
type PeerRecord struct {
	ID      string
	IP      string
	Version string
	Geo     *Geo
}

// Staker is anything that can be ranked by stake.
type Staker interface {
	Stake(kind WeightKind) uint64
}

// NormalizeAddresses returns the sorted, deduplicated, non-blank set of addresses. The input
// slice is not modified. A nil result means the record has no reward address.
func NormalizeAddresses(addrs []string) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}
