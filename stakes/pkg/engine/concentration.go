package engine

import (
	"cmp"
	"net/netip"
	"slices"
	"strings"
)

// EntitySummary describes one entity of a controlling set.
type EntitySummary struct {
	Rank        int
	Address     string
	Validators  int
	TotalWeight uint64
	Share       float64
	Countries   []string
	ASNs        []string
	Subnets     []string
	Versions    []string
}

// Overlap is an infrastructure attribute shared by more than one entity, with the 1-based
// ranks of the entities sharing it.
type Overlap struct {
	Value string
	Ranks []int
}

// Concentration is the infrastructure breakdown of a controlling set of entities. Entities
// with distinct reward addresses that share hosting providers or subnets may be run by the
// same operator, so the Nakamoto coefficient of such a set is an upper bound.
type Concentration struct {
	Entities     []EntitySummary
	Countries    []string
	ASNs         []string
	SharedASNs   []Overlap
	SharedSubnet []Overlap
	// EntitiesSharingASN counts entities that share at least one ASN with another entity.
	EntitiesSharingASN int
}

// Concentrate analyzes set, which must be ranked; total is the network-wide stake the shares
// are expressed against.
func Concentrate(set []Entity, total uint64) Concentration {
	var c Concentration
	asnRanks := make(map[string][]int)
	subnetRanks := make(map[string][]int)
	countries := make(map[string]struct{})
	asns := make(map[string]struct{})

	for i, e := range set {
		rank := i + 1
		s := EntitySummary{
			Rank:        rank,
			Validators:  e.ValidatorCount(),
			TotalWeight: e.TotalWeight,
		}
		if len(e.Addresses) > 0 {
			s.Address = e.Addresses[0]
		} else if len(e.Members) > 0 {
			s.Address = e.Members[0].ID
		}
		if total > 0 {
			s.Share = float64(e.TotalWeight) / float64(total)
		}

		for _, m := range e.Members {
			if m.Geo != nil {
				if m.Geo.CountryCode != "" {
					s.Countries = appendUnique(s.Countries, m.Geo.CountryCode)
				}
				if m.Geo.ASNOrg != "" {
					s.ASNs = appendUnique(s.ASNs, m.Geo.ASNOrg)
				}
			}
			if subnet, ok := Subnet(m.IP); ok {
				s.Subnets = appendUnique(s.Subnets, subnet)
			}
			if m.Version != "" {
				s.Versions = appendUnique(s.Versions, m.Version)
			}
		}

		for _, a := range s.ASNs {
			asnRanks[a] = append(asnRanks[a], rank)
			asns[a] = struct{}{}
		}
		for _, sn := range s.Subnets {
			subnetRanks[sn] = append(subnetRanks[sn], rank)
		}
		for _, cc := range s.Countries {
			countries[cc] = struct{}{}
		}
		c.Entities = append(c.Entities, s)
	}

	c.Countries = sortedKeys(countries)
	c.ASNs = sortedKeys(asns)
	c.SharedASNs = overlaps(asnRanks)
	c.SharedSubnet = overlaps(subnetRanks)

	sharing := make(map[int]struct{})
	for _, o := range c.SharedASNs {
		for _, r := range o.Ranks {
			sharing[r] = struct{}{}
		}
	}
	c.EntitiesSharingASN = len(sharing)
	return c
}

// Subnet returns the /24 (IPv4) or /48 (IPv6) prefix of an "ip" or "ip:port" string.
func Subnet(ip string) (string, bool) {
	if ip == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		ap, perr := netip.ParseAddrPort(ip)
		if perr != nil {
			return "", false
		}
		addr = ap.Addr()
	}
	addr = addr.Unmap()
	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "", false
	}
	return prefix.String(), true
}

func overlaps(byValue map[string][]int) []Overlap {
	var out []Overlap
	for v, ranks := range byValue {
		if len(ranks) < 2 {
			continue
		}
		out = append(out, Overlap{Value: v, Ranks: ranks})
	}
	slices.SortFunc(out, func(a, b Overlap) int {
		if c := cmp.Compare(len(b.Ranks), len(a.Ranks)); c != 0 {
			return c
		}
		return strings.Compare(a.Value, b.Value)
	})
	return out
}

func appendUnique(xs []string, x string) []string {
	if slices.Contains(xs, x) {
		return xs
	}
	return append(xs, x)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
