package engine

import (
	"slices"
	"strings"
)

const degradedKeyPrefix = "id:"

// Entity is an ownership unit: the validators that share exactly the same reward-address set.
type Entity struct {
	Key       string
	Addresses []string
	Members   []ValidatorRecord

	Weight          uint64
	DelegatedWeight uint64
	TotalWeight     uint64

	// Versions holds one entry per member, in member order.
	Versions []string
	// Locations holds the distinct member locations in first-seen order.
	Locations []Location

	// Degraded marks a singleton built for a validator without reward addresses.
	Degraded bool
}

func (e Entity) ValidatorCount() int {
	return len(e.Members)
}

func (e Entity) Stake(kind WeightKind) uint64 {
	if kind == ExcludingDelegations {
		return e.Weight
	}
	return e.TotalWeight
}

// IDs returns the member validator IDs in member order.
func (e Entity) IDs() []string {
	ids := make([]string, len(e.Members))
	for i, m := range e.Members {
		ids[i] = m.ID
	}
	return ids
}

func (e *Entity) add(v ValidatorRecord) {
	e.Members = append(e.Members, v)
	e.Weight += v.Weight
	e.DelegatedWeight += v.DelegatedWeight
	e.TotalWeight += v.TotalWeight()
	e.Versions = append(e.Versions, v.Version)
	if v.Geo != nil {
		loc := v.Geo.Location()
		if !slices.Contains(e.Locations, loc) {
			e.Locations = append(e.Locations, loc)
		}
	}
}

// GroupStats summarizes a grouping pass.
type GroupStats struct {
	Validators int
	Entities   int
	// Degraded counts validators without reward addresses, each kept as its own entity.
	Degraded int
}

// GroupByRewardAddresses partitions records into entities by exact equality of their
// reward-address sets. Entities are returned in the order their first member appears, and
// members keep input order. A validator with no reward address is not dropped: it becomes a
// degraded singleton keyed by its ID so no stake goes unaccounted.
func GroupByRewardAddresses(records []ValidatorRecord) ([]Entity, GroupStats) {
	stats := GroupStats{Validators: len(records)}

	index := make(map[string]int, len(records))
	entities := make([]Entity, 0, len(records))
	for _, v := range records {
		addrs := NormalizeAddresses(v.RewardAddresses)
		key := strings.Join(addrs, "\x00")
		degraded := len(addrs) == 0
		if degraded {
			key = degradedKeyPrefix + v.ID
			stats.Degraded++
		}

		i, ok := index[key]
		if !ok {
			i = len(entities)
			index[key] = i
			entities = append(entities, Entity{Key: key, Addresses: addrs, Degraded: degraded})
		}
		entities[i].add(v)
	}

	stats.Entities = len(entities)
	return entities, stats
}

// Singletons wraps every validator as its own unit, for analysis without grouping.
func Singletons(records []ValidatorRecord) []Entity {
	entities := make([]Entity, 0, len(records))
	for _, v := range records {
		addrs := NormalizeAddresses(v.RewardAddresses)
		e := Entity{Key: degradedKeyPrefix + v.ID, Addresses: addrs, Degraded: len(addrs) == 0}
		e.add(v)
		entities = append(entities, e)
	}
	return entities
}
