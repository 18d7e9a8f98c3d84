package engine

// JoinStats describes what an equi-join matched and dropped.
type JoinStats struct {
	Matched         int
	LeftOnly        int
	RightOnly       int
	LeftDuplicates  int
	RightDuplicates int
	MissingKey      int
}

// Mismatch returns a *JoinMismatchError when either side had unmatched keys, nil otherwise.
func (s JoinStats) Mismatch() error {
	if s.LeftOnly == 0 && s.RightOnly == 0 {
		return nil
	}
	return &JoinMismatchError{LeftOnly: s.LeftOnly, RightOnly: s.RightOnly}
}

// EquiJoin inner-joins left and right on the keys extracted by leftKey and rightKey.
//
// Each side is first hashed into a key -> record map; duplicate keys within one side are
// last-write-wins. Left records for which isZero reports an absent key are skipped and counted
// as MissingKey. The combine function receives the surviving record of each side and returns
// the joined record. Output follows the first-appearance order of keys in left.
func EquiJoin[L, R any, K comparable](
	left []L,
	right []R,
	leftKey func(L) K,
	rightKey func(R) K,
	isZero func(K) bool,
	combine func(L, R) L,
) ([]L, JoinStats) {
	var stats JoinStats

	leftByKey := make(map[K]L, len(left))
	order := make([]K, 0, len(left))
	for _, l := range left {
		k := leftKey(l)
		if isZero != nil && isZero(k) {
			stats.MissingKey++
			continue
		}
		if _, ok := leftByKey[k]; ok {
			stats.LeftDuplicates++
		} else {
			order = append(order, k)
		}
		leftByKey[k] = l
	}

	rightByKey := make(map[K]R, len(right))
	for _, r := range right {
		k := rightKey(r)
		if _, ok := rightByKey[k]; ok {
			stats.RightDuplicates++
		}
		rightByKey[k] = r
	}

	joined := make([]L, 0, min(len(leftByKey), len(rightByKey)))
	for _, k := range order {
		r, ok := rightByKey[k]
		if !ok {
			stats.LeftOnly++
			continue
		}
		joined = append(joined, combine(leftByKey[k], r))
		stats.Matched++
	}
	for k := range rightByKey {
		if _, ok := leftByKey[k]; !ok {
			stats.RightOnly++
		}
	}

	return joined, stats
}

// DedupeByKey keeps the last record of every key in the first-appearance order of the keys,
// matching the duplicate policy of EquiJoin. It returns the number of dropped duplicates.
func DedupeByKey[T any, K comparable](items []T, key func(T) K) ([]T, int) {
	byKey := make(map[K]int, len(items))
	out := make([]T, 0, len(items))
	dups := 0
	for _, it := range items {
		k := key(it)
		if i, ok := byKey[k]; ok {
			out[i] = it
			dups++
			continue
		}
		byKey[k] = len(out)
		out = append(out, it)
	}
	return out, dups
}

// JoinValidatorsPeers joins validators with the peers observed on the network by node ID.
// Validators without a peer and peers without a validator are dropped. Peer IP and version
// extend the validator; a peer's geolocation, when present, overrides the validator's.
func JoinValidatorsPeers(validators []ValidatorRecord, peers []PeerRecord) ([]ValidatorRecord, JoinStats) {
	return EquiJoin(
		validators,
		peers,
		func(v ValidatorRecord) string { return v.ID },
		func(p PeerRecord) string { return p.ID },
		func(id string) bool { return id == "" },
		func(v ValidatorRecord, p PeerRecord) ValidatorRecord {
			v.IP = p.IP
			v.Version = p.Version
			if p.Geo != nil {
				geo := *p.Geo
				v.Geo = &geo
			}
			return v
		},
	)
}
