package engine

import (
	"cmp"
	"slices"
)

// Rank returns a copy of items sorted descending by the selected stake. The sort is stable, so
// ties keep their input order and identical input always ranks identically.
func Rank[T Staker](items []T, kind WeightKind) []T {
	ranked := slices.Clone(items)
	slices.SortStableFunc(ranked, func(a, b T) int {
		return cmp.Compare(b.Stake(kind), a.Stake(kind))
	})
	return ranked
}

// Weights extracts the selected stake of each item as float64, preserving order.
func Weights[T Staker](items []T, kind WeightKind) []float64 {
	ws := make([]float64, len(items))
	for i, it := range items {
		ws[i] = float64(it.Stake(kind))
	}
	return ws
}
