package engine

import (
	"math"
	"sort"
)

// Nakamoto returns the smallest number of top-ranked units whose combined stake is at least
// threshold of the total. The threshold must lie in (0, 1). The search runs over the cached
// prefix sums, so repeated calls for several thresholds do not rescan the weights.
func (d Distribution) Nakamoto(threshold float64) (int, error) {
	if math.IsNaN(threshold) || threshold <= 0 || threshold >= 1 {
		return 0, &UndefinedMetricError{Metric: "nakamoto", Threshold: threshold, Reason: "threshold must be in (0, 1)"}
	}
	n := len(d.prefix)
	if n == 0 {
		return 0, &EmptyDatasetError{Stage: "nakamoto"}
	}

	target := threshold * d.total
	k := sort.Search(n, func(i int) bool { return d.prefix[i] >= target })
	if k == n {
		return 0, &UndefinedMetricError{Metric: "nakamoto", Threshold: threshold, Reason: "threshold is unreachable"}
	}
	return k + 1, nil
}

// NakamotoSet returns the controlling units for threshold: the first Nakamoto(threshold)
// entries of ranked, which must already be ranked by kind.
func NakamotoSet[T Staker](ranked []T, kind WeightKind, threshold float64) ([]T, error) {
	d, err := NewDistribution(kind, Weights(ranked, kind))
	if err != nil {
		return nil, err
	}
	k, err := d.Nakamoto(threshold)
	if err != nil {
		return nil, err
	}
	return ranked[:k], nil
}
