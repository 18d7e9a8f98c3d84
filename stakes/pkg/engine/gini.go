package engine

import (
	"fmt"
	"math"
	"slices"
)

// Gini returns the inequality coefficient of weights, in [0, (n-1)/n].
//
// It uses the rank form sum((2i-n-1) * x_(i)) / (n^2 * mean) over the ascending order
// statistics, which equals the mean absolute difference sum|x_i - x_j| / (2 n^2 mean) in
// O(n log n).
func Gini(weights []float64) (float64, error) {
	n := len(weights)
	if n == 0 {
		return 0, &EmptyDatasetError{Stage: "gini"}
	}

	sorted := slices.Clone(weights)
	slices.Sort(sorted)

	var sum, weighted float64
	for i, x := range sorted {
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("gini: invalid weight %v", x)
		}
		sum += x
		weighted += float64(2*(i+1)-n-1) * x
	}
	if sum == 0 {
		return 0, &UndefinedMetricError{Metric: "gini", Reason: "mean weight is zero"}
	}

	// n^2 * mean == n * sum
	g := weighted / (float64(n) * sum)
	return clampGini(g, n), nil
}

// GiniFromDistribution derives the coefficient from a descending cumulative curve. The curve
// lies above the diagonal, so G = 2*area - 1 (the mirror of 1 - 2*area for an ascending
// Lorenz curve).
func GiniFromDistribution(d Distribution) (float64, error) {
	n := d.Len()
	if n == 0 {
		return 0, &EmptyDatasetError{Stage: "gini"}
	}
	return clampGini(2*d.Area()-1, n), nil
}

// clampGini removes floating point drift outside the attainable range [0, (n-1)/n].
func clampGini(g float64, n int) float64 {
	upper := float64(n-1) / float64(n)
	return math.Min(math.Max(g, 0), upper)
}
