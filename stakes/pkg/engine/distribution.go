package engine

import (
	"fmt"
	"math"
	"sort"
)

// Point is one step of a cumulative distribution.
type Point struct {
	Population float64 `json:"population"`
	Stake      float64 `json:"stake"`
}

// Distribution is the cumulative (population fraction, stake fraction) curve of a ranked
// weight sequence. The curve starts implicitly at (0,0) and its last point is (1,1).
type Distribution struct {
	Kind   WeightKind `json:"-"`
	Points []Point    `json:"points"`

	total  float64
	prefix []float64
}

// NewDistribution builds the cumulative curve of weights, which must be non-negative and
// sorted descending. Point k is (k/n, sum(w[:k])/sum(w)).
func NewDistribution(kind WeightKind, weights []float64) (Distribution, error) {
	n := len(weights)
	if n == 0 {
		return Distribution{}, &EmptyDatasetError{Stage: "distribution"}
	}

	prefix := make([]float64, n)
	var sum float64
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return Distribution{}, fmt.Errorf("invalid weight %v at rank %d", w, i+1)
		}
		if i > 0 && w > weights[i-1] {
			return Distribution{}, fmt.Errorf("weights are not sorted descending at rank %d", i+1)
		}
		sum += w
		prefix[i] = sum
	}
	if sum == 0 {
		return Distribution{}, &UndefinedMetricError{Metric: "distribution", Reason: "total weight is zero"}
	}

	points := make([]Point, n)
	for i := range prefix {
		points[i] = Point{
			Population: float64(i+1) / float64(n),
			Stake:      prefix[i] / sum,
		}
	}
	// The last prefix is the total itself, so this only removes representation noise.
	points[n-1] = Point{Population: 1, Stake: 1}

	return Distribution{Kind: kind, Points: points, total: sum, prefix: prefix}, nil
}

func (d Distribution) Len() int {
	return len(d.Points)
}

// Total is the sum of the weights the curve was built from.
func (d Distribution) Total() float64 {
	return d.total
}

// PrefixSums returns the cumulative absolute weights, one per rank.
func (d Distribution) PrefixSums() []float64 {
	return d.prefix
}

// StakeAt returns the stake fraction held by the top populationFraction of the population,
// interpolating linearly between points.
func (d Distribution) StakeAt(populationFraction float64) float64 {
	n := len(d.Points)
	if n == 0 || populationFraction <= 0 {
		return 0
	}
	if populationFraction >= 1 {
		return d.Points[n-1].Stake
	}
	i := sort.Search(n, func(i int) bool { return d.Points[i].Population >= populationFraction })
	hi := d.Points[i]
	lo := Point{}
	if i > 0 {
		lo = d.Points[i-1]
	}
	if hi.Population == lo.Population {
		return hi.Stake
	}
	f := (populationFraction - lo.Population) / (hi.Population - lo.Population)
	return lo.Stake + f*(hi.Stake-lo.Stake)
}

// Area is the trapezoid area under the curve, including the segment from (0,0).
func (d Distribution) Area() float64 {
	var area float64
	prev := Point{}
	for _, p := range d.Points {
		area += (p.Population - prev.Population) * (p.Stake + prev.Stake) / 2
		prev = p
	}
	return area
}
