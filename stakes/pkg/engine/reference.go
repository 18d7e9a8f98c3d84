package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// ReferenceKind names a synthetic comparison distribution.
type ReferenceKind string

const (
	// ReferenceEqual is the zero-inequality baseline.
	ReferenceEqual ReferenceKind = "equal"
	// ReferenceUniform draws weights from U(0,1); its expected GINI is 1/3.
	ReferenceUniform ReferenceKind = "uniform"
	// ReferenceLogLogistic draws weights from a Fisk distribution; with the default exponent
	// its expected GINI is 2/3.
	ReferenceLogLogistic ReferenceKind = "log-logistic"
)

var ReferenceKinds = []ReferenceKind{ReferenceEqual, ReferenceUniform, ReferenceLogLogistic}

// Source is the random source used to draw reference samples. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a deterministic source for seed.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// LogLogisticShape maps the exponent control to the Fisk shape parameter. The GINI of a Fisk
// distribution is 1/shape, so exponent 1.0 gives shape 1.5 and GINI 2/3, and larger exponents
// give heavier tails.
func LogLogisticShape(exponent float64) float64 {
	return 1.5 / exponent
}

// EqualWeights returns n identical weights.
func EqualWeights(n int) []float64 {
	ws := make([]float64, n)
	for i := range ws {
		ws[i] = 1
	}
	return ws
}

// UniformWeights draws n samples from U(0,1) and sorts them descending.
func UniformWeights(n int, src Source) []float64 {
	ws := make([]float64, n)
	for i := range ws {
		ws[i] = src.Float64()
	}
	sortDescending(ws)
	return ws
}

// LogLogisticWeights draws n samples from a Fisk distribution with unit scale through the
// inverse CDF (u/(1-u))^(1/shape), and sorts them descending.
func LogLogisticWeights(n int, shape float64, src Source) []float64 {
	ws := make([]float64, n)
	for i := range ws {
		u := src.Float64()
		ws[i] = math.Pow(u/(1-u), 1/shape)
	}
	sortDescending(ws)
	return ws
}

// Reference builds the normalized cumulative distribution of a synthetic sample of size n.
// Every call draws from a fresh source seeded with seed, so equal arguments always produce
// identical curves.
func Reference(kind ReferenceKind, n int, seed uint64, exponent float64) (Distribution, error) {
	return ReferenceFromSource(kind, n, NewSource(seed), exponent)
}

// ReferenceFromSource is Reference with an injected random source.
func ReferenceFromSource(kind ReferenceKind, n int, src Source, exponent float64) (Distribution, error) {
	if n <= 0 {
		return Distribution{}, &EmptyDatasetError{Stage: fmt.Sprintf("%s reference", kind)}
	}
	var ws []float64
	switch kind {
	case ReferenceEqual:
		ws = EqualWeights(n)
	case ReferenceUniform:
		ws = UniformWeights(n, src)
	case ReferenceLogLogistic:
		if exponent <= 0 || math.IsNaN(exponent) || math.IsInf(exponent, 0) {
			return Distribution{}, fmt.Errorf("log-logistic reference: exponent must be positive, got %v", exponent)
		}
		ws = LogLogisticWeights(n, LogLogisticShape(exponent), src)
	default:
		return Distribution{}, fmt.Errorf("unknown reference kind %q", kind)
	}
	return NewDistribution(IncludingDelegations, ws)
}

// ExponentMap raises every weight to the power x and rescales the result so the largest
// weight is unchanged. x == 1 returns an unchanged copy.
func ExponentMap(weights []float64, x float64) []float64 {
	out := slices.Clone(weights)
	if x == 1 || len(out) == 0 {
		return out
	}
	maxW := slices.Max(weights)
	var maxExp float64
	for i, w := range out {
		out[i] = math.Pow(w, x)
		maxExp = math.Max(maxExp, out[i])
	}
	if maxExp == 0 {
		return out
	}
	for i := range out {
		out[i] = out[i] / maxExp * maxW
	}
	return out
}

func sortDescending(ws []float64) {
	slices.SortFunc(ws, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		default:
			return 0
		}
	})
}
