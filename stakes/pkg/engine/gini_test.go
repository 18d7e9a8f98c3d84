package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairwiseGini is the O(n^2) mean absolute difference definition.
func pairwiseGini(ws []float64) float64 {
	var sum, diff float64
	for _, x := range ws {
		sum += x
		for _, y := range ws {
			diff += math.Abs(x - y)
		}
	}
	n := float64(len(ws))
	return diff / (2 * n * sum)
}

func TestStakes_Engine_Gini_KnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		weights []float64
		want    float64
	}{
		{"single", []float64{42}, 0},
		{"equal", []float64{25, 25, 25, 25}, 0},
		{"skewed", []float64{50, 30, 10, 10}, 0.35},
		{"one holds all", []float64{100, 0, 0, 0}, 0.75},
		{"unsorted input", []float64{10, 50, 10, 30}, 0.35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := Gini(tt.weights)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, g, 1e-12)
		})
	}
}

func TestStakes_Engine_Gini_OneHolderWithNegligibleOthers(t *testing.T) {
	t.Parallel()

	for _, n := range []int{10, 1000, 100000} {
		ws := make([]float64, n)
		ws[0] = 1e18
		for i := 1; i < n; i++ {
			ws[i] = 1
		}
		g, err := Gini(ws)
		require.NoError(t, err)
		assert.InDelta(t, float64(n-1)/float64(n), g, 1e-6, "n=%d", n)
		assert.Less(t, g, 1.0, "n=%d", n)
	}
}

func TestStakes_Engine_Gini_FormulationsAgree(t *testing.T) {
	t.Parallel()

	src := NewSource(7)
	for _, n := range []int{1, 2, 3, 10, 57, 300} {
		ws := make([]float64, n)
		for i := range ws {
			ws[i] = math.Floor(src.Float64()*1e6) + 1
		}
		sortDescending(ws)

		rank, err := Gini(ws)
		require.NoError(t, err)
		d, err := NewDistribution(IncludingDelegations, ws)
		require.NoError(t, err)
		curve, err := GiniFromDistribution(d)
		require.NoError(t, err)

		assert.InDelta(t, pairwiseGini(ws), rank, 1e-9, "n=%d", n)
		assert.InDelta(t, rank, curve, 1e-9, "n=%d", n)
		assert.GreaterOrEqual(t, rank, 0.0)
		assert.LessOrEqual(t, rank, float64(n-1)/float64(n))
	}
}

func TestStakes_Engine_Gini_ScaleInvariant(t *testing.T) {
	t.Parallel()

	a, err := Gini([]float64{5, 3, 1, 1})
	require.NoError(t, err)
	b, err := Gini([]float64{5e12, 3e12, 1e12, 1e12})
	require.NoError(t, err)
	assert.InDelta(t, a, b, 1e-12)
}

func TestStakes_Engine_Gini_Errors(t *testing.T) {
	t.Parallel()

	_, err := Gini(nil)
	var empty *EmptyDatasetError
	require.True(t, errors.As(err, &empty))

	_, err = Gini([]float64{0, 0})
	var undefined *UndefinedMetricError
	require.True(t, errors.As(err, &undefined))
	require.Equal(t, "gini", undefined.Metric)

	_, err = Gini([]float64{1, math.NaN()})
	require.Error(t, err)

	_, err = GiniFromDistribution(Distribution{})
	require.True(t, errors.As(err, &empty))
}
