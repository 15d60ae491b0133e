package fps

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNNLS(t *testing.T) {
	tests := []struct {
		name     string
		patterns [][]float64
		obs      []float64
		want     []float64
	}{
		{
			name:     "interior solution",
			patterns: [][]float64{{1, 0, 1}, {0, 1, 1}},
			obs:      []float64{2, 3, 5},
			want:     []float64{2, 3},
		},
		{
			name:     "bound active",
			patterns: [][]float64{{1, 0, 1}, {0, 1, 1}},
			obs:      []float64{2, -1, 1},
			want:     []float64{1.5, 0},
		},
		{
			name:     "all negative",
			patterns: [][]float64{{1, 0, 0}, {0, 1, 0}},
			obs:      []float64{-1, -2, 0},
			want:     []float64{0, 0},
		},
		{
			name:     "three columns",
			patterns: [][]float64{{1, 1, 0, 0}, {0, 1, 1, 0}, {0, 0, 1, 1}},
			obs:      []float64{1, 3, 5, 3},
			want:     []float64{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nnls(tt.patterns, tt.obs)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
				assert.GreaterOrEqual(t, got[i], 0.0)
			}
		})
	}
}

func TestNNLSDependentColumns(t *testing.T) {
	// The second column duplicates the first, so only their sum is determined
	patterns := [][]float64{{1, 2, 3, 4}, {1, 2, 3, 4}, {1, 0, 0, 0}}
	obs := []float64{4, 4, 6, 8}

	got, err := nnls(patterns, obs)
	require.NoError(t, err)
	assert.InDelta(t, 2, got[0]+got[1], 1e-9)
	assert.InDelta(t, 2, got[2], 1e-9)
}

func TestSolveLinear(t *testing.T) {
	got, err := solveLinear([][]float64{{1, 0, 1}, {0, 1, 1}}, []float64{2, -1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 2, got[0], 1e-9)
	assert.InDelta(t, -1, got[1], 1e-9)
}

func TestStats(t *testing.T) {
	obs := []float64{10, 20, 30, 40}

	perfect := Evaluate(obs, obs)
	assert.Zero(t, perfect.Rwp)
	assert.Zero(t, perfect.R)
	assert.Zero(t, perfect.Delta)
	assert.InDelta(t, 1, perfect.Correlation, 1e-12)

	calc := []float64{11, 19, 30, 40}
	s := Evaluate(obs, calc)
	assert.InDelta(t, math.Sqrt((1.0/10+1.0/20)/100), s.Rwp, 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/3000), s.R, 1e-12)
	assert.InDelta(t, 2.0/100, s.Delta, 1e-12)

	flat := Evaluate(obs, []float64{5, 5, 5, 5})
	assert.Zero(t, flat.Correlation)

	assert.True(t, math.IsInf(rwp([]float64{0, -1}, []float64{0, 0}), 1))
}
