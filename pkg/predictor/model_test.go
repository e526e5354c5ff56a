package predictor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalerStandardises(t *testing.T) {
	x := [][]float64{{1, 10, 5}, {2, 20, 5}, {3, 30, 5}, {4, 40, 5}}
	s, err := FitScaler(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 25, 5}, s.Mean)
	assert.Equal(t, 1.0, s.Scale[2], "constant columns scale by one")
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12, "population, not sample, deviation")

	scaled, err := s.TransformAll(x)
	require.NoError(t, err)
	for j := 0; j < 2; j++ {
		var mean, sq float64
		for _, row := range scaled {
			mean += row[j]
		}
		mean /= float64(len(scaled))
		for _, row := range scaled {
			sq += (row[j] - mean) * (row[j] - mean)
		}
		assert.InDelta(t, 0, mean, 1e-12)
		assert.InDelta(t, 1, math.Sqrt(sq/float64(len(scaled))), 1e-12)
	}
	assert.Equal(t, 0.0, scaled[0][2])

	_, err = s.Transform([]float64{1, 2})
	assert.Error(t, err)
	_, err = FitScaler(nil)
	assert.Error(t, err)
	_, err = FitScaler([][]float64{{1, 2}, {1}})
	assert.Error(t, err)
}

func separable() ([][]float64, []int) {
	var x [][]float64
	var y []int
	for i := 0; i < 60; i++ {
		v := float64(i)
		x = append(x, []float64{v, float64(i % 7)})
		switch {
		case i < 20:
			y = append(y, 0)
		case i < 40:
			y = append(y, 1)
		default:
			y = append(y, 2)
		}
	}
	return x, y
}

func TestForestLearnsSeparableClasses(t *testing.T) {
	x, y := separable()
	f, err := FitForest(x, y, 3, ForestParams{Trees: 30, Seed: 42, MinSamplesSplit: 2, MaxFeatures: 2})
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	for _, tc := range []struct {
		v    float64
		want int
	}{{2, 0}, {30, 1}, {55, 2}} {
		p, err := f.PredictProba([]float64{tc.v, 3})
		require.NoError(t, err)
		assert.InDelta(t, 1, p[0]+p[1]+p[2], 1e-9)
		best := 0
		for c := range p {
			if p[c] > p[best] {
				best = c
			}
		}
		assert.Equal(t, tc.want, best, "value %v", tc.v)
	}
}

func TestForestIsDeterministic(t *testing.T) {
	x, y := separable()
	p := ForestParams{Trees: 10, Seed: 7, MinSamplesSplit: 2}
	a, err := FitForest(x, y, 3, p)
	require.NoError(t, err)
	b, err := FitForest(x, y, 3, p)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	p.Seed = 8
	c, err := FitForest(x, y, 3, p)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestForestMaxDepth(t *testing.T) {
	x, y := separable()
	f, err := FitForest(x, y, 3, ForestParams{Trees: 5, Seed: 1, MaxDepth: 1, MinSamplesSplit: 2})
	require.NoError(t, err)
	for _, tree := range f.Trees {
		assert.LessOrEqual(t, len(tree.Nodes), 3)
	}
}

func TestForestRejectsBadInput(t *testing.T) {
	x, y := separable()
	_, err := FitForest(nil, nil, 3, DefaultForestParams())
	assert.Error(t, err)
	_, err = FitForest(x, y[:3], 3, DefaultForestParams())
	assert.Error(t, err)
	_, err = FitForest(x, y, 2, DefaultForestParams())
	assert.Error(t, err, "label 2 is out of range for two classes")
	_, err = FitForest(x, y, 3, ForestParams{})
	assert.Error(t, err)

	f, err := FitForest(x, y, 3, ForestParams{Trees: 2, Seed: 1})
	require.NoError(t, err)
	_, err = f.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestForestValidateCatchesDamage(t *testing.T) {
	x, y := separable()
	f, err := FitForest(x, y, 3, ForestParams{Trees: 2, Seed: 1})
	require.NoError(t, err)
	f.Trees[0].Nodes[0] = Node{Feature: 0, Left: 0, Right: 0}
	assert.Error(t, f.Validate())
	assert.Error(t, (&Forest{}).Validate())
}
