package boosting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepData は x0 が 0.5 以上で y が 10 から 30 に跳ぶ単純なデータを作る
func stepData(n int) ([][]float64, []float64) {
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i) / float64(n)
		x[i] = []float64{v, float64(i % 3)}
		if v >= 0.5 {
			y[i] = 30
		} else {
			y[i] = 10
		}
	}
	return x, y
}

func TestFitSquaredErrorLearnsStep(t *testing.T) {
	x, y := stepData(100)
	b, err := Fit(DefaultParams(), x, y, nil, nil)
	require.NoError(t, err)

	assert.InDelta(t, 10, b.Predict([]float64{0.1, 0}), 1.5)
	assert.InDelta(t, 30, b.Predict([]float64{0.9, 0}), 1.5)
	assert.Len(t, b.Trees, 200)
}

func TestFitQuantileOrdering(t *testing.T) {
	x := make([][]float64, 200)
	y := make([]float64, 200)
	for i := range x {
		x[i] = []float64{float64(i % 10)}
		// 同じ特徴量に対して 0..19 の一様な値
		y[i] = float64((i * 7) % 20)
	}
	lower, err := Fit(QuantileParams(0.1), x, y, nil, nil)
	require.NoError(t, err)
	median, err := Fit(DefaultParams(), x, y, nil, nil)
	require.NoError(t, err)
	upper, err := Fit(QuantileParams(0.9), x, y, nil, nil)
	require.NoError(t, err)

	row := []float64{5}
	assert.Less(t, lower.Predict(row), median.Predict(row))
	assert.Less(t, median.Predict(row), upper.Predict(row))
}

func TestFitEarlyStoppingTruncates(t *testing.T) {
	x, y := stepData(80)
	valX, valY := stepData(20)

	p := DefaultParams()
	b, err := Fit(p, x, y, valX, valY)
	require.NoError(t, err)

	assert.Equal(t, b.BestIteration+1, len(b.Trees))
	assert.LessOrEqual(t, len(b.Trees), p.NEstimators)
	assert.False(t, math.IsInf(b.BestScore, 0))
}

func TestFitDeterministicWithSeed(t *testing.T) {
	x, y := stepData(60)
	a, err := Fit(DefaultParams(), x, y, nil, nil)
	require.NoError(t, err)
	b, err := Fit(DefaultParams(), x, y, nil, nil)
	require.NoError(t, err)

	for _, row := range x {
		assert.Equal(t, a.Predict(row), b.Predict(row))
	}
}

func TestFitRespectsMaxDepth(t *testing.T) {
	x, y := stepData(100)
	p := DefaultParams()
	p.MaxDepth = 2
	p.NEstimators = 10
	b, err := Fit(p, x, y, nil, nil)
	require.NoError(t, err)
	for _, tree := range b.Trees {
		assert.LessOrEqual(t, tree.Depth(), 2)
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		x      [][]float64
		y      []float64
		want   error
	}{
		{"empty", DefaultParams(), nil, nil, ErrEmptyInput},
		{"length mismatch", DefaultParams(), [][]float64{{1}, {2}}, []float64{1}, ErrDimensionMismatch},
		{"ragged rows", DefaultParams(), [][]float64{{1, 2}, {2}}, []float64{1, 2}, ErrDimensionMismatch},
		{"nan feature", DefaultParams(), [][]float64{{math.NaN()}}, []float64{1}, ErrNonFinite},
		{"bad alpha", QuantileParams(1.5), [][]float64{{1}}, []float64{1}, ErrInvalidParams},
		{"unknown objective", Params{Objective: "reg:huber"}, [][]float64{{1}}, []float64{1}, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.params, tt.x, tt.y, nil, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBoosterValidRejectsMalformedTrees(t *testing.T) {
	leaf := Node{Feature: -1, Value: 1}
	tests := []struct {
		name  string
		nodes []Node
		want  bool
	}{
		{"leaf only", []Node{leaf}, true},
		{"split", []Node{{Feature: 1, Left: 1, Right: 2}, leaf, leaf}, true},
		{"feature out of range", []Node{{Feature: 2, Left: 1, Right: 2}, leaf, leaf}, false},
		{"child out of range", []Node{{Feature: 0, Left: 1, Right: 7}, leaf, leaf}, false},
		{"self loop", []Node{{Feature: 0, Left: 0, Right: 1}, leaf}, false},
		{"back edge", []Node{{Feature: 0, Left: 1, Right: 2}, {Feature: 0, Left: 0, Right: 2}, leaf}, false},
		{"empty tree", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booster{NumFeatures: 2, Trees: []*Tree{{Nodes: tt.nodes}}}
			assert.Equal(t, tt.want, b.Valid(2))
		})
	}

	x, y := stepData(60)
	b, err := Fit(DefaultParams(), x, y, nil, nil)
	require.NoError(t, err)
	assert.True(t, b.Valid(2))
	assert.False(t, b.Valid(3))
}

func TestFeatureImportancesNormalized(t *testing.T) {
	x, y := stepData(100)
	b, err := Fit(DefaultParams(), x, y, nil, nil)
	require.NoError(t, err)

	imp := b.FeatureImportances()
	require.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
	assert.Greater(t, imp[0], imp[1])
}

func TestQuantileInterpolation(t *testing.T) {
	assert.Equal(t, 2.5, quantile([]float64{4, 1, 3, 2}, 0.5))
	assert.InDelta(t, 1.3, quantile([]float64{1, 2, 3, 4}, 0.1), 1e-9)
	assert.Equal(t, 0.0, quantile(nil, 0.5))
}
