package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestSpearmanPerfectInverse(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{4, 3, 2, 1}
	assert.InDelta(t, -1.0, Spearman(x, y), 1e-12)
	assert.InDelta(t, -1.0, Pearson(x, y), 1e-12)
}

func TestSpearmanMonotoneNonlinear(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{1, 8, 27, 64, 125}
	assert.InDelta(t, 1.0, Spearman(x, y), 1e-12)
	assert.Less(t, Pearson(x, y), 1.0)
}

func TestRanksWithTies(t *testing.T) {
	assert.Equal(t, []float64{1.5, 1.5, 3, 4}, Ranks([]float64{2, 2, 5, 9}))
	assert.Equal(t, []float64{3, 1, 2}, Ranks([]float64{30, 10, 20}))
}

func TestArgSortDesc(t *testing.T) {
	assert.Equal(t, []int{2, 3, 0, 1}, ArgSortDesc([]float64{1.0, math.NaN(), 3.0, 2.0}))
	// 并列保持原顺序
	assert.Equal(t, []int{1, 0, 2}, ArgSortDesc([]float64{2.0, 3.0, 2.0}))
}

func TestCorrelationDropsNaNPairs(t *testing.T) {
	x := []float64{1, 2, math.NaN(), 4}
	y := []float64{2, 4, 6, math.NaN()}
	// 只剩 (1,2) 与 (2,4)
	assert.InDelta(t, 1.0, Pearson(x, y), 1e-12)

	assert.True(t, math.IsNaN(Pearson([]float64{1}, []float64{2})))
}

func TestMeanAndStd(t *testing.T) {
	xs := []float64{1, 2, math.NaN(), 4}
	assert.InDelta(t, 7.0/3, Mean(xs), 1e-12)
	assert.InDelta(t, 1.52752523, Std([]float64{1, 2, 4}), 1e-8)
	assert.True(t, math.IsNaN(Mean([]float64{math.NaN()})))
}

func TestMatrixRank(t *testing.T) {
	full := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1})
	assert.Equal(t, 2, MatrixRank(full))

	// 第二列是第一列的两倍
	deficient := mat.NewDense(3, 2, []float64{1, 2, 2, 4, 3, 6})
	assert.Equal(t, 1, MatrixRank(deficient))
}

func TestCovMatrix(t *testing.T) {
	obs := mat.NewDense(3, 2, []float64{
		1, 2,
		2, 4,
		3, 6,
	})
	cov := CovMatrix(obs)
	assert.InDelta(t, 1.0, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0, cov.At(0, 1), 1e-12)
	assert.InDelta(t, 4.0, cov.At(1, 1), 1e-12)
}

func TestMaxUtilityWeightsDiagonal(t *testing.T) {
	sigma := mat.NewSymDense(2, []float64{2, 0, 0, 4})
	w, err := MaxUtilityWeights([]float64{2, 4}, sigma, 1)
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, w[0], 1e-12)
	assert.InDelta(t, 1.0, w[1], 1e-12)

	// 风险厌恶加倍, 仓位减半
	w, err = MaxUtilityWeights([]float64{2, 4}, sigma, 2)
	assert.NoError(t, err)
	assert.InDelta(t, 0.5, w[0], 1e-12)
	assert.InDelta(t, 0.5, w[1], 1e-12)
}
