package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/config"
	"factorlab/internal/frame"
)

func testEngine(universe ...string) *Engine {
	return &Engine{cfg: &config.ResearchConfig{Universe: universe}}
}

func TestNormalizeWeights(t *testing.T) {
	factors, norm := normalizeWeights(map[string]float64{"A": 3, "B": -1})
	assert.Equal(t, []string{"A", "B"}, factors)
	assert.InDelta(t, 0.75, norm["A"], 1e-12)
	assert.InDelta(t, -0.25, norm["B"], 1e-12)

	_, norm = normalizeWeights(map[string]float64{"A": 0})
	assert.Zero(t, norm["A"])
}

func TestSynthesizeWeightedSum(t *testing.T) {
	e := testEngine("IC.CFE", "IF.CFE")
	pivots := map[string]*frame.Matrix{
		"A": frame.Pivot([]frame.Record{
			{TradeDate: "20250901", Instrument: "IC.CFE", Value: 1},
			{TradeDate: "20250901", Instrument: "IF.CFE", Value: -1},
		}, nil).AlignCols(e.cfg.Universe),
		"B": frame.Pivot([]frame.Record{
			{TradeDate: "20250901", Instrument: "IC.CFE", Value: 1},
			{TradeDate: "20250901", Instrument: "IF.CFE", Value: 1},
		}, nil).AlignCols(e.cfg.Universe),
	}
	wf := func(_, factor string) (float64, bool) {
		return map[string]float64{"A": 0.5, "B": 0.5}[factor], true
	}

	sig := e.synthesize(pivots, []string{"A", "B"}, wf)
	require.Equal(t, []string{"20250901"}, sig.Dates)
	// raw sums 1.0 / 0.0 normalize to unit absolute weight
	assert.InDelta(t, 1.0, sig.At("20250901", "IC.CFE"), 1e-12)
	assert.InDelta(t, 0.0, sig.At("20250901", "IF.CFE"), 1e-12)
}

func TestSynthesizeRowsHaveUnitAbsSum(t *testing.T) {
	e := testEngine("IC.CFE", "IF.CFE", "IH.CFE")
	pivots := map[string]*frame.Matrix{
		"A": frame.Pivot([]frame.Record{
			{TradeDate: "20250901", Instrument: "IC.CFE", Value: 2},
			{TradeDate: "20250901", Instrument: "IF.CFE", Value: -1},
			{TradeDate: "20250901", Instrument: "IH.CFE", Value: 3},
			{TradeDate: "20250902", Instrument: "IC.CFE", Value: 5},
		}, nil).AlignCols(e.cfg.Universe),
	}
	wf := func(_, _ string) (float64, bool) { return 1, true }

	sig := e.synthesize(pivots, []string{"A"}, wf)
	for _, d := range sig.Dates {
		sum := 0.0
		for _, v := range sig.Row(d) {
			assert.False(t, math.IsNaN(v))
			sum += math.Abs(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
	// the missing exposures on the second date were zero-filled after
	// the normalization
	assert.InDelta(t, 1.0, sig.At("20250902", "IC.CFE"), 1e-12)
	assert.Zero(t, sig.At("20250902", "IF.CFE"))
}

func TestSynthesizeSkipsAbsentFactorDates(t *testing.T) {
	e := testEngine("IC.CFE")
	pivots := map[string]*frame.Matrix{
		"A": frame.Pivot([]frame.Record{
			{TradeDate: "20250901", Instrument: "IC.CFE", Value: 1},
		}, nil).AlignCols(e.cfg.Universe),
		"B": frame.Pivot([]frame.Record{
			{TradeDate: "20250902", Instrument: "IC.CFE", Value: -1},
		}, nil).AlignCols(e.cfg.Universe),
	}
	wf := func(_, _ string) (float64, bool) { return 0.5, true }

	sig := e.synthesize(pivots, []string{"A", "B"}, wf)
	assert.Equal(t, []string{"20250901", "20250902"}, sig.Dates)
	assert.InDelta(t, 1.0, sig.At("20250901", "IC.CFE"), 1e-12)
	assert.InDelta(t, -1.0, sig.At("20250902", "IC.CFE"), 1e-12)
}

func TestCompleteRows(t *testing.T) {
	m := frame.Pivot([]frame.Record{
		{TradeDate: "20250901", Instrument: "A", Value: 0.01},
		{TradeDate: "20250901", Instrument: "B", Value: 0.02},
		{TradeDate: "20250902", Instrument: "A", Value: 0.03},
		{TradeDate: "20250903", Instrument: "A", Value: 0.04},
		{TradeDate: "20250903", Instrument: "B", Value: 0.05},
	}, nil).AlignCols([]string{"A", "B"})

	rows := completeRows(m, "20250901", "20250903")
	require.Len(t, rows, 2) // 20250902 has a gap on B
	assert.Equal(t, []float64{0.01, 0.02}, rows[0])
	assert.Equal(t, []float64{0.04, 0.05}, rows[1])

	assert.Len(t, completeRows(m, "20250902", "20250902"), 0)
}

func TestFitWindowShortWindowSkipsOptimizer(t *testing.T) {
	obs := [][]float64{
		{0.01, 0.02},
		{0.02, 0.01},
		{0.03, 0.03},
	}
	ws, ok, err := fitWindow(obs, 2, 5, 3.0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 0.5}, ws)
}

func TestFitWindowRankDeficientSampleSkipped(t *testing.T) {
	// 第二列恒为第一列两倍, 协方差奇异
	obs := make([][]float64, 6)
	for i := range obs {
		v := 0.01 * float64(i+1)
		obs[i] = []float64{v, 2 * v}
	}
	ws, ok, err := fitWindow(obs, 2, 4, 3.0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, ws)
}

func TestFitWindowOptimizedPath(t *testing.T) {
	// orthogonal deviation patterns keep the sample covariance
	// diagonal, so the solve reduces to w_i = mean_i / (lbd * var_i)
	obs := make([][]float64, 8)
	dev0 := []float64{0.02, 0.02, -0.02, -0.02}
	dev1 := []float64{0.01, -0.01}
	for i := range obs {
		obs[i] = []float64{0.01 + dev0[i%4], 0.005 + dev1[i%2]}
	}
	ws, ok, err := fitWindow(obs, 2, 4, 1.0)
	require.NoError(t, err)
	require.True(t, ok)
	// var0 = 8*0.0004/7, var1 = 8*0.0001/7
	assert.InDelta(t, 0.01*7/0.0032, ws[0], 1e-6)
	assert.InDelta(t, 0.005*7/0.0008, ws[1], 1e-6)
}

func TestEqualWeightsFallback(t *testing.T) {
	ws := equalWeights(4)
	require.Len(t, ws, 4)
	sum := 0.0
	for _, w := range ws {
		assert.Equal(t, 0.25, w)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}
