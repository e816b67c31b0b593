package factors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/errors"
	"factorlab/internal/frame"
	"factorlab/internal/tabular"
)

func TestTopVolumeSpearman(t *testing.T) {
	bars := []tabular.MajorBar{
		{TradeDate: "20250901", Volume: 10, OI: 100, MajorReturn: 0.5},
		{TradeDate: "20250902", Volume: 40, OI: 100, MajorReturn: 2.0},
		{TradeDate: "20250903", Volume: 30, OI: 100, MajorReturn: 1.5},
		{TradeDate: "20250904", Volume: 20, OI: 100, MajorReturn: 1.0},
	}
	pickX := func(b tabular.MajorBar) float64 { return b.Volume }
	pickY := func(b tabular.MajorBar) float64 { return b.MajorReturn }

	// busiest three sessions keep volume monotone with return
	rho := topVolumeSpearman(bars, 3, pickX, pickY)
	assert.InDelta(t, 1.0, rho, 1e-12)

	// a top size above the window length keeps every session
	rho = topVolumeSpearman(bars, 10, pickX, pickY)
	assert.InDelta(t, 1.0, rho, 1e-12)

	// a single kept session cannot be correlated
	assert.True(t, math.IsNaN(topVolumeSpearman(bars, 1, pickX, pickY)))
}

func TestRankLadder(t *testing.T) {
	assert.Equal(t, []float64{0.25, 0.25, -0.25, -0.25}, rankLadder(4))
	assert.Equal(t, []float64{0.25, 0.25, 0, -0.25, -0.25}, rankLadder(5))
	assert.Equal(t, []float64{0.5, -0.5}, rankLadder(2))
	assert.Equal(t, []float64{0}, rankLadder(1))
}

func TestCalSmart(t *testing.T) {
	bars := []smtBar{
		{tradeDate: "20250901", volume: 1, amount: 1, vwap: 2.0, ret: 0.01, smartIdx: 5},
		{tradeDate: "20250901", volume: 1, amount: 1, vwap: 1.0, ret: -0.01, smartIdx: 1},
	}
	p, r, ok := calSmart(bars, 0.5)
	require.True(t, ok)
	// smart set is the single high-index bar: vwap 2 against a total
	// vwap of 1.5, return 0.01 against a total of 0, both negated
	assert.InDelta(t, -(2.0/1.5 - 1), p, 1e-12)
	assert.InDelta(t, -0.01, r, 1e-12)
}

func TestCalSmartWholeWindow(t *testing.T) {
	bars := []smtBar{
		{volume: 1, amount: 2, vwap: 3.0, ret: 0.02, smartIdx: 2},
		{volume: 1, amount: 2, vwap: 3.0, ret: 0.02, smartIdx: 1},
	}
	// a full-coverage lambda keeps every bar, so the smart set equals
	// the total and both deviations vanish
	p, r, ok := calSmart(bars, 1.0)
	require.True(t, ok)
	assert.InDelta(t, 0, p, 1e-12)
	assert.InDelta(t, 0, r, 1e-12)
}

func TestCalSmartZeroAmount(t *testing.T) {
	p, r, ok := calSmart([]smtBar{{volume: 1, smartIdx: 1}}, 0.5)
	assert.False(t, ok)
	assert.Zero(t, p)
	assert.Zero(t, r)

	p, r, ok = calSmart(nil, 0.5)
	assert.False(t, ok)
	assert.Zero(t, p)
	assert.Zero(t, r)
}

func TestCalSmartNaNPropagates(t *testing.T) {
	bars := []smtBar{
		{volume: 1, amount: 1, vwap: math.NaN(), ret: 0.01, smartIdx: 5},
		{volume: 1, amount: 1, vwap: 1.0, ret: -0.01, smartIdx: 1},
	}
	p, _, ok := calSmart(bars, 0.5)
	require.True(t, ok)
	assert.True(t, math.IsNaN(p))
}

func TestBarsBetween(t *testing.T) {
	bars := []smtBar{
		{tradeDate: "20250901"},
		{tradeDate: "20250902"},
		{tradeDate: "20250902"},
		{tradeDate: "20250903"},
		{tradeDate: "20250904"},
	}
	sub := barsBetween(bars, "20250902", "20250903")
	require.Len(t, sub, 3)
	assert.Equal(t, "20250902", sub[0].tradeDate)
	assert.Equal(t, "20250903", sub[2].tradeDate)
}

func positionMatrix(t *testing.T) *frame.Matrix {
	t.Helper()
	recs := []frame.Record{
		{TradeDate: "20250901", Instrument: "b01", Value: 30},
		{TradeDate: "20250901", Instrument: "b02", Value: 20},
		{TradeDate: "20250901", Instrument: "b03", Value: 0},
		{TradeDate: "20250901", Instrument: "b04", Value: 10},
		{TradeDate: "20250901", Instrument: "b05", Value: math.NaN()},
	}
	return frame.Pivot(recs, nil)
}

func TestPickInstitutesTop(t *testing.T) {
	m := positionMatrix(t)
	assert.Equal(t, []string{"b01", "b02"}, pickInstitutes(m, "20250901", 2, true, false))
	assert.Equal(t, []string{"b01", "b02"}, pickInstitutes(m, "20250901", 2, true, true))
}

func TestPickInstitutesBottom(t *testing.T) {
	m := positionMatrix(t)
	// with zeros kept the tail holds the zero seat
	assert.Equal(t, []string{"b04", "b03"}, pickInstitutes(m, "20250901", 2, false, false))
	// dropping zeros shifts the tail up
	assert.Equal(t, []string{"b02", "b04"}, pickInstitutes(m, "20250901", 2, false, true))
}

func TestPickInstitutesShortRow(t *testing.T) {
	m := positionMatrix(t)
	got := pickInstitutes(m, "20250901", 10, true, false)
	assert.Len(t, got, 4) // NaN seat never qualifies

	assert.Nil(t, pickInstitutes(m, "20250831", 2, true, false))
}

func TestRequireRecordMissingVersusNaN(t *testing.T) {
	keys := recordKeys([]frame.Record{
		{TradeDate: "20250901", Instrument: "IC.CFE", Value: 0.01},
		{TradeDate: "20250901", Instrument: "IF.CFE", Value: math.NaN()},
	})

	// stored sentinel is data, not a gap
	assert.NoError(t, requireRecord(keys, "20250901", "IC.CFE"))
	assert.NoError(t, requireRecord(keys, "20250901", "IF.CFE"))

	err := requireRecord(keys, "20250902", "IC.CFE")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDataIntegrity))
}

func TestMeanAt(t *testing.T) {
	m := positionMatrix(t)
	assert.InDelta(t, 25, meanAt(m, "20250901", []string{"b01", "b02"}), 1e-12)
	// missing values are skipped, not averaged in
	assert.InDelta(t, 30, meanAt(m, "20250901", []string{"b01", "b05"}), 1e-12)
	assert.True(t, math.IsNaN(meanAt(m, "20250901", nil)))
	assert.True(t, math.IsNaN(meanAt(m, "20250901", []string{"b05"})))
}
