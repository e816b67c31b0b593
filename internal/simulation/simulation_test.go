package simulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/frame"
)

var simDates = []string{"20250901", "20250902", "20250903", "20250904"}

func weightMatrix(rows map[string][]float64) *frame.Matrix {
	m := frame.NewMatrix(simDates, []string{"IC.CFE", "IF.CFE"})
	for i, d := range simDates {
		if row, ok := rows[d]; ok {
			copy(m.Data[i], row)
		} else {
			copy(m.Data[i], []float64{0, 0})
		}
	}
	return m
}

func returnMatrix(rows map[string][]float64) *frame.Matrix {
	var dates []string
	for _, d := range simDates {
		if _, ok := rows[d]; ok {
			dates = append(dates, d)
		}
	}
	m := frame.NewMatrix(dates, []string{"IC.CFE", "IF.CFE"})
	for i, d := range dates {
		copy(m.Data[i], rows[d])
	}
	return m
}

func TestSimulateZeroSignal(t *testing.T) {
	weights := weightMatrix(nil)
	returns := returnMatrix(map[string][]float64{
		"20250902": {0.01, -0.02},
		"20250903": {0.03, 0.01},
	})

	days := simulate(weights, returns, 0.0005)
	require.Len(t, days, 2)
	for _, d := range days {
		assert.Zero(t, d.NetRet)
		assert.InDelta(t, 1.0, d.NAV, 1e-12)
	}
}

func TestSimulateZeroCostMatchesRaw(t *testing.T) {
	weights := weightMatrix(map[string][]float64{
		"20250902": {0.5, -0.5},
		"20250903": {0.5, -0.5},
		"20250904": {0.5, -0.5},
	})
	returns := returnMatrix(map[string][]float64{
		"20250902": {0.02, -0.02},
		"20250903": {0.01, 0.01},
		"20250904": {-0.01, 0.03},
	})

	days := simulate(weights, returns, 0)
	require.Len(t, days, 3)
	for _, d := range days {
		assert.InDelta(t, d.RawRet, d.NetRet, 1e-12)
	}
	assert.InDelta(t, 0.02, days[0].RawRet, 1e-12)
	assert.InDelta(t, 0.0, days[1].RawRet, 1e-12)
	assert.InDelta(t, (1+0.02)*(1+0.0)*(1-0.02), days[2].NAV, 1e-12)
}

func TestSimulateTurnoverChargedNextDay(t *testing.T) {
	weights := weightMatrix(map[string][]float64{
		"20250902": {1, 0},
		"20250903": {1, 0},
		"20250904": {1, 0},
	})
	returns := returnMatrix(map[string][]float64{
		"20250902": {0, 0},
		"20250903": {0, 0},
		"20250904": {0, 0},
	})

	days := simulate(weights, returns, 0.001)
	require.Len(t, days, 3)
	// the position opened between the first two axis rows; the delta
	// lands one session later
	assert.Zero(t, days[0].DltWgt)
	assert.InDelta(t, 1.0, days[1].DltWgt, 1e-12)
	assert.InDelta(t, -0.001, days[1].NetRet, 1e-12)
	assert.Zero(t, days[2].DltWgt)
}

func TestSimulateSkipsMissingReturns(t *testing.T) {
	weights := weightMatrix(map[string][]float64{
		"20250902": {0.5, 0.5},
	})
	returns := returnMatrix(map[string][]float64{
		"20250902": {0.02, math.NaN()},
	})

	days := simulate(weights, returns, 0)
	require.Len(t, days, 1)
	assert.InDelta(t, 0.01, days[0].RawRet, 1e-12)
}
