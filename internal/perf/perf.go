// Package perf evaluates daily return series into the indicator set
// reported by the summary stages and the simulator.
package perf

import (
	"math"

	"factorlab/internal/stats"
)

// DaysPerYear is the annualization base for daily series.
const DaysPerYear = 252

// Indicators are the headline figures of one daily net-return series.
type Indicators struct {
	Obs          int
	ReturnMean   float64
	ReturnStd    float64
	AnnualReturn float64
	AnnualVol    float64
	SharpeRatio  float64
	MaxDrawdown  float64
	FinalNAV     float64
}

// Evaluate computes the indicator set over a daily return series.
// Missing observations count as flat days, matching the zero-fill
// policy at the join boundaries upstream.
func Evaluate(returns []float64) Indicators {
	rets := make([]float64, len(returns))
	for i, v := range returns {
		if math.IsNaN(v) {
			rets[i] = 0
		} else {
			rets[i] = v
		}
	}

	mean := stats.Mean(rets)
	sd := stats.Std(rets)
	ind := Indicators{
		Obs:          len(rets),
		ReturnMean:   mean,
		ReturnStd:    sd,
		AnnualReturn: mean * DaysPerYear,
		AnnualVol:    sd * math.Sqrt(DaysPerYear),
		FinalNAV:     1,
	}
	if ind.AnnualVol > 0 {
		ind.SharpeRatio = ind.AnnualReturn / ind.AnnualVol
	} else {
		ind.SharpeRatio = math.NaN()
	}

	nav, peak, mdd := 1.0, 1.0, 0.0
	for _, r := range rets {
		nav *= 1 + r
		if nav > peak {
			peak = nav
		}
		if dd := 1 - nav/peak; dd > mdd {
			mdd = dd
		}
	}
	ind.MaxDrawdown = mdd
	ind.FinalNAV = nav
	return ind
}

// NAVCurve compounds a daily return series into a NAV curve starting
// from 1. NaN returns compound as flat days.
func NAVCurve(returns []float64) []float64 {
	out := make([]float64, len(returns))
	nav := 1.0
	for i, r := range returns {
		if !math.IsNaN(r) {
			nav *= 1 + r
		}
		out[i] = nav
	}
	return out
}
