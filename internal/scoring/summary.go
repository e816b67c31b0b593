package scoring

import (
	"context"
	"math"
	"path/filepath"
	"sort"
	"strconv"

	"factorlab/internal/artifacts"
	"factorlab/internal/perf"
	"factorlab/internal/stats"
)

// ICSummaryRow aggregates one factor's IC series per method: p fields
// from Pearson, s fields from Spearman.
type ICSummaryRow struct {
	Factor string
	Obs    int

	PICMean, PICStd, PICIR, PICPropPos, PICPropNeg float64
	SICMean, SICStd, SICIR, SICPropPos, SICPropNeg float64
}

// RunICSummary aggregates the stored IC series of every factor into
// one table: mean, std, annualized IR and sign proportions per
// correlation method, written as a CSV artifact. Factors whose |ICIR|
// clears the threshold are logged for the operator.
func (e *Engine) RunICSummary(ctx context.Context, factorsMA []string, icirThreshold float64, bgn, stp string) error {
	rows := make([]ICSummaryRow, 0, len(factorsMA))
	for _, factorMA := range factorsMA {
		stored, err := e.store.ReadRange(ctx, "ic-"+factorMA, bgn, stp)
		if err != nil {
			return err
		}
		pearson := make([]float64, len(stored))
		spearman := make([]float64, len(stored))
		for i, r := range stored {
			pearson[i], spearman[i] = r.Values[0], r.Values[1]
		}
		row := ICSummaryRow{Factor: factorMA, Obs: len(stored)}
		row.PICMean, row.PICStd, row.PICIR, row.PICPropPos, row.PICPropNeg = icStats(pearson)
		row.SICMean, row.SICStd, row.SICIR, row.SICPropPos, row.SICPropNeg = icStats(spearman)
		rows = append(rows, row)
	}

	for _, method := range []struct {
		name string
		icir func(ICSummaryRow) float64
	}{
		{"pearson", func(r ICSummaryRow) float64 { return r.PICIR }},
		{"spearman", func(r ICSummaryRow) float64 { return r.SICIR }},
	} {
		picked := 0
		for _, r := range rows {
			if math.Abs(method.icir(r)) >= icirThreshold {
				e.log.Info("ic summary pick",
					"method", method.name, "factor", r.Factor, "icir", method.icir(r))
				picked++
			}
		}
		if picked == 0 {
			e.log.Warn("no factor clears the icir threshold",
				"method", method.name, "threshold", icirThreshold)
		}
	}

	header := []string{"factor", "obs",
		"pICMean", "pICStd", "pICIR", "pICPropPos", "pICPropNeg",
		"sICMean", "sICStd", "sICIR", "sICPropPos", "sICPropNeg"}
	csvRows := make([][]string, len(rows))
	for i, r := range rows {
		csvRows[i] = []string{r.Factor, strconv.Itoa(r.Obs),
			f6(r.PICMean), f6(r.PICStd), f6(r.PICIR), f6(r.PICPropPos), f6(r.PICPropNeg),
			f6(r.SICMean), f6(r.SICStd), f6(r.SICIR), f6(r.SICPropPos), f6(r.SICPropNeg)}
	}
	path := filepath.Join(e.cfg.ArtifactsDir, "summaries", "ic_tests_summary.csv")
	if err := artifacts.WriteCSV(path, header, csvRows); err != nil {
		return err
	}
	e.log.Info("ic summary written", "path", path, "factors", len(rows))
	return nil
}

// icStats reduces one IC series. Proportions are taken over stored
// observations, strict zero coefficients count to neither side.
func icStats(ics []float64) (mean, std, icir, propPos, propNeg float64) {
	mean = stats.Mean(ics)
	std = stats.Std(ics)
	icir = mean / std * math.Sqrt(perf.DaysPerYear)
	if len(ics) == 0 {
		return mean, std, icir, math.NaN(), math.NaN()
	}
	pos, neg := 0, 0
	for _, v := range ics {
		switch {
		case v > 0:
			pos++
		case v < 0:
			neg++
		}
	}
	propPos = float64(pos) / float64(len(ics))
	propNeg = float64(neg) / float64(len(ics))
	return mean, std, icir, propPos, propNeg
}

// RunGPSummary evaluates every factor's stored hedge return series
// into NAV indicators, sorted by sharpe, written as a CSV artifact.
func (e *Engine) RunGPSummary(ctx context.Context, factorsMA []string, sharpeThreshold float64, bgn, stp string) error {
	type gpRow struct {
		factor string
		ind    perf.Indicators
	}
	rows := make([]gpRow, 0, len(factorsMA))
	for _, factorMA := range factorsMA {
		stored, err := e.store.ReadRange(ctx, "gp-"+factorMA, bgn, stp)
		if err != nil {
			return err
		}
		rh := make([]float64, len(stored))
		for i, r := range stored {
			rh[i] = r.Values[2]
		}
		rows = append(rows, gpRow{factor: factorMA, ind: perf.Evaluate(rh)})
	}
	sort.SliceStable(rows, func(a, b int) bool {
		x, y := rows[a].ind.SharpeRatio, rows[b].ind.SharpeRatio
		if math.IsNaN(y) {
			return !math.IsNaN(x)
		}
		if math.IsNaN(x) {
			return false
		}
		return x > y
	})

	for _, r := range rows {
		if math.Abs(r.ind.SharpeRatio) > sharpeThreshold {
			e.log.Info("gp summary pick", "factor", r.factor, "sharpe", r.ind.SharpeRatio)
		}
	}

	header := []string{"factor", "obs", "annual_return", "annual_vol",
		"sharpe_ratio", "max_drawdown", "final_nav"}
	csvRows := make([][]string, len(rows))
	for i, r := range rows {
		csvRows[i] = []string{r.factor, strconv.Itoa(r.ind.Obs),
			f6(r.ind.AnnualReturn), f6(r.ind.AnnualVol),
			f6(r.ind.SharpeRatio), f6(r.ind.MaxDrawdown), f6(r.ind.FinalNAV)}
	}
	path := filepath.Join(e.cfg.ArtifactsDir, "summaries", "gp_tests_summary.csv")
	if err := artifacts.WriteCSV(path, header, csvRows); err != nil {
		return err
	}
	e.log.Info("gp summary written", "path", path, "factors", len(rows))
	return nil
}

func f6(v float64) string {
	return artifacts.Float(v)
}
