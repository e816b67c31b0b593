package scoring

import (
	"context"
	"sort"

	"factorlab/internal/frame"
	"factorlab/internal/stats"
	"factorlab/internal/tabular"
)

// RunIC scores one averaged factor: per trade date the Pearson and
// Spearman correlation between the lagged exposure and the forward
// open test return across whatever instruments have a return that
// date. 右连接: 缺失暴露按 NaN 成对剔除.
func (e *Engine) RunIC(ctx context.Context, factorMA, mode, bgn, stp string) error {
	fac, retRecs, err := e.loadInputs(ctx, factorMA, bgn, stp)
	if err != nil {
		return err
	}

	byDate := make(map[string][]frame.Record)
	var dates []string
	for _, r := range retRecs {
		if _, ok := byDate[r.TradeDate]; !ok {
			dates = append(dates, r.TradeDate)
		}
		byDate[r.TradeDate] = append(byDate[r.TradeDate], r)
	}
	sort.Strings(dates)

	rows := make([]tabular.Row, 0, len(dates))
	for _, d := range dates {
		recs := byDate[d]
		xs := make([]float64, len(recs))
		ys := make([]float64, len(recs))
		for i, r := range recs {
			xs[i] = fac.At(d, r.Instrument)
			ys[i] = r.Value
		}
		rows = append(rows, tabular.Row{
			Keys:   []string{d},
			Values: []float64{stats.Pearson(xs, ys), stats.Spearman(xs, ys)},
		})
	}

	if err := e.store.PersistRows(ctx, "ic-"+factorMA, mode, bgn, stp, rows); err != nil {
		return err
	}
	e.log.Info("ic test scored", "factor", factorMA, "mode", mode, "dates", len(rows))
	return nil
}
