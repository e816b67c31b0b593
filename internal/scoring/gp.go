package scoring

import (
	"context"
	"math"

	"factorlab/internal/frame"
	"factorlab/internal/stats"
	"factorlab/internal/tabular"
)

// BucketWeights builds the three weight vectors a descending exposure
// ranking is dotted with: long leg 1/k on the top half, short leg 1/k
// on the bottom half, hedge +-1/(2k) long-minus-short. The middle seat
// of an odd universe carries zero in all three.
func BucketWeights(n int) (wl, ws, wh []float64) {
	k := n / 2
	wl = make([]float64, n)
	ws = make([]float64, n)
	wh = make([]float64, n)
	if k == 0 {
		return wl, ws, wh
	}
	for i := 0; i < k; i++ {
		wl[i] = 1 / float64(k)
		ws[n-1-i] = 1 / float64(k)
		wh[i] = 1 / float64(2*k)
		wh[n-1-i] = -1 / float64(2*k)
	}
	return wl, ws, wh
}

// RunGP scores one averaged factor by bucket returns: per trade date
// the universe is sorted by lagged exposure descending and the forward
// return vector is dotted with the long, short and hedge weights.
// A universe instrument missing its return poisons the date to NaN,
// the same way the pandas-style dot product would.
func (e *Engine) RunGP(ctx context.Context, factorMA, mode, bgn, stp string) error {
	fac, retRecs, err := e.loadInputs(ctx, factorMA, bgn, stp)
	if err != nil {
		return err
	}
	facU := fac.AlignCols(e.cfg.Universe)
	retPivot := frame.Pivot(retRecs, nil).AlignCols(e.cfg.Universe)
	wl, ws, wh := BucketWeights(len(e.cfg.Universe))

	rows := make([]tabular.Row, 0, len(retPivot.Dates))
	for _, d := range retPivot.Dates {
		expRow := facU.Row(d)
		if expRow == nil {
			expRow = nanRow(len(e.cfg.Universe))
		}
		rl, rs, rh := bucketReturns(expRow, retPivot.Row(d), wl, ws, wh)
		rows = append(rows, tabular.Row{Keys: []string{d}, Values: []float64{rl, rs, rh}})
	}

	if err := e.store.PersistRows(ctx, "gp-"+factorMA, mode, bgn, stp, rows); err != nil {
		return err
	}
	e.log.Info("gp test scored", "factor", factorMA, "mode", mode, "dates", len(rows))
	return nil
}

// bucketReturns sorts one cross-section by exposure descending and
// dots the return vector with each bucket weight vector.
func bucketReturns(expRow, retRow, wl, ws, wh []float64) (rl, rs, rh float64) {
	for rank, j := range stats.ArgSortDesc(expRow) {
		v := retRow[j]
		rl += v * wl[rank]
		rs += v * ws[rank]
		rh += v * wh[rank]
	}
	return rl, rs, rh
}

func nanRow(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
