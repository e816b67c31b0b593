package factors

import (
	"context"

	"factorlab/internal/config"
	"factorlab/internal/frame"
	"factorlab/internal/stats"
)

// RunMA converts one factor's raw exposures into smoothed cross-section
// weights. Each session the universe is ranked by exposure descending
// and mapped onto a fixed long/flat/short weight ladder; the ladder
// series is then averaged over the trailing window and re-normalized so
// every row's absolute weights sum to one. 权重包含零值, 一并落库.
func (e *Engine) RunMA(ctx context.Context, factor string, window int, mode, bgn, stp string) error {
	label := config.MALabel(factor, window)

	iterDates, base, err := e.rangeWithBase(bgn, stp, window-1)
	if err != nil {
		return err
	}
	allDates := append(e.cal.DatesIn(base, bgn), iterDates...)

	srcRecs, err := e.store.ReadFrame(ctx, factor, base, stp)
	if err != nil {
		return err
	}
	exp := frame.Pivot(srcRecs, allDates).AlignCols(e.cfg.Universe)

	ladder := rankLadder(len(e.cfg.Universe))
	ranked := frame.NewMatrix(allDates, e.cfg.Universe)
	for i, d := range allDates {
		row := exp.Row(d)
		for rank, j := range stats.ArgSortDesc(row) {
			ranked.Data[i][j] = ladder[rank]
		}
	}

	out := ranked.RollingMean(window).AbsNormalizeRows().FilterDates(bgn, stp)
	return e.persist(ctx, label, mode, bgn, stp, out.StackAll())
}

// rankLadder builds the weight vector assigned to a descending
// exposure ranking: the top half long, the bottom half short, the
// middle (odd universe) flat, scaled to unit absolute sum.
func rankLadder(n int) []float64 {
	k := n / 2
	wh := make([]float64, n)
	if k == 0 {
		return wh
	}
	w := 1.0 / float64(2*k)
	for i := 0; i < k; i++ {
		wh[i] = w
		wh[n-1-i] = -w
	}
	return wh
}
