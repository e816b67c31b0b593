package factors

import (
	"context"
	"math"
	"sort"

	"factorlab/internal/config"
	"factorlab/internal/frame"
)

// RunBETA regresses each instrument's major return on the market index
// return with a rolling covariance-over-variance estimate.
func (e *Engine) RunBETA(ctx context.Context, window int, mode, bgn, stp string) error {
	label := config.BetaLabel(window)
	_, base, err := e.rangeWithBase(bgn, stp, window-1)
	if err != nil {
		return err
	}

	idxBars, err := e.store.ReadEquityIndex(ctx, e.cfg.EquityIndex, base, stp)
	if err != nil {
		return err
	}
	market := make(map[string]float64, len(idxBars))
	for _, b := range idxBars {
		market[b.TradeDate] = (b.Close/b.PreClose - 1) * 100
	}

	var records []frame.Record
	for _, instrument := range e.cfg.Universe {
		bars, err := e.store.ReadMajorBars(ctx, instrument, base, stp)
		if err != nil {
			return err
		}
		n := len(bars)
		xs, ys, xy, xx := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
		for i, b := range bars {
			x, ok := market[b.TradeDate]
			if !ok {
				x = math.NaN()
			}
			y := b.MajorReturn
			xs[i], ys[i] = x, y
			xy[i], xx[i] = x*y, x*x
		}
		mXY := frame.RollMean(xy, window)
		mXX := frame.RollMean(xx, window)
		mX := frame.RollMean(xs, window)
		mY := frame.RollMean(ys, window)
		for i, b := range bars {
			covXY := mXY[i] - mX[i]*mY[i]
			covXX := mXX[i] - mX[i]*mX[i]
			records = append(records, frame.Record{
				TradeDate:  b.TradeDate,
				Instrument: instrument,
				Value:      covXY / covXX,
			})
		}
	}
	return e.persist(ctx, label, mode, bgn, stp, inRange(records, bgn, stp))
}

// RunBETADiff computes the difference variant: the change of the base
// window's beta over `window` sessions.
func (e *Engine) RunBETADiff(ctx context.Context, window, baseWindow int, mode, bgn, stp string) error {
	srcLabel := config.BetaLabel(baseWindow)
	label := config.BetaDiffLabel(window)
	_, base, err := e.rangeWithBase(bgn, stp, window)
	if err != nil {
		return err
	}

	src, err := e.store.ReadFrame(ctx, srcLabel, base, stp)
	if err != nil {
		return err
	}
	byInstrument := make(map[string][]frame.Record)
	for _, r := range src {
		byInstrument[r.Instrument] = append(byInstrument[r.Instrument], r)
	}

	var records []frame.Record
	for _, instrument := range e.cfg.Universe {
		series := byInstrument[instrument]
		sort.Slice(series, func(a, b int) bool { return series[a].TradeDate < series[b].TradeDate })
		for i, r := range series {
			v := math.NaN()
			if i >= window {
				v = r.Value - series[i-window].Value
			}
			records = append(records, frame.Record{
				TradeDate:  r.TradeDate,
				Instrument: instrument,
				Value:      v,
			})
		}
	}
	return e.persist(ctx, label, mode, bgn, stp, inRange(records, bgn, stp))
}
