package factors

import (
	"context"
	"math"

	"factorlab/internal/config"
	"factorlab/internal/frame"
)

// The daily factor families roll over each instrument's own observed
// sessions, not the shared calendar axis, so gaps in one instrument do
// not poison its neighbours.

// RunAMT computes the traded-amount factor: rolling mean of daily
// amount scaled down by money_scale.
func (e *Engine) RunAMT(ctx context.Context, window int, mode, bgn, stp string) error {
	label := config.AmtLabel(window)
	return e.runDailyRolling(ctx, label, window, mode, bgn, stp,
		func(bars []float64) []float64 {
			ma := frame.RollMean(bars, window)
			for i := range ma {
				ma[i] /= e.cfg.Factors.MoneyScale
			}
			return ma
		},
		func(b barFields) float64 { return b.amount })
}

// RunSGM computes the volatility factor: annualized rolling std of the
// major return.
func (e *Engine) RunSGM(ctx context.Context, window int, mode, bgn, stp string) error {
	label := config.SgmLabel(window)
	ann := math.Sqrt(252)
	return e.runDailyRolling(ctx, label, window, mode, bgn, stp,
		func(bars []float64) []float64 {
			sd := frame.RollStd(bars, window)
			for i := range sd {
				sd[i] *= ann
			}
			return sd
		},
		func(b barFields) float64 { return b.majorReturn })
}

// RunSIZE computes the market-size factor: rolling mean of
// oi * amount / volume.
func (e *Engine) RunSIZE(ctx context.Context, window int, mode, bgn, stp string) error {
	label := config.SizeLabel(window)
	return e.runDailyRolling(ctx, label, window, mode, bgn, stp,
		func(bars []float64) []float64 {
			return frame.RollMean(bars, window)
		},
		func(b barFields) float64 { return b.oi * b.amount / b.volume })
}

type barFields struct {
	amount      float64
	volume      float64
	oi          float64
	majorReturn float64
}

func (e *Engine) runDailyRolling(
	ctx context.Context, label string, window int, mode, bgn, stp string,
	roll func([]float64) []float64,
	pick func(barFields) float64,
) error {
	_, base, err := e.rangeWithBase(bgn, stp, window-1)
	if err != nil {
		return err
	}

	var records []frame.Record
	for _, instrument := range e.cfg.Universe {
		bars, err := e.store.ReadMajorBars(ctx, instrument, base, stp)
		if err != nil {
			return err
		}
		raw := make([]float64, len(bars))
		for i, b := range bars {
			raw[i] = pick(barFields{
				amount:      b.Amount,
				volume:      b.Volume,
				oi:          b.OI,
				majorReturn: b.MajorReturn,
			})
		}
		vals := roll(raw)
		for i, b := range bars {
			records = append(records, frame.Record{
				TradeDate:  b.TradeDate,
				Instrument: instrument,
				Value:      vals[i],
			})
		}
	}
	return e.persist(ctx, label, mode, bgn, stp, inRange(records, bgn, stp))
}
