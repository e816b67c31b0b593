package signal

import (
	"context"
	"fmt"

	"factorlab/internal/config"
	"factorlab/internal/errors"
)

// Synthesis orderings for fixed-weight signals.
const (
	// OrderMASyn drives the synthesis from already-averaged factor
	// exposures; the configured factor labels carry the MA suffix.
	OrderMASyn = "ma_syn"
	// OrderSynMA synthesizes raw exposures first, then averages the
	// resulting signal over the configured trailing window.
	OrderSynMA = "syn_ma"
)

// RunFixed synthesizes one fixed-weight signal. The raw factor weights
// are normalized once; every date's signal is the weighted sum of the
// factor exposure rows, renormalized across the universe.
func (e *Engine) RunFixed(ctx context.Context, sc config.FixedSignalConfig, mode, bgn, stp string) error {
	factors, weights := normalizeWeights(sc.Weights)
	wf := func(_, factor string) (float64, bool) {
		w, ok := weights[factor]
		return w, ok
	}

	order := sc.Order
	if order == "" {
		order = OrderMASyn
	}

	switch order {
	case OrderMASyn:
		pivots, err := e.loadExposures(ctx, factors, bgn, stp)
		if err != nil {
			return err
		}
		sig := e.synthesize(pivots, factors, wf)
		return e.persistSignal(ctx, sc.SID, mode, bgn, stp, sig.StackAll())

	case OrderSynMA:
		// the trailing average needs a warm-up of raw synthesis rows
		iterDates := e.cal.DatesIn(bgn, stp)
		if len(iterDates) == 0 {
			return errors.New(errors.ErrCodeCalendarRange,
				fmt.Sprintf("no trading dates in [%s, %s)", bgn, stp))
		}
		base, err := e.cal.Shift(iterDates[0], -(sc.MAWindow - 1))
		if err != nil {
			return err
		}
		pivots, err := e.loadExposures(ctx, factors, base, stp)
		if err != nil {
			return err
		}
		sig := e.synthesize(pivots, factors, wf).
			RollingMean(sc.MAWindow).
			AbsNormalizeRows().
			FilterDates(bgn, stp)
		return e.persistSignal(ctx, sc.SID, mode, bgn, stp, sig.StackAll())

	default:
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("signal %s: unknown order %q", sc.SID, sc.Order))
	}
}
