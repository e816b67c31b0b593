// Package scoring evaluates factor exposures against forward test
// returns: per-date information coefficients (IC) and bucket spread
// returns (GP), plus the cross-factor summary artifacts.
package scoring

import (
	"context"
	"fmt"

	"factorlab/internal/calendar"
	"factorlab/internal/config"
	"factorlab/internal/errors"
	"factorlab/internal/frame"
	"factorlab/internal/logger"
	"factorlab/internal/tabular"
	"factorlab/internal/testret"
)

// Engine runs the scoring stages for one configured pipeline.
type Engine struct {
	store *tabular.Store
	cal   *calendar.Calendar
	cfg   *config.ResearchConfig
	log   logger.Logger
}

func NewEngine(store *tabular.Store, cal *calendar.Calendar, cfg *config.ResearchConfig, log logger.Logger) *Engine {
	return &Engine{store: store, cal: cal, cfg: cfg, log: log}
}

// loadInputs reads the lagged exposure pivot and the forward test
// returns for one factor. The exposure is read test_window+1 sessions
// early and shifted down by the same amount, so the exposure matched
// to a return is always observable before the return window opens.
func (e *Engine) loadInputs(ctx context.Context, factorMA, bgn, stp string) (*frame.Matrix, []frame.Record, error) {
	iterDates := e.cal.DatesIn(bgn, stp)
	if len(iterDates) == 0 {
		return nil, nil, errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("no trading dates in [%s, %s)", bgn, stp))
	}
	base, err := e.cal.Shift(iterDates[0], -(testret.TestWindow + 1))
	if err != nil {
		return nil, nil, err
	}
	allDates := e.cal.DatesIn(base, stp)

	facRecs, err := e.store.ReadFrame(ctx, factorMA, base, stp)
	if err != nil {
		return nil, nil, err
	}
	fac := frame.Pivot(facRecs, allDates).Shift(testret.TestWindow + 1)

	retRecs, err := e.store.ReadFrame(ctx, testret.Label("o"), bgn, stp)
	if err != nil {
		return nil, nil, err
	}
	return fac, retRecs, nil
}
