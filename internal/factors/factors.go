// Package factors computes per-instrument factor exposures. Each unit
// of work is one (family, parameter) combination; it reads raw market
// data with enough warm-up lookback, computes the exposure for every
// session in [bgn, stp), and persists it into the label's own table.
package factors

import (
	"context"
	"fmt"

	"factorlab/internal/calendar"
	"factorlab/internal/config"
	"factorlab/internal/errors"
	"factorlab/internal/frame"
	"factorlab/internal/logger"
	"factorlab/internal/tabular"
)

// Engine 因子暴露计算引擎
type Engine struct {
	store *tabular.Store
	cal   *calendar.Calendar
	cfg   *config.ResearchConfig
	log   logger.Logger
}

func NewEngine(store *tabular.Store, cal *calendar.Calendar, cfg *config.ResearchConfig, log logger.Logger) *Engine {
	return &Engine{store: store, cal: cal, cfg: cfg, log: log}
}

// rangeWithBase resolves the iteration dates of [bgn, stp) and the
// warm-up base date lookback sessions before the first of them.
func (e *Engine) rangeWithBase(bgn, stp string, lookback int) (iterDates []string, base string, err error) {
	iterDates = e.cal.DatesIn(bgn, stp)
	if len(iterDates) == 0 {
		return nil, "", errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("no trading dates in [%s, %s)", bgn, stp))
	}
	base, err = e.cal.Shift(iterDates[0], -lookback)
	if err != nil {
		return nil, "", err
	}
	return iterDates, base, nil
}

// persist writes one factor's records under the run mode.
func (e *Engine) persist(ctx context.Context, label, mode, bgn, stp string, records []frame.Record) error {
	if err := e.store.PersistRecords(ctx, label, mode, bgn, stp, records); err != nil {
		return err
	}
	e.log.Info("factor exposure calculated", "label", label, "mode", mode, "rows", len(records))
	return nil
}

// inRange keeps records with trade_date in [bgn, stp).
func inRange(records []frame.Record, bgn, stp string) []frame.Record {
	out := records[:0]
	for _, r := range records {
		if r.TradeDate >= bgn && r.TradeDate < stp {
			out = append(out, r)
		}
	}
	return out
}
