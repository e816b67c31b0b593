// Package signal synthesizes tradable instrument weights from factor
// exposures, with either fixed or monthly retrained factor weights.
package signal

import (
	"context"
	"math"
	"sort"

	"factorlab/internal/calendar"
	"factorlab/internal/config"
	"factorlab/internal/frame"
	"factorlab/internal/logger"
	"factorlab/internal/tabular"
)

// Engine runs the signal stage for one configured pipeline.
type Engine struct {
	store *tabular.Store
	cal   *calendar.Calendar
	cfg   *config.ResearchConfig
	log   logger.Logger
}

func NewEngine(store *tabular.Store, cal *calendar.Calendar, cfg *config.ResearchConfig, log logger.Logger) *Engine {
	return &Engine{store: store, cal: cal, cfg: cfg, log: log}
}

// weightFn resolves the factor weight effective on a date. ok=false
// drops the factor from that date's synthesis.
type weightFn func(date, factor string) (float64, bool)

// loadExposures reads each factor's exposure over [bgn, stp) into a
// universe-aligned pivot.
func (e *Engine) loadExposures(ctx context.Context, factors []string, bgn, stp string) (map[string]*frame.Matrix, error) {
	pivots := make(map[string]*frame.Matrix, len(factors))
	for _, factor := range factors {
		recs, err := e.store.ReadFrame(ctx, factor, bgn, stp)
		if err != nil {
			return nil, err
		}
		pivots[factor] = frame.Pivot(recs, nil).AlignCols(e.cfg.Universe)
	}
	return pivots, nil
}

// synthesize builds the per-date weighted sum of factor exposures and
// normalizes each row to unit absolute weight. A date is emitted when
// at least one factor carries rows for it; a factor absent on a date
// drops out of that date's sum, while a present-but-missing exposure
// value propagates NaN into the row before the final zero fill.
func (e *Engine) synthesize(pivots map[string]*frame.Matrix, factors []string, wf weightFn) *frame.Matrix {
	dateSet := make(map[string]bool)
	for _, factor := range factors {
		for _, d := range pivots[factor].Dates {
			dateSet[d] = true
		}
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := frame.NewMatrix(dates, e.cfg.Universe)
	for i, d := range dates {
		row := make([]float64, len(e.cfg.Universe))
		for _, factor := range factors {
			p := pivots[factor]
			if !p.HasDate(d) {
				continue
			}
			w, ok := wf(d, factor)
			if !ok {
				continue
			}
			for j, v := range p.Row(d) {
				row[j] += w * v
			}
		}
		copy(out.Data[i], row)
	}
	return out.AbsNormalizeRows()
}

func (e *Engine) persistSignal(ctx context.Context, sid, mode, bgn, stp string, records []frame.Record) error {
	if err := e.store.PersistRecords(ctx, "sig_"+sid, mode, bgn, stp, records); err != nil {
		return err
	}
	e.log.Info("signal synthesized", "sid", sid, "mode", mode, "rows", len(records))
	return nil
}

// normalizeWeights scales a raw factor-weight map to unit absolute
// sum, computed once at construction.
func normalizeWeights(raw map[string]float64) ([]string, map[string]float64) {
	factors := make([]string, 0, len(raw))
	sum := 0.0
	for f, w := range raw {
		factors = append(factors, f)
		sum += math.Abs(w)
	}
	sort.Strings(factors)

	norm := make(map[string]float64, len(raw))
	for f, w := range raw {
		if sum > 0 {
			norm[f] = w / sum
		} else {
			norm[f] = 0
		}
	}
	return factors, norm
}
