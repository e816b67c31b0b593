package signal

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"factorlab/internal/artifacts"
	"factorlab/internal/config"
	"factorlab/internal/errors"
	"factorlab/internal/frame"
	"factorlab/internal/stats"
)

// RunDynamic synthesizes one dynamically weighted signal. Each
// calendar month in the range retrains the factor weights from the
// trailing window of GP hedge returns; the trained vectors are mapped
// onto their training end dates, forward-filled, lagged one session
// and back-filled at the head, then drive the same per-date synthesis
// as a fixed signal.
func (e *Engine) RunDynamic(ctx context.Context, dc config.DynamicSignalConfig, mode, bgn, stp string) error {
	iterDates := e.cal.DatesIn(bgn, stp)
	if len(iterDates) == 0 {
		return errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("no trading dates in [%s, %s)", bgn, stp))
	}

	models, err := e.trainModels(ctx, dc, bgn, stp)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		e.log.Warn("no model trained for dynamic signal", "sid", dc.SID)
	}

	// 月末模型 → 日度权重: ffill 后滞后一日, 序列头部 bfill
	weightsByDate := frame.NewMatrix(iterDates, dc.Factors)
	for trainEnd, ws := range models {
		if !weightsByDate.HasDate(trainEnd) {
			continue
		}
		for j, factor := range dc.Factors {
			if err := weightsByDate.Set(trainEnd, factor, ws[j]); err != nil {
				return err
			}
		}
	}
	weightsByDate = weightsByDate.FFill().Shift(1).BFill()

	wf := func(date, factor string) (float64, bool) {
		w := weightsByDate.At(date, factor)
		return w, !math.IsNaN(w)
	}

	pivots, err := e.loadExposures(ctx, dc.Factors, bgn, stp)
	if err != nil {
		return err
	}
	sig := e.synthesize(pivots, dc.Factors, wf)
	return e.persistSignal(ctx, dc.SID, mode, bgn, stp, sig.StackAll())
}

// trainModels fits one weight vector per calendar month in [bgn, stp),
// keyed by the last trading date of the training window. A window with
// too few observations falls back to equal weights; a rank-deficient
// sample is skipped so the previous model keeps serving.
func (e *Engine) trainModels(ctx context.Context, dc config.DynamicSignalConfig, bgn, stp string) (map[string][]float64, error) {
	gpRet, err := e.loadGPReturns(ctx, dc, bgn, stp)
	if err != nil {
		return nil, err
	}

	k := len(dc.Factors)
	models := make(map[string][]float64)
	for _, month := range e.cal.MonthsIn(bgn, stp) {
		trnBgn, trnEnd, err := e.cal.TrailingMonthWindow(month, dc.TrainMonths)
		if err != nil {
			return nil, err
		}
		obs := completeRows(gpRet, trnBgn, trnEnd)

		ws, ok, err := fitWindow(obs, k, dc.MinModelDays, dc.RiskAversion)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeSparseData,
				fmt.Sprintf("signal %s month %s: mean-variance solve", dc.SID, month), err)
		}
		if !ok {
			e.log.Warn("rank-deficient training sample, model skipped",
				"sid", dc.SID, "month", month, "factors", k)
			continue
		}

		models[trnEnd] = ws
		if err := e.saveModel(dc, month, ws); err != nil {
			return nil, err
		}
	}
	return models, nil
}

// loadGPReturns reads each factor's GP hedge return from the earliest
// training window start through stp into a (date x factor) pivot.
func (e *Engine) loadGPReturns(ctx context.Context, dc config.DynamicSignalConfig, bgn, stp string) (*frame.Matrix, error) {
	months := e.cal.MonthsIn(bgn, stp)
	if len(months) == 0 {
		return nil, errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("no months in [%s, %s)", bgn, stp))
	}
	base, _, err := e.cal.TrailingMonthWindow(months[0], dc.TrainMonths)
	if err != nil {
		return nil, err
	}

	var recs []frame.Record
	for _, factor := range dc.Factors {
		rows, err := e.store.ReadRange(ctx, "gp-"+factor, base, stp)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			recs = append(recs, frame.Record{
				TradeDate:  r.Keys[0],
				Instrument: factor,
				Value:      r.Values[2], // rh
			})
		}
	}
	return frame.Pivot(recs, nil).AlignCols(dc.Factors), nil
}

// fitWindow maps one training window's complete observations to a
// weight vector. A window shorter than minDays falls back to equal
// weights without touching the optimizer; a rank-deficient sample
// reports ok=false so the caller keeps serving the previous model.
func fitWindow(obs [][]float64, k, minDays int, riskAversion float64) (ws []float64, ok bool, err error) {
	if len(obs) < minDays {
		return equalWeights(k), true, nil
	}
	sample := mat.NewDense(len(obs), k, nil)
	for i, row := range obs {
		sample.SetRow(i, row)
	}
	if stats.MatrixRank(sample) < k {
		return nil, false, nil
	}
	ws, err = stats.MaxUtilityWeights(stats.MeanVector(sample), stats.CovMatrix(sample), riskAversion)
	if err != nil {
		return nil, false, err
	}
	return ws, true, nil
}

// equalWeights is the fallback model for a training window with too
// few complete observations.
func equalWeights(k int) []float64 {
	ws := make([]float64, k)
	for i := range ws {
		ws[i] = 1 / float64(k)
	}
	return ws
}

// completeRows collects the dates in [bgn, end] where every factor has
// an observation. Dates with a partial cross-section cannot enter the
// covariance sample.
func completeRows(m *frame.Matrix, bgn, end string) [][]float64 {
	var out [][]float64
	for _, d := range m.Dates {
		if d < bgn || d > end {
			continue
		}
		row := m.Row(d)
		full := true
		for _, v := range row {
			if math.IsNaN(v) {
				full = false
				break
			}
		}
		if full {
			cp := make([]float64, len(row))
			copy(cp, row)
			out = append(out, cp)
		}
	}
	return out
}

// saveModel snapshots one trained weight vector as a CSV artifact
// keyed by signal id and training month.
func (e *Engine) saveModel(dc config.DynamicSignalConfig, month string, ws []float64) error {
	rows := make([][]string, len(dc.Factors))
	for i, factor := range dc.Factors {
		rows[i] = []string{factor, artifacts.Float(ws[i])}
	}
	path := filepath.Join(e.cfg.ArtifactsDir, "signals", "models",
		month[:4], month, fmt.Sprintf("%s-%s.csv", dc.SID, month))
	if err := artifacts.WriteCSV(path, []string{"factor", dc.SID}, rows); err != nil {
		return err
	}
	e.log.Info("model trained", "sid", dc.SID, "month", month, "path", path)
	return nil
}
