// Package simulation converts persisted signal weights into realized
// backtest NAV curves and the cross-signal summary.
package simulation

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"factorlab/internal/artifacts"
	"factorlab/internal/calendar"
	"factorlab/internal/config"
	"factorlab/internal/errors"
	"factorlab/internal/frame"
	"factorlab/internal/logger"
	"factorlab/internal/perf"
	"factorlab/internal/tabular"
	"factorlab/internal/testret"
)

// Engine runs the simulation stage for one configured pipeline.
type Engine struct {
	store *tabular.Store
	cal   *calendar.Calendar
	cfg   *config.ResearchConfig
	log   logger.Logger
}

func NewEngine(store *tabular.Store, cal *calendar.Calendar, cfg *config.ResearchConfig, log logger.Logger) *Engine {
	return &Engine{store: store, cal: cal, cfg: cfg, log: log}
}

// DayResult is one simulated session.
type DayResult struct {
	TradeDate string
	RawRet    float64
	DltWgt    float64
	Fee       float64
	NetRet    float64
	NAV       float64
}

// Run simulates one signal over [bgn, stp). The weight series starts
// one session early so the first day's turnover is observable, gets
// lagged test_window+1 sessions against look-ahead, and is right-joined
// to the realized test returns with missing weights as flat positions.
func (e *Engine) Run(ctx context.Context, sid, mode, bgn, stp string) error {
	iterDates := e.cal.DatesIn(bgn, stp)
	if len(iterDates) == 0 {
		return errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("no trading dates in [%s, %s)", bgn, stp))
	}
	base, err := e.cal.Shift(iterDates[0], -1)
	if err != nil {
		return err
	}
	allDates := e.cal.DatesIn(base, stp)

	sigRecs, err := e.store.ReadFrame(ctx, "sig_"+sid, base, stp)
	if err != nil {
		return err
	}
	weights := frame.Pivot(sigRecs, allDates).
		AlignCols(e.cfg.Universe).
		Shift(testret.TestWindow + 1).
		FillNaN(0)

	retRecs, err := e.store.ReadFrame(ctx, testret.Label("o"), bgn, stp)
	if err != nil {
		return err
	}
	returns := frame.Pivot(retRecs, nil).AlignCols(e.cfg.Universe)

	days := simulate(weights, returns, e.cfg.Simulation.CostRate)

	rows := make([]tabular.Row, len(days))
	for i, d := range days {
		rows[i] = tabular.Row{
			Keys:   []string{d.TradeDate},
			Values: []float64{d.RawRet, d.DltWgt, d.Fee, d.NetRet, d.NAV},
		}
	}
	if err := e.store.PersistRows(ctx, "simu_"+sid, mode, bgn, stp, rows); err != nil {
		return err
	}

	csvRows := make([][]string, len(days))
	for i, d := range days {
		csvRows[i] = []string{d.TradeDate, artifacts.Float(d.NetRet), artifacts.Float(d.NAV)}
	}
	path := filepath.Join(e.cfg.ArtifactsDir, "simulations", sid+".csv")
	if err := artifacts.WriteCSV(path, []string{"trade_date", "netret", "nav"}, csvRows); err != nil {
		return err
	}
	e.log.Info("signal simulated", "sid", sid, "mode", mode, "days", len(days), "path", path)
	return nil
}

// simulate walks the realized return dates in order, compounding NAV
// from 1. Turnover is the absolute weight delta against the previous
// session's lagged row, charged one session later.
func simulate(weights, returns *frame.Matrix, costRate float64) []DayResult {
	// 换手序列按权重轴计算, 再后移一日计费
	delta := make(map[string]float64, len(weights.Dates))
	for i := 1; i < len(weights.Dates); i++ {
		sum := 0.0
		for j := range weights.Cols {
			sum += math.Abs(weights.Data[i][j] - weights.Data[i-1][j])
		}
		if i+1 < len(weights.Dates) {
			delta[weights.Dates[i+1]] = sum
		}
	}

	days := make([]DayResult, 0, len(returns.Dates))
	nav := 1.0
	for _, d := range returns.Dates {
		raw := 0.0
		retRow := returns.Row(d)
		for j := range returns.Cols {
			r := retRow[j]
			if math.IsNaN(r) {
				continue
			}
			raw += weights.At(d, returns.Cols[j]) * r
		}
		turnover := delta[d]
		fee := turnover * costRate
		net := raw - fee
		nav *= 1 + net
		days = append(days, DayResult{
			TradeDate: d,
			RawRet:    raw,
			DltWgt:    turnover,
			Fee:       fee,
			NetRet:    net,
			NAV:       nav,
		})
	}
	return days
}

// RunSummary evaluates every simulated signal's net return series into
// NAV indicators, sorted by sharpe, written as a CSV artifact.
func (e *Engine) RunSummary(ctx context.Context, sids []string, bgn, stp string) error {
	type sidRow struct {
		sid string
		ind perf.Indicators
	}
	rows := make([]sidRow, 0, len(sids))
	for _, sid := range sids {
		stored, err := e.store.ReadRange(ctx, "simu_"+sid, bgn, stp)
		if err != nil {
			return err
		}
		nets := make([]float64, len(stored))
		for i, r := range stored {
			nets[i] = r.Values[3]
		}
		rows = append(rows, sidRow{sid: sid, ind: perf.Evaluate(nets)})
	}
	sort.SliceStable(rows, func(a, b int) bool {
		x, y := rows[a].ind.SharpeRatio, rows[b].ind.SharpeRatio
		if math.IsNaN(y) {
			return !math.IsNaN(x)
		}
		if math.IsNaN(x) {
			return false
		}
		return x > y
	})

	header := []string{"sid", "obs", "annual_return", "annual_vol",
		"sharpe_ratio", "max_drawdown", "final_nav"}
	csvRows := make([][]string, len(rows))
	for i, r := range rows {
		csvRows[i] = []string{r.sid, fmt.Sprintf("%d", r.ind.Obs),
			artifacts.Float(r.ind.AnnualReturn), artifacts.Float(r.ind.AnnualVol),
			artifacts.Float(r.ind.SharpeRatio), artifacts.Float(r.ind.MaxDrawdown),
			artifacts.Float(r.ind.FinalNAV)}
	}
	path := filepath.Join(e.cfg.ArtifactsDir, "summaries", "simulations_summary.csv")
	if err := artifacts.WriteCSV(path, header, csvRows); err != nil {
		return err
	}
	e.log.Info("simulation summary written", "path", path, "signals", len(rows))
	return nil
}
