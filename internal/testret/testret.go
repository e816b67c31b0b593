// Package testret computes forward test returns, the dependent
// variable of every downstream score and simulation. For each session
// d and instrument, the return is the change of the major contract's
// volume-weighted price between sessions d-1 and d, measured either at
// the session open ("o") or close ("c").
package testret

import (
	"context"
	"fmt"
	"math"

	"factorlab/internal/calendar"
	"factorlab/internal/errors"
	"factorlab/internal/frame"
	"factorlab/internal/logger"
	"factorlab/internal/tabular"
)

// TestWindow is the forward horizon in sessions.
const TestWindow = 1

// Label names the output table for a return type.
func Label(retType string) string { return "test_return_" + retType }

// Engine 测试收益计算引擎
type Engine struct {
	store    *tabular.Store
	cal      *calendar.Calendar
	universe []string
	log      logger.Logger
}

func NewEngine(store *tabular.Store, cal *calendar.Calendar, universe []string, log logger.Logger) *Engine {
	return &Engine{store: store, cal: cal, universe: universe, log: log}
}

// Run computes test returns of one type over [bgn, stp) and persists
// them under the run mode's idempotence rule.
func (e *Engine) Run(ctx context.Context, retType, mode, bgn, stp string) error {
	if retType != "o" && retType != "c" {
		return errors.New(errors.ErrCodeDataIntegrity,
			fmt.Sprintf("unknown test return type %q", retType))
	}
	label := Label(retType)
	log := e.log.WithField("label", label)

	endDates := e.cal.DatesIn(bgn, stp)
	if len(endDates) == 0 {
		log.Warn("no trading dates in range", "bgn", bgn, "stp", stp)
		return nil
	}

	var records []frame.Record
	for _, endDate := range endDates {
		bgnDate, err := e.cal.Shift(endDate, -TestWindow)
		if err != nil {
			return err
		}
		bars, err := e.store.ReadMajorBarsAt(ctx, endDate)
		if err != nil {
			return err
		}
		contracts := make(map[string]string, len(bars))
		for _, b := range bars {
			contracts[b.Instrument] = b.NContract
		}
		for _, instrument := range e.universe {
			contract, ok := contracts[instrument]
			if !ok {
				// 主力合约缺失, 输入数据损坏
				return errors.NewDataIntegrity(instrument, endDate,
					"no major contract row")
			}
			rBgn, err := e.avRatio(ctx, bgnDate, contract, retType, log)
			if err != nil {
				return err
			}
			rEnd, err := e.avRatio(ctx, endDate, contract, retType, log)
			if err != nil {
				return err
			}
			records = append(records, frame.Record{
				TradeDate:  endDate,
				Instrument: instrument,
				Value:      rEnd/rBgn - 1,
			})
		}
	}
	return e.store.PersistRecords(ctx, label, mode, bgn, stp, records)
}

// avRatio returns amount/volume of the contract's first minute bar
// with volume ("o" scans from the open forward, "c" from the close
// backward). A contract absent from the minute data yields NaN with a
// warning; the sentinel flows through to the stored return.
func (e *Engine) avRatio(ctx context.Context, date, contract, retType string, log logger.Logger) (float64, error) {
	bars, err := e.store.ReadMinuteBarsByContract(ctx, contract, date)
	if err != nil {
		return 0, err
	}
	ratio, skipped, ok := scanAVRatio(bars, retType)
	if !ok {
		log.Warn("no usable minute bar for contract",
			"contract", contract, "trade_date", date, "ret_type", retType)
		return math.NaN(), nil
	}
	if skipped > 0 {
		log.Warn("zero volume bars skipped",
			"contract", contract, "trade_date", date, "ret_type", retType, "skipped", skipped)
	}
	return ratio, nil
}

// scanAVRatio drops bars with all-missing OHLC, then scans for the
// first bar with volume (from the front for "o", the back for "c").
func scanAVRatio(bars []tabular.MinuteBar, retType string) (ratio float64, skipped int, ok bool) {
	kept := make([]tabular.MinuteBar, 0, len(bars))
	for _, b := range bars {
		if math.IsNaN(b.Open) && math.IsNaN(b.High) && math.IsNaN(b.Low) && math.IsNaN(b.Close) {
			continue
		}
		kept = append(kept, b)
	}
	if len(kept) == 0 {
		return 0, 0, false
	}
	idx, step := 0, 1
	if retType == "c" {
		idx, step = len(kept)-1, -1
	}
	for idx >= 0 && idx < len(kept) && kept[idx].Volume == 0 {
		idx += step
		skipped++
	}
	if idx < 0 || idx >= len(kept) {
		return 0, skipped, false
	}
	return kept[idx].Amount / kept[idx].Volume, skipped, true
}

