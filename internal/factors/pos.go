package factors

import (
	"context"
	"math"
	"sort"

	"factorlab/internal/config"
	"factorlab/internal/errors"
	"factorlab/internal/frame"
	"factorlab/internal/testret"
)

// RunPOS computes the four smart-trader exposures for one top-player
// count. Smart institutes are picked from the previous session's
// public positions, with the direction of "smart" decided by the sign
// of the same session's close test return; the exposure is the mean of
// the picked institutes' positions on the current session. Hold
// variants (POSH*) are taken as-is, delta variants (POSD*) negated.
func (e *Engine) RunPOS(ctx context.Context, qty int, mode, bgn, stp string) error {
	hlLbl, hsLbl, dlLbl, dsLbl := config.PosLabels(qty)

	iterDates, base, err := e.rangeWithBase(bgn, stp, 1)
	if err != nil {
		return err
	}
	modelDates := append([]string{base}, iterDates[:len(iterDates)-1]...)

	trRecs, err := e.store.ReadFrame(ctx, testret.Label("c"), bgn, stp)
	if err != nil {
		return err
	}
	trPivot := frame.Pivot(trRecs, nil)
	trKeys := recordKeys(trRecs)

	recs := map[string][]frame.Record{hlLbl: nil, hsLbl: nil, dlLbl: nil, dsLbl: nil}
	for _, instrument := range e.cfg.Universe {
		hl, hs, err := e.positionPivots(ctx, "hld", instrument, base, stp)
		if err != nil {
			return err
		}
		dl, ds, err := e.positionPivots(ctx, "dlt", instrument, base, stp)
		if err != nil {
			return err
		}

		for i, tradeDate := range iterDates {
			modelDate := modelDates[i]
			if err := requireRecord(trKeys, tradeDate, instrument); err != nil {
				return err
			}
			ret := trPivot.At(tradeDate, instrument)

			var hlSmart, hsSmart, dlSmart, dsSmart []string
			switch {
			case ret > 0:
				if !hl.HasDate(modelDate) {
					e.log.Warn("position data missing for model date",
						"instrument", instrument, "model_date", modelDate, "top", qty)
				} else {
					hlSmart = pickInstitutes(hl, modelDate, qty, true, true)
					hsSmart = pickInstitutes(hs, modelDate, qty, false, true)
					dlSmart = pickInstitutes(dl, modelDate, qty, true, false)
					dsSmart = pickInstitutes(ds, modelDate, qty, false, false)
				}
			case ret < 0:
				if !hl.HasDate(modelDate) {
					e.log.Warn("position data missing for model date",
						"instrument", instrument, "model_date", modelDate, "top", qty)
				} else {
					hlSmart = pickInstitutes(hl, modelDate, qty, false, false)
					hsSmart = pickInstitutes(hs, modelDate, qty, true, false)
					dlSmart = pickInstitutes(dl, modelDate, qty, false, false)
					dsSmart = pickInstitutes(ds, modelDate, qty, true, false)
				}
			}

			recs[hlLbl] = append(recs[hlLbl], frame.Record{
				TradeDate: tradeDate, Instrument: instrument,
				Value: meanAt(hl, tradeDate, hlSmart)})
			recs[hsLbl] = append(recs[hsLbl], frame.Record{
				TradeDate: tradeDate, Instrument: instrument,
				Value: meanAt(hs, tradeDate, hsSmart)})
			recs[dlLbl] = append(recs[dlLbl], frame.Record{
				TradeDate: tradeDate, Instrument: instrument,
				Value: -meanAt(dl, tradeDate, dlSmart)})
			recs[dsLbl] = append(recs[dsLbl], frame.Record{
				TradeDate: tradeDate, Instrument: instrument,
				Value: -meanAt(ds, tradeDate, dsSmart)})
		}
	}

	for _, label := range []string{hlLbl, hsLbl, dlLbl, dsLbl} {
		if err := e.persist(ctx, label, mode, bgn, stp, recs[label]); err != nil {
			return err
		}
	}
	return nil
}

// recordKeys indexes the stored (date, instrument) pairs so a record
// absent from the table outright can be told apart from a stored NaN
// sentinel.
func recordKeys(recs []frame.Record) map[string]struct{} {
	keys := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		keys[r.TradeDate+"|"+r.Instrument] = struct{}{}
	}
	return keys
}

// requireRecord aborts the unit when the close test return of the pair
// was never stored. A stored NaN passes; it only mutes the smart pick
// for the date.
func requireRecord(keys map[string]struct{}, tradeDate, instrument string) error {
	if _, ok := keys[tradeDate+"|"+instrument]; !ok {
		return errors.NewDataIntegrity(instrument, tradeDate, "close test return missing")
	}
	return nil
}

// positionPivots loads one position table of one instrument and pivots
// it into (date x institute) long and short matrices.
func (e *Engine) positionPivots(ctx context.Context, kind, instrument, bgn, stp string) (*frame.Matrix, *frame.Matrix, error) {
	rows, err := e.store.ReadPositions(ctx, kind, instrument, bgn, stp)
	if err != nil {
		return nil, nil, err
	}
	lng := make([]frame.Record, 0, len(rows))
	srt := make([]frame.Record, 0, len(rows))
	for _, r := range rows {
		lng = append(lng, frame.Record{TradeDate: r.TradeDate, Instrument: r.Institute, Value: r.Lng})
		srt = append(srt, frame.Record{TradeDate: r.TradeDate, Instrument: r.Institute, Value: r.Srt})
	}
	return frame.Pivot(lng, nil), frame.Pivot(srt, nil), nil
}

// pickInstitutes sorts the institutes with data on the date by
// position descending and returns the top (largest) or bottom
// (smallest) qty of them, optionally dropping exact zeros first.
func pickInstitutes(m *frame.Matrix, date string, qty int, top, dropZero bool) []string {
	type entry struct {
		institute string
		value     float64
	}
	row := m.Row(date)
	if row == nil {
		return nil
	}
	var entries []entry
	for j, institute := range m.Cols {
		v := row[j]
		if math.IsNaN(v) {
			continue
		}
		if dropZero && v == 0 {
			continue
		}
		entries = append(entries, entry{institute, v})
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].value > entries[b].value })

	if qty > len(entries) {
		qty = len(entries)
	}
	if !top {
		entries = entries[len(entries)-qty:]
	} else {
		entries = entries[:qty]
	}
	out := make([]string, len(entries))
	for i, en := range entries {
		out[i] = en.institute
	}
	return out
}

// meanAt averages the institutes' positions on the date, skipping
// missing values; an empty pick yields the NaN sentinel.
func meanAt(m *frame.Matrix, date string, institutes []string) float64 {
	sum, n := 0.0, 0
	for _, institute := range institutes {
		v := m.At(date, institute)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
