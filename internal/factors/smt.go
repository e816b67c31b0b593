package factors

import (
	"context"
	"fmt"
	"math"
	"sort"

	"factorlab/internal/config"
	"factorlab/internal/errors"
	"factorlab/internal/frame"
	"factorlab/internal/tabular"
)

// smtBar is one minute bar enriched with the derived smart-money
// columns.
type smtBar struct {
	tradeDate string
	volume    float64
	amount    float64
	vwap      float64
	ret       float64
	smartIdx  float64
}

// RunSMT computes the smart-money price and return exposures for one
// (window, lambda) pair. Minute bars are ranked by a per-bar smart
// index; the bars holding the first lambda share of traded volume form
// the smart set, and the exposure measures how their amount-weighted
// vwap and return deviate from the whole window's.
func (e *Engine) RunSMT(ctx context.Context, window int, lbd float64, mode, bgn, stp string) error {
	pLbl, rLbl := config.SmtLabels(window, lbd)

	iterDates, base, err := e.rangeWithBase(bgn, stp, window-1)
	if err != nil {
		return err
	}

	var pRecs, rRecs []frame.Record
	for _, instrument := range e.cfg.Universe {
		multiplier, ok := e.cfg.Factors.Multipliers[instrument]
		if !ok || multiplier <= 0 {
			return errors.New(errors.ErrCodeDataIntegrity,
				fmt.Sprintf("no contract multiplier for %s", instrument))
		}
		raw, err := e.store.ReadMinuteBarsRange(ctx, instrument, base, stp)
		if err != nil {
			return err
		}
		bars := e.enrichMinuteBars(raw, multiplier)

		for _, endDate := range iterDates {
			winBgn, err := e.cal.Shift(endDate, -(window - 1))
			if err != nil {
				return err
			}
			sub := barsBetween(bars, winBgn, endDate)
			p, r, ok := calSmart(sub, lbd)
			if !ok {
				e.log.Warn("smart window has zero traded amount",
					"instrument", instrument, "trade_date", endDate, "window", window, "lbd", lbd)
			}
			pRecs = append(pRecs, frame.Record{TradeDate: endDate, Instrument: instrument, Value: p})
			rRecs = append(rRecs, frame.Record{TradeDate: endDate, Instrument: instrument, Value: r})
		}
	}

	if err := e.persist(ctx, pLbl, mode, bgn, stp, pRecs); err != nil {
		return err
	}
	return e.persist(ctx, rLbl, mode, bgn, stp, rRecs)
}

// enrichMinuteBars derives vwap, the minute close return and the smart
// index. vwap is forward-filled across the whole loaded range, so a
// zero-volume minute inherits the previous bar's price level.
func (e *Engine) enrichMinuteBars(raw []tabular.MinuteBar, multiplier float64) []smtBar {
	bars := make([]smtBar, len(raw))
	vwap := make([]float64, len(raw))
	for i, b := range raw {
		cls := round2(b.Close)
		pre := round2(b.PreClose)
		vwap[i] = b.Amount / b.Volume / multiplier * e.cfg.Factors.AmountScale

		ret := cls/pre - 1
		if math.IsInf(ret, 1) {
			ret = 0
		}
		smartIdx := 0.0
		if b.Volume > 1 {
			smartIdx = math.Abs(ret) / math.Log(b.Volume) * 1e4
		}
		bars[i] = smtBar{
			tradeDate: b.TradeDate,
			volume:    b.Volume,
			amount:    b.Amount,
			ret:       ret,
			smartIdx:  smartIdx,
		}
	}
	vwap = frame.FFillSeries(vwap)
	for i := range bars {
		bars[i].vwap = vwap[i]
	}
	return bars
}

// barsBetween slices the date-ordered bars to trade_date in
// [bgn, end], both inclusive.
func barsBetween(bars []smtBar, bgn, end string) []smtBar {
	lo := sort.Search(len(bars), func(i int) bool { return bars[i].tradeDate >= bgn })
	hi := sort.Search(len(bars), func(i int) bool { return bars[i].tradeDate > end })
	return bars[lo:hi]
}

// calSmart scores one trailing window. The bars are ranked by smart
// index descending; the head holding under a lbd share of the window's
// volume, plus one bar, is the smart set. Both aggregates are
// amount-weighted and missing values propagate. A smart set with no
// traded amount reports (0, 0) and ok=false.
func calSmart(bars []smtBar, lbd float64) (smartP, smartR float64, ok bool) {
	var totAmount, totVolume float64
	var vwapDotAmt, retDotAmt float64
	for _, b := range bars {
		totAmount += b.amount
		totVolume += b.volume
		vwapDotAmt += b.vwap * b.amount
		retDotAmt += b.ret * b.amount
	}
	totVWAP := vwapDotAmt / totAmount
	totRet := retDotAmt / totAmount

	sorted := make([]smtBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(a, b int) bool {
		x, y := sorted[a].smartIdx, sorted[b].smartIdx
		if math.IsNaN(y) {
			return !math.IsNaN(x)
		}
		if math.IsNaN(x) {
			return false
		}
		return x > y
	})

	threshold := totVolume * lbd
	n, cum := 1, 0.0
	for _, b := range sorted {
		cum += b.volume
		if cum < threshold {
			n++
		}
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	smart := sorted[:n]

	var smartAmt float64
	for _, b := range smart {
		smartAmt += b.amount
	}
	if !(smartAmt > 0) {
		return 0, 0, false
	}
	var smartVWAP, smartRet float64
	for _, b := range smart {
		w := b.amount / smartAmt
		smartVWAP += b.vwap * w
		smartRet += b.ret * w
	}
	smartP = smartVWAP/totVWAP - 1
	smartR = smartRet - totRet
	return -smartP, -smartR, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
