package factors

import (
	"context"
	"fmt"
	"math"
	"sort"

	"factorlab/internal/config"
	"factorlab/internal/errors"
	"factorlab/internal/frame"
	"factorlab/internal/stats"
	"factorlab/internal/tabular"
)

// The CX family measures the crowding of a trailing window: the
// negated Spearman correlation, over the top-volume sessions of the
// window, between an activity column and a price column.
//
//	CSP/CSR — sigma    = high/low - 1
//	CTP/CTR — turnover = volume/oi
//	CVP/CVR — volume
//
// *P correlates against the instrument price index, *R against the
// major return.

// RunCX computes one (family, window, topProp) exposure.
func (e *Engine) RunCX(ctx context.Context, family string, window int, topProp float64, mode, bgn, stp string) error {
	label := config.CxLabel(family, window, topProp)
	topSize := int(float64(window)*topProp) + 1

	type colPick func(tabular.MajorBar) float64
	var pickX, pickY colPick
	switch family {
	case "CSP", "CSR":
		pickX = func(b tabular.MajorBar) float64 { return b.High/b.Low - 1 }
	case "CTP", "CTR":
		pickX = func(b tabular.MajorBar) float64 { return b.Volume / b.OI }
	case "CVP", "CVR":
		pickX = func(b tabular.MajorBar) float64 { return b.Volume }
	default:
		return errors.New(errors.ErrCodeDataIntegrity,
			fmt.Sprintf("unknown cx family %q", family))
	}
	switch family[2] {
	case 'P':
		pickY = func(b tabular.MajorBar) float64 { return b.InstruIdx }
	default:
		pickY = func(b tabular.MajorBar) float64 { return b.MajorReturn }
	}

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
		for i, b := range bars {
			if b.TradeDate < bgn || b.TradeDate >= stp {
				continue
			}
			v := math.NaN()
			if i >= window-1 {
				v = -topVolumeSpearman(bars[i-window+1:i+1], topSize, pickX, pickY)
			}
			records = append(records, frame.Record{
				TradeDate:  b.TradeDate,
				Instrument: instrument,
				Value:      v,
			})
		}
	}
	return e.persist(ctx, label, mode, bgn, stp, records)
}

// topVolumeSpearman ranks the window's sessions by volume descending,
// keeps the busiest topSize of them, and correlates x against y.
func topVolumeSpearman(window []tabular.MajorBar, topSize int, pickX, pickY func(tabular.MajorBar) float64) float64 {
	idx := make([]int, len(window))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := window[idx[a]].Volume, window[idx[b]].Volume
		if math.IsNaN(vb) {
			return !math.IsNaN(va)
		}
		if math.IsNaN(va) {
			return false
		}
		return va > vb
	})
	if topSize > len(idx) {
		topSize = len(idx)
	}
	xs := make([]float64, topSize)
	ys := make([]float64, topSize)
	for i := 0; i < topSize; i++ {
		xs[i] = pickX(window[idx[i]])
		ys[i] = pickY(window[idx[i]])
	}
	return stats.Spearman(xs, ys)
}
