package tabular

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"factorlab/internal/errors"
)

// Typed readers for the static market-data schema. These tables are
// inputs only; the pipeline never writes them.

// MajorBar 主力合约日线
type MajorBar struct {
	TradeDate   string
	Instrument  string
	NContract   string
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	Amount      float64
	OI          float64
	MajorReturn float64
	InstruIdx   float64
}

// IndexBar 股指日线
type IndexBar struct {
	TradeDate string
	Close     float64
	PreClose  float64
}

// MinuteBar 主力合约分钟线
type MinuteBar struct {
	TradeDate string
	TS        int
	LocID     string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	PreClose  float64
	Volume    float64
	Amount    float64
	OI        float64
}

// PositionRow 席位持仓 (多头 lng / 空头 srt)
type PositionRow struct {
	TradeDate  string
	Instrument string
	Institute  string
	Lng        float64
	Srt        float64
}

func nf(v sql.NullFloat64) float64 {
	if v.Valid {
		return v.Float64
	}
	return math.NaN()
}

// ReadMajorBars reads the major-contract daily bars of one instrument
// over [bgn, stp), date ascending.
func (s *Store) ReadMajorBars(ctx context.Context, instrument, bgn, stp string) ([]MajorBar, error) {
	const q = `SELECT trade_date, instrument, n_contract,
		open, high, low, close, volume, amount, oi, major_return, instru_idx
		FROM major_return
		WHERE instrument = $1 AND trade_date >= $2 AND trade_date < $3
		ORDER BY trade_date`
	rows, err := s.db.QueryContext(ctx, q, instrument, bgn, stp)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "read major bars", err)
	}
	defer rows.Close()

	var out []MajorBar
	for rows.Next() {
		var b MajorBar
		var o, h, l, c, v, a, oi, r, ix sql.NullFloat64
		if err := rows.Scan(&b.TradeDate, &b.Instrument, &b.NContract,
			&o, &h, &l, &c, &v, &a, &oi, &r, &ix); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan major bar", err)
		}
		b.Open, b.High, b.Low, b.Close = nf(o), nf(h), nf(l), nf(c)
		b.Volume, b.Amount, b.OI, b.MajorReturn = nf(v), nf(a), nf(oi), nf(r)
		b.InstruIdx = nf(ix)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReadMajorBarsAt reads the bars of every universe instrument on one
// session.
func (s *Store) ReadMajorBarsAt(ctx context.Context, tradeDate string) ([]MajorBar, error) {
	const q = `SELECT trade_date, instrument, n_contract,
		open, high, low, close, volume, amount, oi, major_return, instru_idx
		FROM major_return WHERE trade_date = $1 ORDER BY instrument`
	rows, err := s.db.QueryContext(ctx, q, tradeDate)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "read major bars at date", err)
	}
	defer rows.Close()

	var out []MajorBar
	for rows.Next() {
		var b MajorBar
		var o, h, l, c, v, a, oi, r, ix sql.NullFloat64
		if err := rows.Scan(&b.TradeDate, &b.Instrument, &b.NContract,
			&o, &h, &l, &c, &v, &a, &oi, &r, &ix); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan major bar", err)
		}
		b.Open, b.High, b.Low, b.Close = nf(o), nf(h), nf(l), nf(c)
		b.Volume, b.Amount, b.OI, b.MajorReturn = nf(v), nf(a), nf(oi), nf(r)
		b.InstruIdx = nf(ix)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReadEquityIndex reads the market index bars over [bgn, stp).
func (s *Store) ReadEquityIndex(ctx context.Context, indexCode, bgn, stp string) ([]IndexBar, error) {
	const q = `SELECT trade_date, close, pre_close FROM equity_index
		WHERE index_code = $1 AND trade_date >= $2 AND trade_date < $3
		ORDER BY trade_date`
	rows, err := s.db.QueryContext(ctx, q, indexCode, bgn, stp)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "read equity index", err)
	}
	defer rows.Close()

	var out []IndexBar
	for rows.Next() {
		var b IndexBar
		var c, p sql.NullFloat64
		if err := rows.Scan(&b.TradeDate, &c, &p); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan index bar", err)
		}
		b.Close, b.PreClose = nf(c), nf(p)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReadMinuteBars reads the major-contract minute bars of one
// instrument on one session, timestamp ascending. An empty result is
// legal; callers decide whether that is fatal.
func (s *Store) ReadMinuteBars(ctx context.Context, instrument, tradeDate string) ([]MinuteBar, error) {
	const q = `SELECT trade_date, ts, loc_id,
		open, high, low, close, preclose, volume, amount, oi
		FROM em01_major
		WHERE instrument = $1 AND trade_date = $2
		ORDER BY ts`
	rows, err := s.db.QueryContext(ctx, q, instrument, tradeDate)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery,
			fmt.Sprintf("read minute bars %s@%s", instrument, tradeDate), err)
	}
	defer rows.Close()

	var out []MinuteBar
	for rows.Next() {
		var b MinuteBar
		var o, h, l, c, pc, v, a, oi sql.NullFloat64
		if err := rows.Scan(&b.TradeDate, &b.TS, &b.LocID,
			&o, &h, &l, &c, &pc, &v, &a, &oi); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan minute bar", err)
		}
		b.Open, b.High, b.Low, b.Close, b.PreClose = nf(o), nf(h), nf(l), nf(c), nf(pc)
		b.Volume, b.Amount, b.OI = nf(v), nf(a), nf(oi)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReadMinuteBarsRange reads every minute bar of one instrument over
// [bgn, stp), ordered by session then timestamp.
func (s *Store) ReadMinuteBarsRange(ctx context.Context, instrument, bgn, stp string) ([]MinuteBar, error) {
	const q = `SELECT trade_date, ts, loc_id,
		open, high, low, close, preclose, volume, amount, oi
		FROM em01_major
		WHERE instrument = $1 AND trade_date >= $2 AND trade_date < $3
		ORDER BY trade_date, ts`
	rows, err := s.db.QueryContext(ctx, q, instrument, bgn, stp)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery,
			fmt.Sprintf("read minute bars %s in [%s, %s)", instrument, bgn, stp), err)
	}
	defer rows.Close()

	var out []MinuteBar
	for rows.Next() {
		var b MinuteBar
		var o, h, l, c, pc, v, a, oi sql.NullFloat64
		if err := rows.Scan(&b.TradeDate, &b.TS, &b.LocID,
			&o, &h, &l, &c, &pc, &v, &a, &oi); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan minute bar", err)
		}
		b.Open, b.High, b.Low, b.Close, b.PreClose = nf(o), nf(h), nf(l), nf(c), nf(pc)
		b.Volume, b.Amount, b.OI = nf(v), nf(a), nf(oi)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReadMinuteBarsByContract reads the minute bars of one contract
// (loc_id, e.g. "IC2305.CFE") on one session, timestamp ascending.
func (s *Store) ReadMinuteBarsByContract(ctx context.Context, locID, tradeDate string) ([]MinuteBar, error) {
	const q = `SELECT trade_date, ts, loc_id,
		open, high, low, close, preclose, volume, amount, oi
		FROM em01_major
		WHERE loc_id = $1 AND trade_date = $2
		ORDER BY ts`
	rows, err := s.db.QueryContext(ctx, q, locID, tradeDate)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery,
			fmt.Sprintf("read minute bars %s@%s", locID, tradeDate), err)
	}
	defer rows.Close()

	var out []MinuteBar
	for rows.Next() {
		var b MinuteBar
		var o, h, l, c, pc, v, a, oi sql.NullFloat64
		if err := rows.Scan(&b.TradeDate, &b.TS, &b.LocID,
			&o, &h, &l, &c, &pc, &v, &a, &oi); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan minute bar", err)
		}
		b.Open, b.High, b.Low, b.Close, b.PreClose = nf(o), nf(h), nf(l), nf(c), nf(pc)
		b.Volume, b.Amount, b.OI = nf(v), nf(a), nf(oi)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReadPositions reads hold (kind="hld") or delta (kind="dlt") broker
// positions of one instrument over [bgn, stp).
func (s *Store) ReadPositions(ctx context.Context, kind, instrument, bgn, stp string) ([]PositionRow, error) {
	var table string
	switch kind {
	case "hld":
		table = "hld_pos"
	case "dlt":
		table = "dlt_pos"
	default:
		return nil, errors.New(errors.ErrCodeStoreQuery,
			fmt.Sprintf("unknown position kind %q", kind))
	}
	q := fmt.Sprintf(`SELECT trade_date, instrument, institute, lng, srt
		FROM %s
		WHERE instrument = $1 AND trade_date >= $2 AND trade_date < $3
		ORDER BY trade_date, institute`, table)
	rows, err := s.db.QueryContext(ctx, q, instrument, bgn, stp)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "read positions", err)
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var p PositionRow
		var lng, srt sql.NullFloat64
		if err := rows.Scan(&p.TradeDate, &p.Instrument, &p.Institute, &lng, &srt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan position row", err)
		}
		p.Lng, p.Srt = nf(lng), nf(srt)
		out = append(out, p)
	}
	return out, rows.Err()
}
