// Package frame implements a NaN-aware matrix keyed by trade date and
// instrument. It is the working representation for exposures, test
// returns and signal weights: rows are dates, columns are instruments,
// and missing observations are math.NaN().
package frame

import (
	"fmt"
	"math"
	"sort"

	"factorlab/internal/errors"
)

// Record 长表中的一个观测值
type Record struct {
	TradeDate  string
	Instrument string
	Value      float64
}

// Matrix is a dense date-by-instrument table. Dates ascend, columns are
// sorted, and every cell defaults to NaN.
type Matrix struct {
	Dates []string
	Cols  []string
	Data  [][]float64 // Data[i][j] is Dates[i] x Cols[j]

	dateIdx map[string]int
	colIdx  map[string]int
}

// NewMatrix allocates a NaN-filled matrix over the given axes.
func NewMatrix(dates, cols []string) *Matrix {
	m := &Matrix{
		Dates:   append([]string(nil), dates...),
		Cols:    append([]string(nil), cols...),
		dateIdx: make(map[string]int, len(dates)),
		colIdx:  make(map[string]int, len(cols)),
	}
	m.Data = make([][]float64, len(dates))
	for i := range m.Data {
		row := make([]float64, len(cols))
		for j := range row {
			row[j] = math.NaN()
		}
		m.Data[i] = row
	}
	for i, d := range m.Dates {
		m.dateIdx[d] = i
	}
	for j, c := range m.Cols {
		m.colIdx[c] = j
	}
	return m
}

// Pivot builds a matrix from long-form records. The date axis is the
// sorted union of record dates unless dates is non-nil, in which case
// it fixes the axis and records outside it are dropped. The column
// axis is always the sorted union of instruments.
func Pivot(records []Record, dates []string) *Matrix {
	colSet := make(map[string]struct{})
	for _, r := range records {
		colSet[r.Instrument] = struct{}{}
	}
	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	if dates == nil {
		dateSet := make(map[string]struct{})
		for _, r := range records {
			dateSet[r.TradeDate] = struct{}{}
		}
		dates = make([]string, 0, len(dateSet))
		for d := range dateSet {
			dates = append(dates, d)
		}
		sort.Strings(dates)
	}

	m := NewMatrix(dates, cols)
	for _, r := range records {
		i, ok := m.dateIdx[r.TradeDate]
		if !ok {
			continue
		}
		m.Data[i][m.colIdx[r.Instrument]] = r.Value
	}
	return m
}

// At returns the cell for (date, col); NaN when either axis misses.
func (m *Matrix) At(date, col string) float64 {
	i, ok := m.dateIdx[date]
	if !ok {
		return math.NaN()
	}
	j, ok := m.colIdx[col]
	if !ok {
		return math.NaN()
	}
	return m.Data[i][j]
}

// Set writes a cell; it is an error to address a missing axis entry.
func (m *Matrix) Set(date, col string, v float64) error {
	i, ok := m.dateIdx[date]
	if !ok {
		return errors.New(errors.ErrCodeUnknownLabel, fmt.Sprintf("date %s not on axis", date))
	}
	j, ok := m.colIdx[col]
	if !ok {
		return errors.New(errors.ErrCodeUnknownLabel, fmt.Sprintf("column %s not on axis", col))
	}
	m.Data[i][j] = v
	return nil
}

// Row returns the values for a date in column order, or nil.
func (m *Matrix) Row(date string) []float64 {
	i, ok := m.dateIdx[date]
	if !ok {
		return nil
	}
	return m.Data[i]
}

// Col returns the series for an instrument in date order, or nil.
func (m *Matrix) Col(col string) []float64 {
	j, ok := m.colIdx[col]
	if !ok {
		return nil
	}
	out := make([]float64, len(m.Dates))
	for i := range m.Dates {
		out[i] = m.Data[i][j]
	}
	return out
}

// HasDate reports whether date is on the row axis.
func (m *Matrix) HasDate(date string) bool {
	_, ok := m.dateIdx[date]
	return ok
}

// Clone deep-copies the matrix.
func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.Dates, m.Cols)
	for i := range m.Data {
		copy(out.Data[i], m.Data[i])
	}
	return out
}

// Apply replaces every cell with fn(cell) in place and returns m.
func (m *Matrix) Apply(fn func(float64) float64) *Matrix {
	for i := range m.Data {
		for j := range m.Data[i] {
			m.Data[i][j] = fn(m.Data[i][j])
		}
	}
	return m
}

// Shift moves every column down by n rows (up for negative n), filling
// the vacated rows with NaN. Matches a per-column series shift.
func (m *Matrix) Shift(n int) *Matrix {
	out := NewMatrix(m.Dates, m.Cols)
	for i := range m.Data {
		src := i - n
		if src < 0 || src >= len(m.Data) {
			continue
		}
		copy(out.Data[i], m.Data[src])
	}
	return out
}

// RollingMean computes a trailing mean per column. A cell is NaN
// unless all window observations ending at it are present.
func (m *Matrix) RollingMean(window int) *Matrix {
	return m.rolling(window, func(vals []float64) float64 {
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	})
}

// RollingStd computes a trailing sample standard deviation (N-1
// denominator) per column, with the same NaN rule as RollingMean.
func (m *Matrix) RollingStd(window int) *Matrix {
	return m.rolling(window, func(vals []float64) float64 {
		if len(vals) < 2 {
			return math.NaN()
		}
		mean := 0.0
		for _, v := range vals {
			mean += v
		}
		mean /= float64(len(vals))
		ss := 0.0
		for _, v := range vals {
			d := v - mean
			ss += d * d
		}
		return math.Sqrt(ss / float64(len(vals)-1))
	})
}

// RollingSum computes a trailing sum per column with the full-window
// NaN rule.
func (m *Matrix) RollingSum(window int) *Matrix {
	return m.rolling(window, func(vals []float64) float64 {
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		return sum
	})
}

func (m *Matrix) rolling(window int, agg func([]float64) float64) *Matrix {
	out := NewMatrix(m.Dates, m.Cols)
	if window <= 0 {
		return out
	}
	buf := make([]float64, 0, window)
	for j := range m.Cols {
		for i := range m.Dates {
			if i+1 < window {
				continue
			}
			buf = buf[:0]
			ok := true
			for k := i + 1 - window; k <= i; k++ {
				v := m.Data[k][j]
				if math.IsNaN(v) {
					ok = false
					break
				}
				buf = append(buf, v)
			}
			if ok {
				out.Data[i][j] = agg(buf)
			}
		}
	}
	return out
}

// AbsNormalizeRows scales every row so the absolute values sum to one.
// NaN cells become zero; a row whose absolute sum is zero stays all
// zeros. Applied in place.
func (m *Matrix) AbsNormalizeRows() *Matrix {
	for i := range m.Data {
		sum := 0.0
		for _, v := range m.Data[i] {
			if !math.IsNaN(v) {
				sum += math.Abs(v)
			}
		}
		for j, v := range m.Data[i] {
			switch {
			case math.IsNaN(v):
				m.Data[i][j] = 0
			case sum > 0:
				m.Data[i][j] = v / sum
			default:
				m.Data[i][j] = 0
			}
		}
	}
	return m
}

// FillNaN replaces NaN cells with v in place.
func (m *Matrix) FillNaN(v float64) *Matrix {
	for i := range m.Data {
		for j := range m.Data[i] {
			if math.IsNaN(m.Data[i][j]) {
				m.Data[i][j] = v
			}
		}
	}
	return m
}

// FFill propagates the last valid observation forward down each column.
func (m *Matrix) FFill() *Matrix {
	for j := range m.Cols {
		last := math.NaN()
		for i := range m.Dates {
			if math.IsNaN(m.Data[i][j]) {
				m.Data[i][j] = last
			} else {
				last = m.Data[i][j]
			}
		}
	}
	return m
}

// BFill propagates the next valid observation backward up each column.
func (m *Matrix) BFill() *Matrix {
	for j := range m.Cols {
		next := math.NaN()
		for i := len(m.Dates) - 1; i >= 0; i-- {
			if math.IsNaN(m.Data[i][j]) {
				m.Data[i][j] = next
			} else {
				next = m.Data[i][j]
			}
		}
	}
	return m
}

// FilterDates keeps only rows in [bgn, stp).
func (m *Matrix) FilterDates(bgn, stp string) *Matrix {
	var dates []string
	var rows [][]float64
	for i, d := range m.Dates {
		if d >= bgn && d < stp {
			dates = append(dates, d)
			rows = append(rows, m.Data[i])
		}
	}
	out := NewMatrix(dates, m.Cols)
	for i := range rows {
		copy(out.Data[i], rows[i])
	}
	return out
}

// Reindex projects the matrix onto a new date axis. Dates absent from
// m come out as NaN rows.
func (m *Matrix) Reindex(dates []string) *Matrix {
	out := NewMatrix(dates, m.Cols)
	for i, d := range dates {
		if src, ok := m.dateIdx[d]; ok {
			copy(out.Data[i], m.Data[src])
		}
	}
	return out
}

// AlignCols projects the matrix onto a new column axis, NaN where m
// has no such instrument.
func (m *Matrix) AlignCols(cols []string) *Matrix {
	out := NewMatrix(m.Dates, cols)
	for j, c := range cols {
		src, ok := m.colIdx[c]
		if !ok {
			continue
		}
		for i := range m.Dates {
			out.Data[i][j] = m.Data[i][src]
		}
	}
	return out
}

// Stack flattens the matrix back to long form, skipping NaN cells.
func (m *Matrix) Stack() []Record {
	var out []Record
	for i, d := range m.Dates {
		for j, c := range m.Cols {
			v := m.Data[i][j]
			if math.IsNaN(v) {
				continue
			}
			out = append(out, Record{TradeDate: d, Instrument: c, Value: v})
		}
	}
	return out
}

// StackAll flattens including NaN cells, for stages that persist the
// sentinel.
func (m *Matrix) StackAll() []Record {
	out := make([]Record, 0, len(m.Dates)*len(m.Cols))
	for i, d := range m.Dates {
		for j, c := range m.Cols {
			out = append(out, Record{TradeDate: d, Instrument: c, Value: m.Data[i][j]})
		}
	}
	return out
}
