// Package calendar provides trading-day lookups for the pipeline.
// Dates are YYYYMMDD strings and every range is half-open [bgn, stp).
package calendar

import (
	"fmt"
	"sort"

	"factorlab/internal/errors"
)

// Calendar holds the ordered list of trading dates.
type Calendar struct {
	dates []string
	index map[string]int
}

// New creates a calendar from a list of trading dates. Duplicates are
// dropped; the input need not be sorted.
func New(dates []string) (*Calendar, error) {
	if len(dates) == 0 {
		return nil, errors.New(errors.ErrCodeCalendarRange, "empty trading calendar")
	}
	uniq := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if len(d) != 8 {
			return nil, errors.New(errors.ErrCodeCalendarRange,
				fmt.Sprintf("malformed trade date %q", d))
		}
		uniq[d] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for d := range uniq {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	index := make(map[string]int, len(sorted))
	for i, d := range sorted {
		index[d] = i
	}
	return &Calendar{dates: sorted, index: index}, nil
}

// DatesIn returns all trading dates in [bgn, stp).
func (c *Calendar) DatesIn(bgn, stp string) []string {
	lo := sort.SearchStrings(c.dates, bgn)
	hi := sort.SearchStrings(c.dates, stp)
	out := make([]string, hi-lo)
	copy(out, c.dates[lo:hi])
	return out
}

// Has reports whether date is a trading date.
func (c *Calendar) Has(date string) bool {
	_, ok := c.index[date]
	return ok
}

// Shift returns the trading date n sessions after date (n may be
// negative). date itself must be a trading date.
func (c *Calendar) Shift(date string, n int) (string, error) {
	i, ok := c.index[date]
	if !ok {
		return "", errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("%s is not a trading date", date))
	}
	j := i + n
	if j < 0 || j >= len(c.dates) {
		return "", errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("shift %d from %s leaves the calendar", n, date))
	}
	return c.dates[j], nil
}

// First returns the earliest trading date.
func (c *Calendar) First() string { return c.dates[0] }

// Last returns the latest trading date.
func (c *Calendar) Last() string { return c.dates[len(c.dates)-1] }

// MonthsIn returns the distinct YYYYMM months that contain at least
// one trading date in [bgn, stp), in ascending order.
func (c *Calendar) MonthsIn(bgn, stp string) []string {
	var months []string
	last := ""
	for _, d := range c.DatesIn(bgn, stp) {
		m := d[:6]
		if m != last {
			months = append(months, m)
			last = m
		}
	}
	return months
}

// TrailingMonthWindow returns the first and last trading dates of the
// k-month window ending at endMonth (inclusive). Used by the
// dynamic-weight trainer to assemble its training sample.
func (c *Calendar) TrailingMonthWindow(endMonth string, k int) (string, string, error) {
	if len(endMonth) != 6 || k <= 0 {
		return "", "", errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("bad trailing window spec month=%q k=%d", endMonth, k))
	}
	bgnMonth, err := shiftMonth(endMonth, -(k - 1))
	if err != nil {
		return "", "", err
	}

	var first, last string
	for _, d := range c.dates {
		m := d[:6]
		if m < bgnMonth || m > endMonth {
			continue
		}
		if first == "" {
			first = d
		}
		last = d
	}
	if first == "" {
		return "", "", errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("no trading dates in window %s..%s", bgnMonth, endMonth))
	}
	return first, last, nil
}

// MonthEndDate returns the last trading date of a YYYYMM month.
func (c *Calendar) MonthEndDate(month string) (string, error) {
	last := ""
	for _, d := range c.dates {
		if d[:6] == month {
			last = d
		}
	}
	if last == "" {
		return "", errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("month %s has no trading dates", month))
	}
	return last, nil
}

func shiftMonth(month string, n int) (string, error) {
	var y, m int
	if _, err := fmt.Sscanf(month, "%4d%2d", &y, &m); err != nil {
		return "", errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("malformed month %q", month))
	}
	total := y*12 + (m - 1) + n
	if total < 0 {
		return "", errors.New(errors.ErrCodeCalendarRange,
			fmt.Sprintf("month shift %d from %s underflows", n, month))
	}
	return fmt.Sprintf("%04d%02d", total/12, total%12+1), nil
}
