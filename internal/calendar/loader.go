package calendar

import (
	"context"
	"time"

	"factorlab/internal/cache"
	"factorlab/internal/database"
	"factorlab/internal/errors"
)

const cacheKey = "factorlab:trading_calendar"

// Load reads the trading calendar from the store, consulting the cache
// first. 缓存未命中时从数据库加载并回填缓存.
func Load(ctx context.Context, db *database.DB, c cache.Cache) (*Calendar, error) {
	var dates []string
	if c != nil {
		if err := c.Get(ctx, cacheKey, &dates); err == nil && len(dates) > 0 {
			return New(dates)
		}
	}

	rows, err := db.QueryContext(ctx,
		"SELECT trade_date FROM trading_calendar ORDER BY trade_date")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "load trading calendar", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "scan trade date", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "iterate trading calendar", err)
	}

	if c != nil && len(dates) > 0 {
		// 日历当天不变, 缓存 12 小时足够
		_ = c.Set(ctx, cacheKey, dates, 12*time.Hour)
	}
	return New(dates)
}
