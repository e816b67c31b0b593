package tabular

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertQueryUpdatesNonKeyColumns(t *testing.T) {
	q := upsertQuery("equity_index",
		[]string{"trade_date", "index_code", "close", "pre_close"},
		[]string{"trade_date", "index_code"})
	assert.Equal(t,
		"INSERT INTO equity_index (trade_date, index_code, close, pre_close) "+
			"VALUES ($1, $2, $3, $4) ON CONFLICT (trade_date, index_code) "+
			"DO UPDATE SET close = EXCLUDED.close, pre_close = EXCLUDED.pre_close",
		q)
}

func TestUpsertQueryAllKeyColumns(t *testing.T) {
	q := upsertQuery("trading_calendar", []string{"trade_date"}, []string{"trade_date"})
	assert.Equal(t,
		"INSERT INTO trading_calendar (trade_date) VALUES ($1) ON CONFLICT (trade_date) DO NOTHING",
		q)
}

func TestIngestRejectsUnknownTable(t *testing.T) {
	s := NewStore(nil, nil)
	_, err := s.IngestCSV(context.Background(), "factor_amt063", "nope.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a loadable input table")
}
