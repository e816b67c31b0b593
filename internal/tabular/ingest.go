package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"factorlab/internal/errors"
)

// inputTables lists the static market-data tables the loader may fill
// and their primary key columns. Result tables are never loaded from
// files; the pipeline computes them.
var inputTables = map[string][]string{
	"trading_calendar": {"trade_date"},
	"major_return":     {"trade_date", "instrument"},
	"equity_index":     {"trade_date", "index_code"},
	"em01_major":       {"trade_date", "ts", "loc_id"},
	"hld_pos":          {"trade_date", "instrument", "institute"},
	"dlt_pos":          {"trade_date", "instrument", "institute"},
}

// IngestCSV upserts a CSV file into one of the static input tables.
// The header row names the columns; empty cells become NULL. Returns
// the number of rows written.
func (s *Store) IngestCSV(ctx context.Context, table, path string) (int, error) {
	pk, ok := inputTables[table]
	if !ok {
		return 0, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%q is not a loadable input table", table))
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput,
			fmt.Sprintf("read header of %s", path), err)
	}
	for _, col := range pk {
		if !contains(header, col) {
			return 0, errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("%s is missing key column %q", path, col))
		}
	}

	q := upsertQuery(table, header, pk)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreConnection, "begin ingest tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreQuery, "prepare ingest", err)
	}
	defer stmt.Close()

	n := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeInvalidInput,
				fmt.Sprintf("read %s row %d", path, n+2), err)
		}
		args := make([]interface{}, len(header))
		for i := range header {
			if i < len(rec) && rec[i] != "" {
				args[i] = rec[i]
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, errors.Wrap(errors.ErrCodeStoreQuery,
				fmt.Sprintf("insert %s row %d", table, n+2), err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreQuery, "commit ingest", err)
	}
	return n, nil
}

func upsertQuery(table string, cols, pk []string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	var sets []string
	for _, c := range cols {
		if !contains(pk, c) {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		table, strings.Join(cols, ", "), strings.Join(ph, ", "), strings.Join(pk, ", "))
	if len(sets) == 0 {
		return q + " DO NOTHING"
	}
	return q + " DO UPDATE SET " + strings.Join(sets, ", ")
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
