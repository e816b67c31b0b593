package tabular

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"factorlab/internal/database"
	"factorlab/internal/errors"
	"factorlab/internal/frame"
)

// Store executes the registry's table operations against postgres.
// Result tables are created lazily the first time a unit initializes
// them, which keeps migrations to the static market-data schema.
type Store struct {
	db  *database.DB
	reg *Registry
}

// NewStore 创建结果表存储
func NewStore(db *database.DB, reg *Registry) *Store {
	return &Store{db: db, reg: reg}
}

// Registry exposes the label registry backing this store.
func (s *Store) Registry() *Registry { return s.reg }

// HealthCheck pings the underlying database.
func (s *Store) HealthCheck(ctx context.Context) error { return s.db.HealthCheck(ctx) }

// InitTable creates the label's table if absent. With truncate set the
// existing contents are dropped first (overwrite mode).
func (s *Store) InitTable(ctx context.Context, label string, truncate bool) error {
	spec, err := s.reg.Lookup(label)
	if err != nil {
		return err
	}

	var cols []string
	for _, k := range spec.KeyCols {
		cols = append(cols, fmt.Sprintf("%s VARCHAR(32) NOT NULL", k))
	}
	for _, v := range spec.ValueCols {
		cols = append(cols, fmt.Sprintf("%s DOUBLE PRECISION", v))
	}
	cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(spec.KeyCols, ", ")))

	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", spec.Name, strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery,
			fmt.Sprintf("create table %s", spec.Name), err)
	}
	if truncate {
		if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE "+spec.Name); err != nil {
			return errors.Wrap(errors.ErrCodeStoreQuery,
				fmt.Sprintf("truncate table %s", spec.Name), err)
		}
	}
	return nil
}

// DeleteRange removes all rows with trade_date in [bgn, stp). Append
// mode calls this before inserting so reruns stay idempotent.
func (s *Store) DeleteRange(ctx context.Context, label, bgn, stp string) error {
	spec, err := s.reg.Lookup(label)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE trade_date >= $1 AND trade_date < $2", spec.Name)
	if _, err := s.db.ExecContext(ctx, q, bgn, stp); err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery,
			fmt.Sprintf("delete range from %s", spec.Name), err)
	}
	return nil
}

// Upsert writes rows with ON CONFLICT key update. Rows must align with
// the table spec's key and value columns.
func (s *Store) Upsert(ctx context.Context, label string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	spec, err := s.reg.Lookup(label)
	if err != nil {
		return err
	}

	nk, nv := len(spec.KeyCols), len(spec.ValueCols)
	allCols := append(append([]string{}, spec.KeyCols...), spec.ValueCols...)
	ph := make([]string, nk+nv)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	var sets []string
	for _, v := range spec.ValueCols {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", v, v))
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		spec.Name,
		strings.Join(allCols, ", "),
		strings.Join(ph, ", "),
		strings.Join(spec.KeyCols, ", "),
		strings.Join(sets, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, "begin upsert tx", err)
	}
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(errors.ErrCodeStoreQuery,
			fmt.Sprintf("prepare upsert into %s", spec.Name), err)
	}
	defer stmt.Close()

	args := make([]interface{}, nk+nv)
	for _, r := range rows {
		if len(r.Keys) != nk || len(r.Values) != nv {
			tx.Rollback()
			return errors.New(errors.ErrCodeStoreQuery,
				fmt.Sprintf("row shape mismatch for %s: want %d keys %d values, got %d/%d",
					spec.Name, nk, nv, len(r.Keys), len(r.Values)))
		}
		for i, k := range r.Keys {
			args[i] = k
		}
		for i, v := range r.Values {
			// NULL 代替 NaN, 读取时还原
			if math.IsNaN(v) {
				args[nk+i] = nil
			} else {
				args[nk+i] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.ErrCodeStoreQuery,
				fmt.Sprintf("upsert into %s", spec.Name), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, "commit upsert tx", err)
	}
	return nil
}

// PersistRows writes a stage's output rows under the run-mode
// contract: overwrite truncates the table, append deletes [bgn, stp)
// first so reruns of the same range are idempotent.
func (s *Store) PersistRows(ctx context.Context, label, mode, bgn, stp string, rows []Row) error {
	overwrite := mode == "overwrite"
	if err := s.InitTable(ctx, label, overwrite); err != nil {
		return err
	}
	if !overwrite {
		if err := s.DeleteRange(ctx, label, bgn, stp); err != nil {
			return err
		}
	}
	return s.Upsert(ctx, label, rows)
}

// PersistRecords is PersistRows for (date, instrument, value) tables.
func (s *Store) PersistRecords(ctx context.Context, label, mode, bgn, stp string, records []frame.Record) error {
	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row{
			Keys:   []string{r.TradeDate, r.Instrument},
			Values: []float64{r.Value},
		}
	}
	return s.PersistRows(ctx, label, mode, bgn, stp, rows)
}

// ReadFrame reads a (date, instrument, value) table over [bgn, stp)
// into long-form records.
func (s *Store) ReadFrame(ctx context.Context, label, bgn, stp string) ([]frame.Record, error) {
	rows, err := s.ReadRange(ctx, label, bgn, stp)
	if err != nil {
		return nil, err
	}
	out := make([]frame.Record, len(rows))
	for i, r := range rows {
		if len(r.Keys) != 2 || len(r.Values) != 1 {
			return nil, errors.New(errors.ErrCodeStoreQuery,
				fmt.Sprintf("label %s is not a (date, instrument, value) table", label))
		}
		out[i] = frame.Record{TradeDate: r.Keys[0], Instrument: r.Keys[1], Value: r.Values[0]}
	}
	return out, nil
}

// Cond is a simple column comparison for ReadConditions.
type Cond struct {
	Col string
	Op  string // one of =, <, <=, >, >=
	Val string
}

// ReadRange reads all rows with trade_date in [bgn, stp), ordered by
// the key columns.
func (s *Store) ReadRange(ctx context.Context, label, bgn, stp string) ([]Row, error) {
	return s.ReadConditions(ctx, label, []Cond{
		{Col: "trade_date", Op: ">=", Val: bgn},
		{Col: "trade_date", Op: "<", Val: stp},
	})
}

var allowedOps = map[string]bool{"=": true, "<": true, "<=": true, ">": true, ">=": true}

// ReadConditions reads rows matching every condition, ordered by the
// key columns.
func (s *Store) ReadConditions(ctx context.Context, label string, conds []Cond) ([]Row, error) {
	spec, err := s.reg.Lookup(label)
	if err != nil {
		return nil, err
	}

	var where []string
	var args []interface{}
	for i, c := range conds {
		if !allowedOps[c.Op] {
			return nil, errors.New(errors.ErrCodeStoreQuery,
				fmt.Sprintf("unsupported condition operator %q", c.Op))
		}
		keyed := false
		for _, k := range spec.KeyCols {
			if k == c.Col {
				keyed = true
			}
		}
		if !keyed {
			return nil, errors.New(errors.ErrCodeStoreQuery,
				fmt.Sprintf("condition column %q is not a key of %s", c.Col, spec.Name))
		}
		where = append(where, fmt.Sprintf("%s %s $%d", c.Col, c.Op, i+1))
		args = append(args, c.Val)
	}

	q := fmt.Sprintf("SELECT %s, %s FROM %s",
		strings.Join(spec.KeyCols, ", "),
		strings.Join(spec.ValueCols, ", "),
		spec.Name)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + strings.Join(spec.KeyCols, ", ")

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery,
			fmt.Sprintf("read from %s", spec.Name), err)
	}
	defer rows.Close()

	nk, nv := len(spec.KeyCols), len(spec.ValueCols)
	var out []Row
	for rows.Next() {
		keys := make([]string, nk)
		vals := make([]sql.NullFloat64, nv)
		dest := make([]interface{}, 0, nk+nv)
		for i := range keys {
			dest = append(dest, &keys[i])
		}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery,
				fmt.Sprintf("scan row from %s", spec.Name), err)
		}
		r := Row{Keys: keys, Values: make([]float64, nv)}
		for i, v := range vals {
			if v.Valid {
				r.Values[i] = v.Float64
			} else {
				r.Values[i] = math.NaN()
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery,
			fmt.Sprintf("iterate rows of %s", spec.Name), err)
	}
	return out, nil
}
