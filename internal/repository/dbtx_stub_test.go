package repository

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// recordedCall is one statement sent to stubDB.
type recordedCall struct {
	sql  string
	args []any
}

// stubDB implements db.DBTX over canned results and records every statement.
type stubDB struct {
	calls    []recordedCall
	rows     [][]any
	rowErr   error
	queryErr error
	tag      string
}

func (s *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, recordedCall{sql: sql, args: args})
	if s.queryErr != nil {
		return pgconn.CommandTag{}, s.queryErr
	}
	return pgconn.NewCommandTag(s.tag), nil
}

func (s *stubDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, recordedCall{sql: sql, args: args})
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &stubRows{values: s.rows, pos: -1}, nil
}

func (s *stubDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s.calls = append(s.calls, recordedCall{sql: sql, args: args})
	if s.rowErr != nil {
		return stubRow{err: s.rowErr}
	}
	if len(s.rows) == 0 {
		return stubRow{err: pgx.ErrNoRows}
	}
	return stubRow{values: s.rows[0]}
}

func (s *stubDB) lastCall() recordedCall {
	if len(s.calls) == 0 {
		return recordedCall{}
	}
	return s.calls[len(s.calls)-1]
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanValues(r.values, dest)
}

type stubRows struct {
	values [][]any
	pos    int
	closed bool
}

func (r *stubRows) Close()                                       { r.closed = true }
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return r.values[r.pos], nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }
func (r *stubRows) Scan(dest ...any) error                       { return scanValues(r.values[r.pos], dest) }
func (r *stubRows) Next() bool {
	if r.closed || r.pos+1 >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

// scanValues copies values into scan destinations. Nil values zero the
// destination and non-pointer values fill pointer destinations.
func scanValues(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		if target.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer {
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(v.Convert(target.Type().Elem()))
			target.Set(p)
			continue
		}
		target.Set(v.Convert(target.Type()))
	}
	return nil
}
