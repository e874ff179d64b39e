package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRow lets a test script a single Scan outcome without a live connection.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("fakeRow: scan target count mismatch")
	}
	for i, d := range dest {
		switch v := d.(type) {
		case *int64:
			*v = r.values[i].(int64)
		case *string:
			*v = r.values[i].(string)
		case *[]byte:
			*v = r.values[i].([]byte)
		default:
			return errors.New("fakeRow: unsupported scan target")
		}
	}
	return nil
}

// pgErr builds a *pgconn.PgError carrying the given SQLSTATE code, the way a
// real unique-constraint violation would come back from the wire.
func pgErr(code string) error {
	return &pgconn.PgError{Code: code}
}

// fakeDB is a scriptable stand-in for db: each call to QueryRow or Exec pops
// the next queued response, so a test can assert exact call sequencing.
type fakeDB struct {
	rows      []pgx.Row
	execErrs  []error
	execCalls int
	rowCalls  int
	txFn      func() (tx, error)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	row := f.rows[f.rowCalls]
	f.rowCalls++
	return row
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	err := f.execErrs[f.execCalls]
	f.execCalls++
	return pgconn.CommandTag{}, err
}

func (f *fakeDB) Begin(ctx context.Context) (tx, error) {
	return f.txFn()
}

// fakeTx is a scriptable stand-in for tx.
type fakeTx struct {
	row         pgx.Row
	execErr     error
	commitErr   error
	rolledBack  bool
	committed   bool
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.row
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, t.execErr
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
