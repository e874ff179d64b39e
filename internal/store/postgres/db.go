package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// db is the slice of *pgxpool.Pool the sub-stores actually call. Depending
// on this instead of the concrete pool lets tests substitute a fake without
// a live database (SPEC_FULL.md's test-tooling section).
type db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (tx, error)
}

// tx is the slice of pgx.Tx the challenge store's atomic take-earliest
// transaction needs.
type tx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// poolAdapter narrows *pgxpool.Pool to db. pgx.Tx already satisfies tx
// structurally, so Begin needs only a type conversion on return, not a
// wrapper type.
type poolAdapter struct {
	pool *pgxpool.Pool
}

func (p poolAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p poolAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

func (p poolAdapter) Begin(ctx context.Context) (tx, error) {
	t, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return t, nil
}
