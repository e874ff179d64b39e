// Package postgres implements the store.model interfaces on top of
// PostgreSQL via pgx, following the pooled-connection pattern used by the
// reference storage layer this is grounded on (SAGE's pkg/storage/postgres).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/postalsys/protolink/internal/store/model"
)

// Store implements model.Store for PostgreSQL.
type Store struct {
	pool       *pgxpool.Pool
	users      *UserStore
	challenges *ChallengeStore
	tokens     *TokenStore
}

// New creates a pooled PostgreSQL store from a DATABASE_URL-style DSN
// (spec.md §6). It pings once so startup fails fast on a bad connection
// string rather than on the first request.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	adapted := poolAdapter{pool: pool}
	return &Store{
		pool:       pool,
		users:      &UserStore{db: adapted},
		challenges: &ChallengeStore{db: adapted},
		tokens:     &TokenStore{db: adapted},
	}, nil
}

func (s *Store) Users() model.UserStore           { return s.users }
func (s *Store) Challenges() model.ChallengeStore { return s.challenges }
func (s *Store) Tokens() model.TokenStore         { return s.tokens }

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Schema is the DDL for the three tables the core requires (spec.md §6).
// Migrations are out of scope for the core; this is provided for operators
// bootstrapping a fresh database.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	login         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	password_hash BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS challenges (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT NOT NULL REFERENCES users(id),
	challenge  BYTEA NOT NULL,
	solution   BYTEA NOT NULL,
	nonce      BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tokens (
	id         BIGSERIAL PRIMARY KEY,
	token      BIGINT NOT NULL UNIQUE,
	user_id    BIGINT NOT NULL REFERENCES users(id),
	expires_at TIMESTAMPTZ NOT NULL
);
`
