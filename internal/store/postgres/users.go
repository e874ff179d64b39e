package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/postalsys/protolink/internal/store/model"
)

const uniqueViolation = "23505"

// UserStore implements model.UserStore for PostgreSQL.
type UserStore struct {
	db db
}

// FindByLogin resolves a user by login, or model.ErrNotFound on miss.
func (s *UserStore) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	const query = `
		SELECT id, login, name, password_hash
		FROM users
		WHERE login = $1
	`

	var u model.User
	var secret []byte
	err := s.db.QueryRow(ctx, query, login).Scan(&u.ID, &u.Login, &u.Name, &secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by login: %w", err)
	}
	if len(secret) != 32 {
		return nil, fmt.Errorf("find user by login: stored password_hash is %d bytes, want 32", len(secret))
	}
	copy(u.PasswordSecret[:], secret)
	return &u, nil
}

// Create inserts a new user row. Registration is ordinary glue around the
// core (spec.md §1); it does not re-derive or hash passwordSecret, which is
// produced client-side.
func (s *UserStore) Create(ctx context.Context, name, login string, passwordSecret [32]byte) (*model.User, error) {
	const query = `
		INSERT INTO users (login, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRow(ctx, query, login, name, passwordSecret[:]).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("create user: %w", model.ErrDuplicateLogin)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &model.User{ID: id, Login: login, Name: name, PasswordSecret: passwordSecret}, nil
}
