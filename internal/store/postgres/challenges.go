package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/postalsys/protolink/internal/store/model"
)

// ChallengeStore implements model.ChallengeStore for PostgreSQL.
type ChallengeStore struct {
	db db
}

// Create persists a pending challenge record for userID.
func (s *ChallengeStore) Create(ctx context.Context, userID int64, nonce [12]byte, solution, sealed []byte) (*model.Challenge, error) {
	const query = `
		INSERT INTO challenges (user_id, challenge, solution, nonce)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRow(ctx, query, userID, sealed, solution, nonce[:]).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}

	return &model.Challenge{ID: id, UserID: userID, Nonce: nonce, Solution: solution, Sealed: sealed}, nil
}

// TakeEarliest deletes and returns the earliest-inserted pending challenge
// for userID (spec.md §3: "the dispatcher consumes the earliest-inserted
// one"). A single transaction makes the select-then-delete atomic so two
// concurrent auth_challenge calls for the same user never consume the same
// row twice.
func (s *ChallengeStore) TakeEarliest(ctx context.Context, userID int64) (*model.Challenge, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("take earliest challenge: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const selectQuery = `
		SELECT id, solution, nonce
		FROM challenges
		WHERE user_id = $1
		ORDER BY id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var c model.Challenge
	var nonce []byte
	err = tx.QueryRow(ctx, selectQuery, userID).Scan(&c.ID, &c.Solution, &nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take earliest challenge: select: %w", err)
	}
	copy(c.Nonce[:], nonce)
	c.UserID = userID

	if _, err := tx.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, c.ID); err != nil {
		return nil, fmt.Errorf("take earliest challenge: delete: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("take earliest challenge: commit: %w", err)
	}

	return &c, nil
}
