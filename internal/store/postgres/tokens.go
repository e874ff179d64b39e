package postgres

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/postalsys/protolink/internal/store/model"
)

// maxTokenIssueAttempts bounds the collision-retry loop in Issue
// (spec.md §4.7: "loops up to 32 attempts").
const maxTokenIssueAttempts = 32

// TokenStore implements model.TokenStore for PostgreSQL.
type TokenStore struct {
	db db
}

// Issue samples a random 64-bit token value, coercing a sampled zero to one,
// and retries on a unique-constraint violation rather than maintaining a
// central counter. Exhausting the attempt budget fails with an explicit
// rollback error rather than silently degrading to a smaller keyspace.
func (s *TokenStore) Issue(ctx context.Context, userID int64, expiresAt time.Time) (*model.Token, error) {
	for attempt := 0; attempt < maxTokenIssueAttempts; attempt++ {
		value, err := randomNonzeroUint64()
		if err != nil {
			return nil, fmt.Errorf("issue token: sample value: %w", err)
		}

		const query = `
			INSERT INTO tokens (token, user_id, expires_at)
			VALUES ($1, $2, $3)
			RETURNING id
		`

		var id int64
		err = s.db.QueryRow(ctx, query, int64(value), userID, expiresAt).Scan(&id)
		if err == nil {
			return &model.Token{ID: id, Value: value, UserID: userID, ExpiresAt: expiresAt}, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			continue // collision: resample and retry
		}
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return nil, fmt.Errorf("issue token: exhausted %d attempts without a unique value, rolling back", maxTokenIssueAttempts)
}

// randomNonzeroUint64 samples a random 64-bit value from a CSPRNG, coercing
// a sampled zero to one (spec.md §9: "retain the coercion").
func randomNonzeroUint64() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(b[:])
	if v == 0 {
		v = 1
	}
	return v, nil
}
