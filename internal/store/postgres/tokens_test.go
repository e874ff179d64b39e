package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestTokenStore_Issue_OK(t *testing.T) {
	row := fakeRow{values: []any{int64(11)}}
	store := &TokenStore{db: &fakeDB{rows: []pgx.Row{row}}}

	expires := time.Unix(1893456000, 0)
	token, err := store.Issue(context.Background(), 4, expires)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token.ID != 11 || token.UserID != 4 || token.Value == 0 {
		t.Fatalf("Issue() = %+v, unexpected fields", token)
	}
	if !token.ExpiresAt.Equal(expires) {
		t.Fatalf("Issue() ExpiresAt = %v, want %v", token.ExpiresAt, expires)
	}
}

func TestTokenStore_Issue_RetriesOnCollision(t *testing.T) {
	rows := []pgx.Row{
		fakeRow{err: pgErr(uniqueViolation)},
		fakeRow{err: pgErr(uniqueViolation)},
		fakeRow{values: []any{int64(99)}},
	}
	store := &TokenStore{db: &fakeDB{rows: rows}}

	token, err := store.Issue(context.Background(), 1, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token.ID != 99 {
		t.Fatalf("Issue() = %+v, want ID 99 after two collisions", token)
	}
}

func TestTokenStore_Issue_ExhaustsAttempts(t *testing.T) {
	rows := make([]pgx.Row, maxTokenIssueAttempts)
	for i := range rows {
		rows[i] = fakeRow{err: pgErr(uniqueViolation)}
	}
	store := &TokenStore{db: &fakeDB{rows: rows}}

	if _, err := store.Issue(context.Background(), 1, time.Now()); err == nil {
		t.Fatal("Issue() error = nil, want error after exhausting retry budget")
	}
}

func TestTokenStore_Issue_OtherErrorFailsImmediately(t *testing.T) {
	rows := []pgx.Row{fakeRow{err: errTestDeleteFailed}}
	store := &TokenStore{db: &fakeDB{rows: rows}}

	if _, err := store.Issue(context.Background(), 1, time.Now()); err == nil {
		t.Fatal("Issue() error = nil, want non-collision error to propagate")
	}
}

func TestRandomNonzeroUint64_NeverZero(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v, err := randomNonzeroUint64()
		if err != nil {
			t.Fatalf("randomNonzeroUint64() error = %v", err)
		}
		if v == 0 {
			t.Fatal("randomNonzeroUint64() returned 0")
		}
	}
}
