// Package model defines the value types and store interfaces the auth core
// requires from the relational store (spec.md §3, §6). The user, challenge,
// and token tables themselves are external collaborators — this package
// defines only the operations the core needs from them, the way the
// teacher's storage package defines SessionStore/NonceStore/DIDStore and
// leaves the concrete schema to an implementation package.
package model

import (
	"context"
	"time"
)

// User is immutable for the core's purposes: created out-of-band by the
// registration flow, never mutated by the handshake or auth handler.
type User struct {
	ID             int64
	Login          string
	Name           string
	PasswordSecret [32]byte
}

// Challenge is the pending-handshake record created by auth_request and
// consumed by auth_challenge.
type Challenge struct {
	ID       int64
	UserID   int64
	Nonce    [12]byte
	Solution []byte // the plaintext challenge; the expected answer
	Sealed   []byte // the ciphertext transported to the client
}

// Token is an opaque bearer credential issued on successful auth_challenge.
type Token struct {
	ID        int64
	Value     uint64
	UserID    int64
	ExpiresAt time.Time
}

// UserStore resolves users by login for the handshake and auth handler.
type UserStore interface {
	FindByLogin(ctx context.Context, login string) (*User, error)
	Create(ctx context.Context, name, login string, passwordSecret [32]byte) (*User, error)
}

// ChallengeStore manages the first-inserted-first-consumed pending challenge
// records described in spec.md §3 and §5.
type ChallengeStore interface {
	Create(ctx context.Context, userID int64, nonce [12]byte, solution, sealed []byte) (*Challenge, error)
	// TakeEarliest returns and deletes the earliest-inserted pending
	// challenge for userID, or (nil, nil) if none is pending.
	TakeEarliest(ctx context.Context, userID int64) (*Challenge, error)
}

// TokenStore issues collision-robust bearer tokens (spec.md §4.7).
type TokenStore interface {
	// Issue samples a nonzero 64-bit value and retries on unique-constraint
	// violation up to an implementation-defined attempt budget.
	Issue(ctx context.Context, userID int64, expiresAt time.Time) (*Token, error)
}

// Store aggregates the three sub-stores the core depends on, the way the
// teacher's storage.Store aggregates SessionStore/NonceStore/DIDStore.
type Store interface {
	Users() UserStore
	Challenges() ChallengeStore
	Tokens() TokenStore
	Close()
	Ping(ctx context.Context) error
}

// ErrNotFound is returned by store lookups that find nothing, so callers
// can distinguish "no such row" from a transport-level store failure.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "model: not found" }

// ErrDuplicateLogin is returned by UserStore.Create when the login is
// already taken.
var ErrDuplicateLogin = duplicateLoginError{}

type duplicateLoginError struct{}

func (duplicateLoginError) Error() string { return "model: login already registered" }
