package auth

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/postalsys/protolink/internal/crypto"
	"github.com/postalsys/protolink/internal/message"
	"github.com/postalsys/protolink/internal/store/model"
)

// fakeStore is an in-memory model.Store for exercising the handler without
// a database.
type fakeStore struct {
	users      *fakeUsers
	challenges *fakeChallenges
	tokens     *fakeTokens
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      &fakeUsers{byLogin: map[string]*model.User{}},
		challenges: &fakeChallenges{},
		tokens:     &fakeTokens{},
	}
}

func (s *fakeStore) Users() model.UserStore           { return s.users }
func (s *fakeStore) Challenges() model.ChallengeStore { return s.challenges }
func (s *fakeStore) Tokens() model.TokenStore         { return s.tokens }
func (s *fakeStore) Close()                           {}
func (s *fakeStore) Ping(ctx context.Context) error   { return nil }

type fakeUsers struct {
	byLogin map[string]*model.User
	nextID  int64
}

func (u *fakeUsers) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	user, ok := u.byLogin[login]
	if !ok {
		return nil, model.ErrNotFound
	}
	return user, nil
}

func (u *fakeUsers) Create(ctx context.Context, name, login string, passwordSecret [32]byte) (*model.User, error) {
	u.nextID++
	user := &model.User{ID: u.nextID, Login: login, Name: name, PasswordSecret: passwordSecret}
	u.byLogin[login] = user
	return user, nil
}

type fakeChallenges struct {
	records []*model.Challenge
	nextID  int64
}

func (c *fakeChallenges) Create(ctx context.Context, userID int64, nonce [12]byte, solution, sealed []byte) (*model.Challenge, error) {
	c.nextID++
	rec := &model.Challenge{ID: c.nextID, UserID: userID, Nonce: nonce, Solution: solution, Sealed: sealed}
	c.records = append(c.records, rec)
	return rec, nil
}

func (c *fakeChallenges) TakeEarliest(ctx context.Context, userID int64) (*model.Challenge, error) {
	for i, rec := range c.records {
		if rec.UserID == userID {
			c.records = append(c.records[:i], c.records[i+1:]...)
			return rec, nil
		}
	}
	return nil, nil
}

type fakeTokens struct {
	issued []*model.Token
	nextID int64
}

func (t *fakeTokens) Issue(ctx context.Context, userID int64, expiresAt time.Time) (*model.Token, error) {
	t.nextID++
	tok := &model.Token{ID: t.nextID, Value: uint64(t.nextID) + 1000, UserID: userID, ExpiresAt: expiresAt}
	t.issued = append(t.issued, tok)
	return tok, nil
}

func secretOf(password string) [32]byte {
	return sha256.Sum256([]byte(password))
}

func TestAuthRequest_UnknownLogin(t *testing.T) {
	store := newFakeStore()
	h := New(store, nil, nil)

	reply := h.authRequest(context.Background(), &message.AuthRequest{Login: "ghost"})
	got, ok := reply.(*message.AuthChallenge)
	if !ok {
		t.Fatalf("authRequest() = %T, want *message.AuthChallenge", reply)
	}
	if len(got.Challenge) != 0 || got.Login != "" || got.Nonce != [12]byte{} {
		t.Fatalf("authRequest() = %+v, want empty sentinel", got)
	}
}

func TestAuthRequest_KnownLogin(t *testing.T) {
	store := newFakeStore()
	secret := secretOf("pw")
	store.users.Create(context.Background(), "Alice", "alice", secret)

	h := New(store, nil, nil)
	reply := h.authRequest(context.Background(), &message.AuthRequest{Login: "alice"})
	got, ok := reply.(*message.AuthChallenge)
	if !ok {
		t.Fatalf("authRequest() = %T, want *message.AuthChallenge", reply)
	}
	if got.Login != "alice" || len(got.Challenge) == 0 {
		t.Fatalf("authRequest() = %+v, want a populated challenge for alice", got)
	}
	if len(store.challenges.records) != 1 {
		t.Fatalf("expected one persisted challenge, got %d", len(store.challenges.records))
	}
}

func TestAuthChallenge_FullRoundTrip(t *testing.T) {
	store := newFakeStore()
	secret := secretOf("pw")
	store.users.Create(context.Background(), "Alice", "alice", secret)

	h := New(store, nil, nil)
	challenge := h.authRequest(context.Background(), &message.AuthRequest{Login: "alice"}).(*message.AuthChallenge)

	aead, err := crypto.NewGCM(secret)
	if err != nil {
		t.Fatalf("NewGCM() error = %v", err)
	}
	plaintext, err := aead.Open(nil, challenge.Nonce[:], challenge.Challenge, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	reply := h.authChallenge(context.Background(), &message.AuthChallenge{Challenge: plaintext, Login: "alice"})
	resp, ok := reply.(*message.AuthResponse)
	if !ok || !resp.Success {
		t.Fatalf("authChallenge() = %+v, want success", reply)
	}
	if len(store.challenges.records) != 0 {
		t.Fatal("expected the consumed challenge to be removed from the store")
	}
}

func TestAuthChallenge_IncorrectAnswer(t *testing.T) {
	store := newFakeStore()
	secret := secretOf("pw")
	store.users.Create(context.Background(), "Alice", "alice", secret)

	h := New(store, nil, nil)
	h.authRequest(context.Background(), &message.AuthRequest{Login: "alice"})

	reply := h.authChallenge(context.Background(), &message.AuthChallenge{Challenge: []byte("wrong answer entirely"), Login: "alice"})
	resp, ok := reply.(*message.AuthResponse)
	if !ok || resp.Success || resp.Message != "incorrect" {
		t.Fatalf("authChallenge() = %+v, want incorrect", reply)
	}
	if len(store.challenges.records) != 0 {
		t.Fatal("challenge must be consumed even on a wrong answer")
	}
}

func TestAuthChallenge_NoPendingChallenge(t *testing.T) {
	store := newFakeStore()
	secret := secretOf("pw")
	store.users.Create(context.Background(), "Alice", "alice", secret)

	h := New(store, nil, nil)
	reply := h.authChallenge(context.Background(), &message.AuthChallenge{Challenge: []byte("anything"), Login: "alice"})
	resp, ok := reply.(*message.AuthResponse)
	if !ok || resp.Success || resp.Message != "challenge not found" {
		t.Fatalf("authChallenge() = %+v, want challenge not found", reply)
	}
}

func TestAuthChallenge_UnknownLogin(t *testing.T) {
	store := newFakeStore()
	h := New(store, nil, nil)

	reply := h.authChallenge(context.Background(), &message.AuthChallenge{Challenge: []byte("x"), Login: "ghost"})
	resp, ok := reply.(*message.AuthResponse)
	if !ok || resp.Success || resp.Message != "user not found" {
		t.Fatalf("authChallenge() = %+v, want user not found", reply)
	}
}

func TestAuthChallenge_Replay(t *testing.T) {
	store := newFakeStore()
	secret := secretOf("pw")
	store.users.Create(context.Background(), "Alice", "alice", secret)

	h := New(store, nil, nil)
	challenge := h.authRequest(context.Background(), &message.AuthRequest{Login: "alice"}).(*message.AuthChallenge)
	aead, _ := crypto.NewGCM(secret)
	plaintext, _ := aead.Open(nil, challenge.Nonce[:], challenge.Challenge, nil)

	first := h.authChallenge(context.Background(), &message.AuthChallenge{Challenge: plaintext, Login: "alice"}).(*message.AuthResponse)
	if !first.Success {
		t.Fatalf("first authChallenge() = %+v, want success", first)
	}

	replay := h.authChallenge(context.Background(), &message.AuthChallenge{Challenge: plaintext, Login: "alice"}).(*message.AuthResponse)
	if replay.Success || replay.Message != "challenge not found" {
		t.Fatalf("replayed authChallenge() = %+v, want challenge not found", replay)
	}
}
