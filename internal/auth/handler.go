// Package auth implements the two-message challenge/response protocol that
// authenticates a connection and issues an opaque bearer token (spec.md
// §4.7). It is a router.Handler over the user, challenge, and token
// stores; it holds no mutable state of its own, so sharing one instance
// across connections needs no lock — mutation lives in the store, which
// already serializes through the database.
package auth

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/postalsys/protolink/internal/crypto"
	"github.com/postalsys/protolink/internal/logging"
	"github.com/postalsys/protolink/internal/message"
	"github.com/postalsys/protolink/internal/metrics"
	"github.com/postalsys/protolink/internal/router"
	"github.com/postalsys/protolink/internal/store/model"
)

// tokenLifetime is how long an issued token remains valid (spec.md §4.7).
const tokenLifetime = 2 * time.Hour

// requestChallengeMin and requestChallengeMax bound the size of the
// challenge auth_request persists, distinct from the handshake's own
// randomly-bounded challenge (spec.md §4.4 vs §4.7).
const (
	requestChallengeMin = 128
	requestChallengeMax = 256
)

// Handler serves AuthRequest and AuthChallenge.
type Handler struct {
	store   model.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds an auth handler over store. A nil logger falls back to a
// no-op logger. A nil m disables metrics recording.
func New(store model.Store, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Handler{store: store, logger: logger, metrics: m}
}

// AcceptedTags implements router.Handler.
func (h *Handler) AcceptedTags() []message.Tag {
	return []message.Tag{message.TagAuthRequest, message.TagAuthChallenge}
}

// ServeRoute implements router.Handler.
func (h *Handler) ServeRoute(ctx context.Context, meta router.ClientMeta, tag message.Tag, body message.Body) (message.Body, error) {
	switch tag {
	case message.TagAuthRequest:
		req, ok := body.(*message.AuthRequest)
		if !ok {
			return message.EmptyAuthChallenge(), nil
		}
		return h.authRequest(ctx, req), nil
	case message.TagAuthChallenge:
		answer, ok := body.(*message.AuthChallenge)
		if !ok {
			return &message.AuthResponse{Success: false, Message: "malformed request"}, nil
		}
		return h.authChallenge(ctx, answer), nil
	default:
		return &message.AuthResponse{Success: false, Message: "malformed request"}, nil
	}
}

// authRequest implements the first leg of the handshake-over-the-channel
// protocol: it resolves the claimed login and issues a fresh persisted
// challenge, or the empty sentinel on any failure (spec.md §4.7).
func (h *Handler) authRequest(ctx context.Context, req *message.AuthRequest) message.Body {
	if h.metrics != nil {
		h.metrics.AuthRequests.Inc()
	}

	user, err := h.store.Users().FindByLogin(ctx, req.Login)
	if err != nil {
		h.countAuthFailure("unknown_login")
		return message.EmptyAuthChallenge()
	}

	var nonce [crypto.NonceSize]byte
	if err := randomNonce(&nonce); err != nil {
		h.logger.Error("sample challenge nonce", logging.KeyError, err)
		h.countAuthFailure("nonce")
		return message.EmptyAuthChallenge()
	}

	aead, err := crypto.NewGCM(user.PasswordSecret)
	if err != nil {
		h.logger.Error("build challenge cipher", logging.KeyError, err)
		h.countAuthFailure("cipher")
		return message.EmptyAuthChallenge()
	}

	solution, ciphertext, err := crypto.GenerateChallenge(aead, nonce, requestChallengeMin, requestChallengeMax)
	if err != nil {
		h.logger.Error("generate challenge", logging.KeyError, err)
		h.countAuthFailure("generate_challenge")
		return message.EmptyAuthChallenge()
	}

	if _, err := h.store.Challenges().Create(ctx, user.ID, nonce, solution, ciphertext); err != nil {
		h.logger.Error("persist challenge", logging.KeyUserID, user.ID, logging.KeyError, err)
		h.countAuthFailure("persist_challenge")
		return message.EmptyAuthChallenge()
	}

	return &message.AuthChallenge{Challenge: ciphertext, Nonce: nonce, Login: req.Login}
}

// authChallenge implements the second leg: it consumes the earliest
// pending challenge for the claimed login and verifies the answer, then
// issues a token on success (spec.md §4.7).
func (h *Handler) authChallenge(ctx context.Context, answer *message.AuthChallenge) message.Body {
	user, err := h.store.Users().FindByLogin(ctx, answer.Login)
	if err != nil {
		h.countAuthFailure("unknown_login")
		return &message.AuthResponse{Success: false, Message: "user not found"}
	}

	record, err := h.store.Challenges().TakeEarliest(ctx, user.ID)
	if err != nil {
		h.logger.Error("take pending challenge", logging.KeyUserID, user.ID, logging.KeyError, err)
		h.countAuthFailure("challenge_not_found")
		return &message.AuthResponse{Success: false, Message: "challenge not found"}
	}
	if record == nil {
		h.countAuthFailure("challenge_not_found")
		return &message.AuthResponse{Success: false, Message: "challenge not found"}
	}

	if !crypto.VerifyChallenge(record.Solution, answer.Challenge) {
		h.countAuthFailure("incorrect")
		return &message.AuthResponse{Success: false, Message: "incorrect"}
	}

	token, err := h.store.Tokens().Issue(ctx, user.ID, time.Now().Add(tokenLifetime))
	if err != nil {
		h.logger.Error("issue token", logging.KeyUserID, user.ID, logging.KeyError, err)
		h.countAuthFailure("token_issue")
		return &message.AuthResponse{Success: false, Message: "token creation failed"}
	}

	if h.metrics != nil {
		h.metrics.AuthSuccesses.Inc()
		h.metrics.TokensIssued.Inc()
	}
	return &message.AuthResponse{Success: true, Message: strconv.FormatUint(token.Value, 10)}
}

func (h *Handler) countAuthFailure(reason string) {
	if h.metrics != nil {
		h.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
}

func randomNonce(nonce *[crypto.NonceSize]byte) error {
	_, err := io.ReadFull(rand.Reader, nonce[:])
	return err
}
