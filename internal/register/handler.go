// Package register implements the register-user flow: ordinary glue
// around the core that lets the end-to-end registration-then-auth
// scenario run (spec.md §8 scenario 1; grounded on original_source's
// register_handler.rs). It is not part of the three core subsystems'
// invariants.
package register

import (
	"context"
	"errors"
	"log/slog"

	"github.com/postalsys/protolink/internal/logging"
	"github.com/postalsys/protolink/internal/message"
	"github.com/postalsys/protolink/internal/metrics"
	"github.com/postalsys/protolink/internal/router"
	"github.com/postalsys/protolink/internal/store/model"
)

// Handler serves RegisterRequest.
type Handler struct {
	users   model.UserStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a register handler over users. A nil logger falls back to a
// no-op logger. A nil m disables metrics recording.
func New(users model.UserStore, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Handler{users: users, logger: logger, metrics: m}
}

// AcceptedTags implements router.Handler.
func (h *Handler) AcceptedTags() []message.Tag {
	return []message.Tag{message.TagRegisterRequest}
}

// ServeRoute implements router.Handler.
func (h *Handler) ServeRoute(ctx context.Context, meta router.ClientMeta, tag message.Tag, body message.Body) (message.Body, error) {
	if h.metrics != nil {
		h.metrics.RegisterRequests.Inc()
	}

	req, ok := body.(*message.RegisterRequest)
	if !ok {
		h.countFailure("malformed")
		return &message.AuthResponse{Success: false, Message: "malformed request"}, nil
	}

	if _, err := h.users.Create(ctx, req.Name, req.Login, req.PasswordSecret); err != nil {
		if errors.Is(err, model.ErrDuplicateLogin) {
			h.countFailure("duplicate_login")
			return &message.AuthResponse{Success: false, Message: "login already registered"}, nil
		}
		h.logger.Error("create user", logging.KeyLogin, req.Login, logging.KeyError, err)
		h.countFailure("store_error")
		return &message.AuthResponse{Success: false, Message: "internal database error"}, nil
	}

	return &message.AuthResponse{Success: true, Message: ""}, nil
}

func (h *Handler) countFailure(reason string) {
	if h.metrics != nil {
		h.metrics.RegisterFailures.WithLabelValues(reason).Inc()
	}
}
