// Package chat registers the CreateChat tag (spec.md §3's frozen tag
// table) so the structure-type registry has a non-auth entry to dispatch.
// It is grounded on original_source's chat_handler.rs, which is itself an
// unimplemented stub; spec.md §1 keeps chat functionality out of scope.
package chat

import (
	"context"

	"github.com/postalsys/protolink/internal/message"
	"github.com/postalsys/protolink/internal/router"
)

// Handler serves CreateChat with a fixed "not implemented" reply.
type Handler struct{}

// New builds a chat handler.
func New() *Handler { return &Handler{} }

// AcceptedTags implements router.Handler.
func (h *Handler) AcceptedTags() []message.Tag {
	return []message.Tag{message.TagCreateChat}
}

// ServeRoute implements router.Handler. It never consults the request
// body; every CreateChat gets the same in-band rejection.
func (h *Handler) ServeRoute(ctx context.Context, meta router.ClientMeta, tag message.Tag, body message.Body) (message.Body, error) {
	return &message.AuthResponse{Success: false, Message: "chat not implemented"}, nil
}
