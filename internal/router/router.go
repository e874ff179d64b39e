// Package router implements the per-connection demultiplexer: it resolves
// an inbound frame's structure tag to a registered handler, forwards the
// decoded body, and turns the handler's result into a single framed reply.
//
// The registry is built once at startup (spec.md §4.5) and is read-only
// afterwards; handlers are kept stateless so no router-wide lock is needed
// to serialize calls across connections — any mutation a handler needs
// belongs to the store, which already serializes through the database
// (spec.md §9's redesign note on the source's coarse handler mutex).
package router

import (
	"context"
	"fmt"

	"github.com/postalsys/protolink/internal/message"
)

// ClientMeta carries per-request context a handler may need. Upgrade is a
// one-shot slot a handler may use to take over the connection for
// long-lived streaming; the auth core never exercises it.
type ClientMeta struct {
	RemoteAddr string
	Upgrade    chan<- any
}

// Handler serves one or more message kinds. ServeRoute returns the body to
// send back as a single framed reply. A non-nil error is transport-fatal
// (it tears down the connection); an ordinary application-level failure is
// expressed by the returned body itself (e.g. AuthResponse{Success:false}),
// not by an error (spec.md §7, tier 3).
type Handler interface {
	AcceptedTags() []message.Tag
	ServeRoute(ctx context.Context, meta ClientMeta, tag message.Tag, body message.Body) (message.Body, error)
}

type registration struct {
	name    string
	handler Handler
}

// Router maps structure tags to the handler registered to accept them.
type Router struct {
	byName map[string]*registration
	byTag  map[message.Tag]*registration
}

// New builds an empty router.
func New() *Router {
	return &Router{
		byName: make(map[string]*registration),
		byTag:  make(map[message.Tag]*registration),
	}
}

// Register adds a handler under name for the given handler's accepted
// tags. It fails if name is already registered or if any of its tags is
// already claimed by another handler; the registry is meant to be built
// once at startup and never mutated after that (spec.md §4.5).
func (r *Router) Register(name string, h Handler) error {
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("router: handler %q already registered", name)
	}
	tags := h.AcceptedTags()
	for _, tag := range tags {
		if existing, ok := r.byTag[tag]; ok {
			return fmt.Errorf("router: tag %s already claimed by handler %q", tag.Name(), existing.name)
		}
	}

	reg := &registration{name: name, handler: h}
	r.byName[name] = reg
	for _, tag := range tags {
		r.byTag[tag] = reg
	}
	return nil
}

// MalformedRequest is the generic in-band reply for an unresolvable tag or
// an undecodable body (spec.md §4.5, §4.6, §7). Exported so callers that
// catch a decode failure before it even reaches Dispatch (codec.ReadMessage
// wrapping ErrMalformedMessage) can answer with the same wording.
func MalformedRequest() message.Body {
	return &message.AuthResponse{Success: false, Message: "malformed request"}
}

// Dispatch resolves tag to its registered handler and forwards body to it,
// returning the reply to frame and send back on the same connection. It
// never returns a Go error for protocol-level conditions (unknown tag,
// application failure); both are expressed in the returned body. A
// non-nil error means the handler hit a transport-fatal condition and the
// caller must close the connection without attempting to send the reply.
func (r *Router) Dispatch(ctx context.Context, meta ClientMeta, tag message.Tag, body message.Body) (message.Body, error) {
	reg, ok := r.byTag[tag]
	if !ok {
		return MalformedRequest(), nil
	}
	return reg.handler.ServeRoute(ctx, meta, tag, body)
}
