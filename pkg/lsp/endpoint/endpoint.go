// Package endpoint defines the editor requests gsxls answers by delegating
// to a foreign language server.
package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/grindlemire/gsxls/pkg/lsp/delegate"
)

// ErrInvalidParams is returned when request parameters cannot be decoded.
var ErrInvalidParams = errors.New("invalid params")

// Registration is the server capability a handler advertises at initialize.
// It is the same for every document.
type Registration struct {
	Capability string
	Options    any
}

// Handler serves one editor request method.
type Handler interface {
	Method() string
	Registration() Registration
	Handle(ctx context.Context, params json.RawMessage) (delegate.Outcome[delegate.Response], error)
}

// Capabilities collects the registrations of handlers into the
// ServerCapabilities fields they advertise.
func Capabilities(handlers ...Handler) map[string]any {
	caps := make(map[string]any, len(handlers))
	for _, h := range handlers {
		reg := h.Registration()
		caps[reg.Capability] = reg.Options
	}
	return caps
}

// handler adapts a delegated request kind to Handler.
type handler[Req any] struct {
	deps delegate.Deps
	kind delegate.Kind[Req]
	reg  Registration
}

func (h *handler[Req]) Method() string {
	return h.kind.Method
}

func (h *handler[Req]) Registration() Registration {
	return h.reg
}

func (h *handler[Req]) Handle(ctx context.Context, params json.RawMessage) (delegate.Outcome[delegate.Response], error) {
	var req Req
	if err := json.Unmarshal(params, &req); err != nil {
		return delegate.Outcome[delegate.Response]{}, fmt.Errorf("%w: %s: %w", ErrInvalidParams, h.kind.Method, err)
	}
	return delegate.Run(ctx, h.deps, h.kind, req), nil
}
