package lsp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/grindlemire/gsxls/pkg/lsp/endpoint"
	"github.com/grindlemire/gsxls/pkg/lsp/log"
)

// Router dispatches LSP methods. Lifecycle and document sync methods are
// handled directly by the Server; language features go to the endpoint
// handlers, which delegate them to foreign language servers.
type Router struct {
	server   *Server
	handlers map[string]endpoint.Handler
	order    []endpoint.Handler
}

// NewRouter creates a Router serving the given feature handlers.
func NewRouter(server *Server, handlers ...endpoint.Handler) *Router {
	r := &Router{
		server:   server,
		handlers: make(map[string]endpoint.Handler, len(handlers)),
		order:    handlers,
	}
	for _, h := range handlers {
		r.handlers[h.Method()] = h
	}
	return r
}

// Handler returns the feature handler for method.
func (r *Router) Handler(method string) (endpoint.Handler, bool) {
	h, ok := r.handlers[method]
	return h, ok
}

// Capabilities returns the ServerCapabilities advertised at initialize.
func (r *Router) Capabilities() map[string]any {
	caps := endpoint.Capabilities(r.order...)
	caps["textDocumentSync"] = TextDocumentSyncOptions{
		OpenClose: true,
		Change:    SyncFull,
		Save:      &SaveOptions{},
	}
	return caps
}

// Route dispatches a lifecycle or document sync message.
func (r *Router) Route(ctx context.Context, req Request) (any, *Error) {
	switch req.Method {
	// Lifecycle
	case "initialize":
		return r.server.handleInitialize(req.Params)
	case "initialized":
		return r.server.handleInitialized(ctx)
	case "shutdown":
		return r.server.handleShutdown()
	case "exit":
		r.server.handleExit()
		return nil, nil
	case "$/cancelRequest":
		return r.server.handleCancelRequest(req.Params)

	// Document synchronization
	case "textDocument/didOpen":
		return r.server.handleDidOpen(ctx, req.Params)
	case "textDocument/didChange":
		return r.server.handleDidChange(ctx, req.Params)
	case "textDocument/didClose":
		return r.server.handleDidClose(req.Params)
	case "textDocument/didSave":
		return r.server.handleDidSave(ctx, req.Params)

	default:
		// Protocol-level notifications may be ignored.
		if req.IsNotification() && strings.HasPrefix(req.Method, "$/") {
			return nil, nil
		}
		log.Server("Unknown method: %s", req.Method)
		return nil, &Error{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method}
	}
}

func decodeParams(params json.RawMessage, v any) *Error {
	if err := json.Unmarshal(params, v); err != nil {
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return nil
}
