package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
)

// Endpoint is a foreign language service reachable through a remote call.
// *foreign.Server implements it.
type Endpoint interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Dispatcher routes delegated requests to the endpoint of their language.
type Dispatcher struct {
	mu        sync.RWMutex
	endpoints map[mapping.Language]Endpoint
}

// NewDispatcher creates a dispatcher with no endpoints.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{endpoints: make(map[mapping.Language]Endpoint)}
}

// Register sets the endpoint serving lang.
func (d *Dispatcher) Register(lang mapping.Language, ep Endpoint) {
	if !slices.Contains(mapping.Languages, lang) {
		violate("register endpoint for %s", lang)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endpoints[lang] = ep
}

// Dispatch makes one remote call to the endpoint serving lang.
//
// Only embedded languages can be dispatched; anything else is a contract
// violation. A known language with no registered endpoint fails with
// ErrUnavailable.
func (d *Dispatcher) Dispatch(ctx context.Context, lang mapping.Language, method string, payload any) (json.RawMessage, error) {
	if !slices.Contains(mapping.Languages, lang) {
		violate("dispatch %s to language %s", method, lang)
	}

	d.mu.RLock()
	ep, ok := d.endpoints[lang]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnavailable, lang)
	}
	return ep.Call(ctx, method, payload)
}
