// Package transport provides broadcast.Sender implementations: an in-memory
// router for tests and the scenarios in spec.md §8, and (in wsrpc) a
// concrete websocket transport for real deployments.
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

// Handler answers one inbound wire.Request for a registered endpoint;
// internal/service.Service.HandleRequest satisfies this signature.
type Handler func(ctx context.Context, req wire.Request) (wire.Response, error)

// Registry is an in-process, in-memory broadcast.Sender: it looks up the
// recipient's Handler by Endpoint and calls it directly, with no
// serialization or network I/O. It is the transport used by the S1-S4
// scenario tests in spec.md §8 and is safe for concurrent registration and
// sends, mirroring internal/core/broadcast.Broadcaster's own
// RWMutex-guarded recipient-list shape.
type Registry struct {
	mu       sync.RWMutex
	handlers map[membership.Endpoint]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[membership.Endpoint]Handler)}
}

// Register binds endpoint to handler, replacing any prior binding.
func (r *Registry) Register(endpoint membership.Endpoint, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[endpoint] = handler
}

// Unregister removes endpoint's binding, e.g. once its Service has shut down.
func (r *Registry) Unregister(endpoint membership.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, endpoint)
}

// SendRequest implements broadcast.Sender.
func (r *Registry) SendRequest(ctx context.Context, to membership.Endpoint, req wire.Request) (wire.Response, error) {
	r.mu.RLock()
	handler, ok := r.handlers[to]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport: no registered endpoint %s", to)
	}
	return handler(ctx, req)
}
