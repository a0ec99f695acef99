package streams

import (
	"context"
	"sync"

	"github.com/golly-go/streams/events"
)

// Handler processes a decoded event payload. Handlers must be idempotent:
// redelivery is possible after a reclaim, or after a crash between dispatch
// and acknowledgment.
type Handler func(ctx context.Context, payload map[string]any) error

// HandlerRegistry maps event type tags to handlers. It is an explicit
// instance passed into the consumer at construction, never process state.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string][]Handler)}
}

// Subscribe registers an additional handler for an event type. All handlers
// registered for a type run, independently, for every matching entry.
// Register under "<domain>.*" to catch every type in a domain that has no
// exact-match handler of its own.
func (r *HandlerRegistry) Subscribe(eventType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[eventType] = append(r.handlers[eventType], handler)
}

// Resolve returns the handlers for an exact type tag, falling back to the
// domain wildcard when none are registered. A nil result is not an error;
// unregistered event types are expected.
func (r *HandlerRegistry) Resolve(eventType string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hs := r.handlers[eventType]
	if len(hs) == 0 {
		hs = r.handlers[events.Domain(eventType)+".*"]
	}
	if len(hs) == 0 {
		return nil
	}

	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

// Types returns every tag with at least one registered handler.
func (r *HandlerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}
