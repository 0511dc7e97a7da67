package event

import (
	"sync"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// HandlerRegistry tracks which handler listens to which ledger event
// type. Handlers registered without types land in the wildcard list and
// see every event; the audit logger subscribes that way.
type HandlerRegistry struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		byType: make(map[string][]shared.EventHandler),
	}
}

// Register subscribes the handler to the given event types, or to all
// events when none are given.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = append(r.wildcard, handler)
		return
	}
	for _, et := range eventTypes {
		r.byType[et] = append(r.byType[et], handler)
	}
}

// Unregister drops the handler everywhere it appears.
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = without(r.wildcard, handler)
	for et, handlers := range r.byType {
		r.byType[et] = without(handlers, handler)
		if len(r.byType[et]) == 0 {
			delete(r.byType, et)
		}
	}
}

// GetHandlers returns the handlers for one event type, typed listeners
// first, then the wildcards.
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typed := r.byType[eventType]
	out := make([]shared.EventHandler, 0, len(typed)+len(r.wildcard))
	out = append(out, typed...)
	out = append(out, r.wildcard...)
	return out
}

// GetAllHandlers returns every distinct registered handler.
func (r *HandlerRegistry) GetAllHandlers() []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[shared.EventHandler]bool)
	out := make([]shared.EventHandler, 0, len(r.wildcard))
	for _, h := range r.wildcard {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	for _, handlers := range r.byType {
		for _, h := range handlers {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}

func without(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	out := handlers[:0:0]
	for _, h := range handlers {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}
