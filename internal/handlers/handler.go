// Package handlers implements the capability behind each intent kind.
//
// A handler returns either the reply text or an error. Errors carry one
// of the kinds in errors.go, and [Describe] is the single place that
// turns any error into something the assistant can say.
package handlers

import (
	"context"
	"slices"
	"sync"

	"github.com/nugget/chatur/internal/intent"
)

// Handler executes one intent kind. CanHandle must be a pure predicate
// on the intent kind.
type Handler interface {
	CanHandle(in intent.Intent) bool
	Handle(ctx context.Context, in intent.Intent) (string, error)
}

// Registry binds each intent kind to one handler. It is populated at
// startup and read concurrently afterward.
type Registry struct {
	mu       sync.RWMutex
	handlers map[intent.Kind]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[intent.Kind]Handler)}
}

// Register binds kind to h, replacing any earlier binding. A nil h
// removes the binding.
func (r *Registry) Register(kind intent.Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, kind)
		return
	}
	r.handlers[kind] = h
}

// Lookup returns the handler bound to kind.
func (r *Registry) Lookup(kind intent.Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the bound kinds in sorted order.
func (r *Registry) Kinds() []intent.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]intent.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// handles is embedded by every handler to provide CanHandle.
type handles intent.Kind

// CanHandle reports whether in has the handler's kind.
func (h handles) CanHandle(in intent.Intent) bool {
	return in.Kind() == intent.Kind(h)
}

// say picks the reply for lang. Hindi falls back to English when no
// translation is given.
func say(lang, en, hi string) string {
	if lang == intent.Hindi && hi != "" {
		return hi
	}
	return en
}
