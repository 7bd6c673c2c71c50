package engine

import (
	"context"
	"fmt"
	"sort"
)

// Handler is one named capability. Execute reads and mutates the turn state;
// it may set the terminal response, append tasks, or both. A returned error
// is fatal to the turn.
type Handler interface {
	Name() string
	Execute(ctx context.Context, st *TurnState, args map[string]any) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	Capability string
	Fn         func(ctx context.Context, st *TurnState, args map[string]any) error
}

func (h HandlerFunc) Name() string { return h.Capability }

func (h HandlerFunc) Execute(ctx context.Context, st *TurnState, args map[string]any) error {
	return h.Fn(ctx, st, args)
}

// Registry maps capability names to handlers. Built once at startup,
// read-only afterwards.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds the registry from a fixed handler list.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	m := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		name := h.Name()
		if name == "" {
			return nil, fmt.Errorf("handler with empty capability name")
		}
		if _, exists := m[name]; exists {
			return nil, fmt.Errorf("duplicate capability: %s", name)
		}
		m[name] = h
	}
	return &Registry{handlers: m}, nil
}

// Resolve looks up a capability. A miss is an expected, non-exceptional
// outcome handled by the dispatcher.
func (r *Registry) Resolve(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
