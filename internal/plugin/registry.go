package plugin

import (
	"fmt"
	"sync"

	"github.com/abhisek/codequiz/internal/quiz"
)

// Registry maps each question type to the plugin that produces it.
type Registry struct {
	mu      sync.RWMutex
	plugins map[quiz.Type]Plugin
	order   []quiz.Type
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[quiz.Type]Plugin)}
}

// Register adds p. Registering a second plugin for the same type is an error.
func (r *Registry) Register(p Plugin) error {
	t := p.Type()
	if !t.Valid() {
		return fmt.Errorf("register plugin: unknown question type %q", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[t]; ok {
		return fmt.Errorf("register plugin: type %q already registered", t)
	}
	r.plugins[t] = p
	r.order = append(r.order, t)
	return nil
}

// Get returns the plugin for t.
func (r *Registry) Get(t quiz.Type) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[t]
	return p, ok
}

// Resolve returns the plugins for types in the given order, skipping
// repeats. An empty types list resolves to every registered plugin.
func (r *Registry) Resolve(types []quiz.Type) ([]Plugin, error) {
	if len(types) == 0 {
		types = r.Types()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(types))
	seen := make(map[quiz.Type]bool, len(types))
	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		p, ok := r.plugins[t]
		if !ok {
			return nil, fmt.Errorf("no plugin registered for type %q", t)
		}
		out = append(out, p)
	}
	return out, nil
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []quiz.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]quiz.Type(nil), r.order...)
}
