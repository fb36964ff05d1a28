package metamodel

import (
	"fmt"
	"sort"

	"gendb/internal/store"
)

// Registry holds the installed backends, keyed by name.
type Registry struct {
	backends map[string]Metamodel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Metamodel)}
}

// Register installs a backend. Fails if the name is taken.
func (r *Registry) Register(m Metamodel) error {
	name := m.Name()
	if _, ok := r.backends[name]; ok {
		return fmt.Errorf("metamodel %q already registered: %w", name, store.ErrConflict)
	}
	r.backends[name] = m
	return nil
}

// Lookup returns the backend registered under name.
func (r *Registry) Lookup(name string) (Metamodel, error) {
	m, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("metamodel %q: %w", name, store.ErrNotFound)
	}
	return m, nil
}

// Names lists the registered backend names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
