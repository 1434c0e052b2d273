package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/AaronLay10/plannerbench/internal/model"
)

// Factory constructs an engine for a planner.
type Factory func(name string, spec model.EngineSpec) (Engine, error)

// Registry maps engine kinds to their constructors.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in engine kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("process", func(name string, spec model.EngineSpec) (Engine, error) {
		return NewProcessEngine(name, spec.Command, spec.Args, spec.Dir)
	})
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build constructs the engine declared by a planner for the given engine name.
func (r *Registry) Build(name string, spec model.EngineSpec) (Engine, error) {
	kind := spec.Kind
	if kind == "" {
		kind = "process"
	}
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown engine kind: %s", kind)
	}
	eng, err := f(name, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine %s: %w", name, err)
	}
	return eng, nil
}
