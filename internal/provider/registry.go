package provider

import (
	"sort"
	"sync"
)

// Factory constructs a configured Runtime on first resolution.
type Factory func() *Runtime

// Registry maps provider names to factories so callers can reference
// providers by the string identifier persisted in alerts and dashboards. It
// is an explicit instance injected where needed, never package-level state.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]*Runtime
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]*Runtime),
	}
}

// Register binds a factory to name. Re-registering replaces the previous
// factory and drops any instance built from it.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	r.factories[name] = factory
	delete(r.instances, name)
	r.mu.Unlock()
}

// Resolve returns the shared Runtime for name, building it on first use.
// Sharing the instance keeps the per-pair cache warm across callers.
func (r *Registry) Resolve(name string) (*Runtime, bool) {
	r.mu.RLock()
	instance, found := r.instances[name]
	r.mu.RUnlock()
	if found {
		return instance, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if instance, found = r.instances[name]; found {
		return instance, true
	}
	factory, found := r.factories[name]
	if !found {
		return nil, false
	}
	instance = factory()
	r.instances[name] = instance
	return instance, true
}

// List returns the registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
