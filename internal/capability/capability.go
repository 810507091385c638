// Package capability holds the optional features resolved once at startup.
package capability

import (
	"fmt"
	"sort"
	"sync"
)

const (
	// Versions is the backend version management, present when git is available and the
	// install dir is a repository.
	Versions = "versions"
	// Nodes is custom node management.
	Nodes = "nodes"
	// Diagnosis is the remote log diagnosis, present when an API key is configured.
	Diagnosis = "diagnosis"
)

// Option is the result of a capability lookup.
type Option struct {
	present bool
	handle  any
}

// Present returns true when the capability was registered.
func (o Option) Present() bool { return o.present }

// Handle returns the registered handle, nil when absent.
func (o Option) Handle() any { return o.handle }

// Registry maps capability names to their handles.
type Registry struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: map[string]any{}}
}

// Register adds a capability. Registering a name twice or a nil handle fails.
func (r *Registry) Register(name string, handle any) error {
	if name == "" {
		return fmt.Errorf("capability name is required")
	}
	if handle == nil {
		return fmt.Errorf("capability %q handle is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[name]; ok {
		return fmt.Errorf("capability %q already registered", name)
	}
	r.items[name] = handle
	return nil
}

// Lookup returns the capability option for the name.
func (r *Registry) Lookup(name string) Option {
	if r == nil {
		return Option{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.items[name]
	return Option{present: ok, handle: h}
}

// Has returns true when the capability is present.
func (r *Registry) Has(name string) bool {
	return r.Lookup(name).Present()
}

// Names returns the registered capability names sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for n := range r.items {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the capability handle as T. It returns false when the capability is
// absent or its handle is not a T.
func Get[T any](r *Registry, name string) (T, bool) {
	var zero T

	o := r.Lookup(name)
	if !o.Present() {
		return zero, false
	}
	h, ok := o.handle.(T)
	if !ok {
		return zero, false
	}
	return h, true
}
