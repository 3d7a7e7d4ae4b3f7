// Package registry holds the resolved environment descriptors for one
// resolution run. A registry is constructed per run and discarded with it;
// it is append-only while the run lasts.
package registry

import (
	"fmt"
	"sync"

	"github.com/deploykit/envresolve/descriptor"
)

// DuplicateNameError reports an attempt to register a second environment
// under an already-taken name. The first registration stays in place.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("environment %q is already registered", e.Name)
}

// NotFoundError reports a lookup of an unknown environment name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("environment %q is not registered", e.Name)
}

// Registry is the set of resolved environments for one run. Register calls
// are serialized, so it is safe to populate from concurrent resolution
// workers.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*descriptor.Emitted
	order  []string // registration order
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*descriptor.Emitted)}
}

// Register adds a resolved environment. Returns a *DuplicateNameError if
// the name is already taken; the existing registration is untouched.
func (r *Registry) Register(d *descriptor.Emitted) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := d.Name()
	if _, exists := r.byName[name]; exists {
		return &DuplicateNameError{Name: name}
	}
	r.byName[name] = d
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the environment registered under name, or a
// *NotFoundError.
func (r *Registry) Lookup(name string) (*descriptor.Emitted, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return d, nil
}

// All returns every registered environment in registration order.
func (r *Registry) All() []*descriptor.Emitted {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*descriptor.Emitted, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered environments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
