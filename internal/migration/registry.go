// ABOUTME: Ordered registry of migration operations supplied by plugins
// ABOUTME: Registration order is execution order and is never changed

package migration

import (
	"fmt"
	"sync"
)

// Registry collects operations in registration order
type Registry struct {
	mu    sync.RWMutex
	ops   []Operation
	names map[string]bool
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// DefaultRegistry is where plugin packages register their operations from init
var DefaultRegistry = NewRegistry()

// Register appends op. Names must be unique.
func (r *Registry) Register(op Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op.Name == "" {
		return ErrUnnamedOperation
	}
	if r.names[op.Name] {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, op.Name)
	}
	r.names[op.Name] = true
	r.ops = append(r.ops, op)
	return nil
}

// MustRegister is Register that panics on error, for use from init
func (r *Registry) MustRegister(op Operation) {
	if err := r.Register(op); err != nil {
		panic(err)
	}
}

// Operations returns the registered operations in order
func (r *Registry) Operations() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Operation(nil), r.ops...)
}

// Len returns the number of registered operations
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}
