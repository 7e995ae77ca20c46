package checker

import (
	"fmt"
	"sync"
)

// Factory builds a checker from its dependencies
type Factory func(deps Deps) Checker

// Registry maps checker kinds to factories. The host builds it explicitly at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the disk, git and remote checkers
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(KindDisk, func(deps Deps) Checker { return NewDiskChecker(deps) })
	_ = r.Register(KindGit, func(deps Deps) Checker { return NewGitChecker(deps) })
	_ = r.Register(KindRemote, func(deps Deps) Checker { return NewRemoteChecker(deps) })
	return r
}

// Register adds a factory for kind. Registering a kind twice is an error.
func (r *Registry) Register(kind string, factory Factory) error {
	if kind == "" || factory == nil {
		return fmt.Errorf("checker kind and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("checker kind '%s' already registered", kind)
	}
	r.factories[kind] = factory
	r.order = append(r.order, kind)
	return nil
}

// Kinds returns registered kinds in registration order
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Build constructs one checker per requested kind, or every registered kind when none is given
func (r *Registry) Build(deps Deps, kinds ...string) ([]Checker, error) {
	if len(kinds) == 0 {
		kinds = r.Kinds()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	checkers := make([]Checker, 0, len(kinds))
	for _, kind := range kinds {
		factory, ok := r.factories[kind]
		if !ok {
			return nil, fmt.Errorf("unknown checker kind '%s'", kind)
		}
		checkers = append(checkers, factory(deps))
	}
	return checkers, nil
}
