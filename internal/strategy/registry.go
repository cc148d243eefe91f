package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/quantbench/internal/core"
)

// Registry holds the configured simulators by name.
type Registry struct {
	mu         sync.RWMutex
	simulators map[string]Simulator
}

// NewRegistry creates an empty registry, optionally seeded with simulators.
func NewRegistry(sims ...Simulator) *Registry {
	r := &Registry{simulators: make(map[string]Simulator)}
	for _, s := range sims {
		r.Register(s)
	}
	return r
}

// Register adds a simulator, replacing any with the same name.
func (r *Registry) Register(s Simulator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simulators[s.Name()] = s
}

// Get retrieves a simulator by name
func (r *Registry) Get(name string) (Simulator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.simulators[name]
	if !ok {
		return nil, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("%q", name))
	}
	return s, nil
}

// GetAll returns all registered simulators ordered by name.
func (r *Registry) GetAll() []Simulator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Simulator, 0, len(r.simulators))
	for _, s := range r.simulators {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Names lists the registered simulator names in order.
func (r *Registry) Names() []string {
	all := r.GetAll()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name()
	}
	return names
}
