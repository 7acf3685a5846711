package adapter

import (
	"fmt"
	"sync"
)

// Registry resolves adapter names to Adapter instances (§4.4).
type Registry struct {
	mu             sync.RWMutex
	adapters       map[string]Adapter
	defaultAdapter string
}

func NewRegistry(defaultAdapter string) *Registry {
	r := &Registry{adapters: map[string]Adapter{}, defaultAdapter: defaultAdapter}
	r.Register(NewClaudeCodeAdapter())
	r.Register(NewCodexAdapter())
	return r
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Resolve applies the precedence order from §4.4: explicit override →
// agent.config.adapter → platform default.
func (r *Registry) Resolve(explicitOverride, agentConfigAdapter string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := explicitOverride
	if name == "" {
		name = agentConfigAdapter
	}
	if name == "" {
		name = r.defaultAdapter
	}

	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("adapter: unknown adapter %q", name)
	}
	return a, nil
}
