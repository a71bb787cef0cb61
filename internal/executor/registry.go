package executor

import "sync"

// Registry resolves an executor_type string to its Adapter, falling
// back to Unknown for unrecognized types (§4.3).
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns a Registry pre-populated with the built-in
// adapters (CodingAgent default, ClaudePlan, SetupScript).
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	r.Register(TypeCodingAgent, NewCodingAgentAdapter(""))
	r.Register(TypeClaudePlan, NewClaudePlanAdapter())
	r.Register(TypeSetupScript, NewSetupScriptAdapter(""))
	return r
}

// Register adds or replaces the adapter for executorType.
func (r *Registry) Register(executorType string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[executorType] = a
}

// Resolve returns the adapter for executorType, or the opaque Unknown
// fallback if no adapter is registered for it.
func (r *Registry) Resolve(executorType string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.adapters[executorType]; ok {
		return a
	}
	return UnknownAdapter{}
}
