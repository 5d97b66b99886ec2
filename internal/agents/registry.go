package agents

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector-cli/internal/model"
)

// Registry maps task types to their agents.
type Registry struct {
	agents map[model.TaskType]Agent
	order  []model.TaskType // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[model.TaskType]Agent),
	}
}

// Register adds an agent, replacing any previous agent for the same kind.
func (r *Registry) Register(a Agent) {
	kind := a.Kind()
	if _, exists := r.agents[kind]; !exists {
		r.order = append(r.order, kind)
	}
	r.agents[kind] = a
}

// Get returns the agent for a task type.
func (r *Registry) Get(kind model.TaskType) (Agent, error) {
	a, ok := r.agents[kind]
	if !ok {
		return nil, eris.Errorf("agents: no agent registered for task type %q", kind)
	}
	return a, nil
}

// Kinds returns the registered task types in registration order.
func (r *Registry) Kinds() []model.TaskType {
	out := make([]model.TaskType, len(r.order))
	copy(out, r.order)
	return out
}
