// Package tool provides the capability contract and the tool registry.
//
// A Registry is populated once at startup and read concurrently by every
// request afterwards.
package tool

import (
	"context"
	"sync"
)

// Tool is a named capability the model may request.
type Tool interface {
	// Name returns the tool's unique identifier.
	Name() string

	// Description returns what the tool does, written for the model.
	Description() string

	// Parameters returns the declared parameters in declaration order.
	Parameters() []Parameter

	// Execute runs the tool with the parsed arguments.
	// A non-nil error is a failed execution; error-shaped maps are valid results.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Registry maps tool names to tools and remembers registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Registering a name twice replaces
// the earlier tool and keeps its original position.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// All returns all registered tools in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// GetByNames returns the named tools in the order requested.
// Unknown names are skipped.
func (r *Registry) GetByNames(names []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			tools = append(tools, t)
		}
	}
	return tools
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Descriptors returns the descriptor of every tool in registration order.
func (r *Registry) Descriptors() []Descriptor {
	tools := r.All()
	out := make([]Descriptor, len(tools))
	for i, t := range tools {
		out[i] = Describe(t)
	}
	return out
}
