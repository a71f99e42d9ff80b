package mcp

import (
	"sync"

	"github.com/oxhq/ols-mcp/mcp/types"
)

// BaseRegistry is a thread-safe name-keyed registry that remembers
// registration order.
type BaseRegistry[T any] struct {
	mu         sync.RWMutex
	components map[string]T
	ordered    []string
}

// NewBaseRegistry creates an empty registry
func NewBaseRegistry[T any]() *BaseRegistry[T] {
	return &BaseRegistry[T]{
		components: make(map[string]T),
	}
}

// Register adds or replaces a component. Replacing keeps the original
// position.
func (r *BaseRegistry[T]) Register(name string, component T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[name]; !exists {
		r.ordered = append(r.ordered, name)
	}
	r.components[name] = component
}

// Get retrieves a component by name
func (r *BaseRegistry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	component, exists := r.components[name]
	return component, exists
}

// List returns all components in registration order
func (r *BaseRegistry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]T, 0, len(r.ordered))
	for _, name := range r.ordered {
		result = append(result, r.components[name])
	}
	return result
}

// Names returns all component names in registration order
func (r *BaseRegistry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.ordered))
	copy(result, r.ordered)
	return result
}

// ToolDefinition is a tool as advertised by tools/list.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolRegistry holds the server's tools.
type ToolRegistry struct {
	*BaseRegistry[types.Tool]
}

// NewToolRegistry creates an empty tool registry
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{BaseRegistry: NewBaseRegistry[types.Tool]()}
}

// Add registers a tool under its own name
func (r *ToolRegistry) Add(tool types.Tool) {
	r.Register(tool.Name(), tool)
}

// Definitions returns the tools/list payload entries
func (r *ToolRegistry) Definitions() []ToolDefinition {
	tools := r.List()
	defs := make([]ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	return defs
}
