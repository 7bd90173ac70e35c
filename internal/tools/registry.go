package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/goclaw/internal/providers"
)

// Registry is the mapping from tool name to a callable with declared
// JSON-schema-lite parameters and a stringly-typed result envelope.
// Registration happens at startup and, for MCP-bridged tools, inside a
// scoped connection lifetime; lookups are read-mostly.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Unregister removes a tool by name. Used by the MCP scope guard on
// server disconnect and by SubagentManager when building an isolated
// registry copy.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetDefinitions returns the OpenAI-style function-tool definitions for
// every registered tool, for passing to LLMProvider.Chat.
func (r *Registry) GetDefinitions() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providers.ToolDefinition, 0, len(r.tools))
	for _, name := range r.sortedNamesLocked() {
		t := r.tools[name]
		defs = append(defs, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionSchema{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute validates args against the tool's declared schema, then
// dispatches. Validation failure never invokes the tool: it returns
// "Invalid parameters: ..." directly. A missing tool returns
// "Tool not found: <name>". Execute itself never panics past this point —
// Tool implementations are expected to catch their own internal errors and
// report them through the Result envelope.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *Result {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("Tool not found: %s", name))
	}
	if err := validate(t.Parameters(), args); err != nil {
		return ErrorResult(fmt.Sprintf("Invalid parameters: %s", err))
	}
	return t.Execute(ctx, args)
}
