// Package tool implements the function calling subsystem that lets the agent
// invoke structured capabilities (search, retrieval, generation) with schema
// validated arguments and consistent error handling.
package tool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/loupehq/loupe/core"
)

// Tool is a named external capability callable with structured input.
//
// Implementations should provide clear, descriptive names and descriptions
// (both are shown to the model), define a proper JSON schema for parameters,
// and surface remote-service failures as errors rather than panicking. Tools
// must not hold shared mutable state: each Call is an independent
// request/response exchange.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with already-decoded arguments. Errors are
	// turned into observations by the agent loop, never fatal conditions.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ErrUnknownTool is returned by Registry.Resolve when the model names a tool
// that was never registered.
var ErrUnknownTool = errors.New("unknown tool")

// Error represents a failure during tool execution with a code for
// categorization.
type Error struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewError creates an Error with the given details.
func NewError(tool, message, code string) *Error {
	return &Error{Tool: tool, Message: message, Code: code}
}

// Registry is the fixed set of tools available to the agent, resolved by
// name. Tools are registered once at startup; the registry is safe for
// concurrent reads afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs a registry holding the given tools. Later
// registrations with the same name overwrite earlier ones.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Resolve returns the named tool or ErrUnknownTool.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// All returns the registered tools keyed by name as a shallow copy.
func (r *Registry) All() map[string]Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Tool, len(r.tools))
	for name, t := range r.tools {
		out[name] = t
	}
	return out
}
