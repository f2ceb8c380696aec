// Package tools provides the tool framework and built-in tools for the agent.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Class is the side-effect classification of a tool, used by the
// permission policy to pick defaults when no explicit rule matches.
type Class int

const (
	ClassReadOnly Class = iota // no side effects
	ClassFileEdit              // writes files under the working directory
	ClassShell                 // arbitrary command execution
	ClassWrite                 // other side effects
)

// Tool is the interface that all agent tools must implement.
type Tool interface {
	// Name returns the tool identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// Execute runs the tool with the given parameters.
	// On error, return a user-friendly message.
	Execute(ctx context.Context, params map[string]any, ec *ExecContext) (string, error)
}

// ClassedTool is an optional interface for tools that declare a class.
type ClassedTool interface {
	Tool
	Class() Class
}

// ExecContext carries per-invocation collaborators into a tool.
type ExecContext struct {
	// WorkDir is the directory tool side effects should stay under.
	WorkDir string
	// AskUser resolves a human-in-the-loop question. May be nil.
	AskUser func(ctx context.Context, question string) (string, error)
}

// ToolClass returns the class for a tool. Tools that do not declare one
// are treated as write-class so the policy asks before running them.
func ToolClass(t Tool) Class {
	if ct, ok := t.(ClassedTool); ok {
		return ct.Class()
	}
	return ClassWrite
}

// Registry manages tool registration and lookup.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Registering a name twice
// overwrites the earlier tool; last write wins.
func (r *Registry) Register(tool Tool) {
	if _, exists := r.tools[tool.Name()]; exists {
		slog.Info("Tool re-registered, overwriting", "name", tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all registered tools in name order.
func (r *Registry) List() []Tool {
	names := r.Names()
	result := make([]Tool, 0, len(names))
	for _, name := range names {
		result = append(result, r.tools[name])
	}
	return result
}

// Subset returns a new registry containing only the named tools.
// Unknown names are skipped.
func (r *Registry) Subset(names []string) *Registry {
	sub := NewRegistry()
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			sub.tools[name] = tool
		}
	}
	return sub
}

// Without returns a new registry excluding the named tools.
func (r *Registry) Without(names []string) *Registry {
	excluded := make(map[string]bool, len(names))
	for _, name := range names {
		excluded[name] = true
	}
	sub := NewRegistry()
	for name, tool := range r.tools {
		if !excluded[name] {
			sub.tools[name] = tool
		}
	}
	return sub
}

// Definitions returns tool definitions in OpenAI function format,
// in name order.
func (r *Registry) Definitions() []map[string]any {
	result := make([]map[string]any, 0, len(r.tools))
	for _, tool := range r.List() {
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			},
		})
	}
	return result
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// RequireString extracts a required string parameter.
func RequireString(params map[string]any, key string) (string, error) {
	s := GetString(params, key, "")
	if s == "" {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}
	return s, nil
}
