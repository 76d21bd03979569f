package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rahul/stepwright/internal/schema"
)

// Tool defines the interface for all agent capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, input string) (string, error)
}

// Registry manages the set of available tools.
type Registry struct {
	Tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		Tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	r.Tools[t.Name()] = t
}

func (r *Registry) Get(name string) Tool {
	return r.Tools[name]
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.Tools))
	for _, t := range r.Tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Describers adapts the registered tools for schema.FromTools.
func (r *Registry) Describers() []schema.Describer {
	list := r.List()
	out := make([]schema.Describer, len(list))
	for i, t := range list {
		out[i] = t
	}
	return out
}

func decodeArgs(input string, v any) error {
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (output truncated) ..."
}
