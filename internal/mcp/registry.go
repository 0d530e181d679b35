package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// ErrUnknownTool is returned by Invoke when no tool is registered under the
// requested name.
var ErrUnknownTool = errors.New("unknown tool")

// ValidationError reports arguments that do not match a tool's input schema.
type ValidationError struct {
	Tool     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// HandlerFunc is the untyped form every registered tool is reduced to.
type HandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool pairs a descriptor with its handler.
type Tool struct {
	Definition ToolDefinition
	handler    HandlerFunc
}

// NewTool registers a handler taking a typed input. Arguments are validated
// against schema, then decoded into In before fn runs.
func NewTool[In any](name, description string, schema InputSchema, fn func(ctx context.Context, in In) (string, error)) Tool {
	if schema.Type == "" {
		schema.Type = "object"
	}
	if schema.Properties == nil {
		schema.Properties = map[string]Property{}
	}
	return Tool{
		Definition: ToolDefinition{Name: name, Description: description, InputSchema: schema},
		handler: func(ctx context.Context, args map[string]any) (string, error) {
			var in In
			if err := decodeArgs(args, &in); err != nil {
				return "", &ValidationError{Tool: name, Problems: []string{err.Error()}}
			}
			return fn(ctx, in)
		},
	}
}

// Registry is the static set of tools a server advertises.
type Registry struct {
	tools  []Tool
	byName map[string]int
}

// NewRegistry builds a registry. Tool names must be non-empty and unique.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(tools))}
	for _, t := range tools {
		name := t.Definition.Name
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		if t.handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", name)
		}
		r.byName[name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Describe returns the tool descriptors in registration order.
func (r *Registry) Describe() []ToolDefinition {
	defs := make([]ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		defs[i] = t.Definition
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Definition.Name
	}
	return names
}

// Invoke validates args and runs the named tool.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	idx, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	t := r.tools[idx]
	args, err := normalizeArgs(args)
	if err != nil {
		return "", &ValidationError{Tool: name, Problems: []string{err.Error()}}
	}
	if problems := validate(t.Definition.InputSchema, args); len(problems) > 0 {
		return "", &ValidationError{Tool: name, Problems: problems}
	}
	return t.handler(ctx, args)
}

func validate(schema InputSchema, args map[string]any) []string {
	var problems []string
	for _, req := range schema.Required {
		if v, ok := args[req]; !ok || v == nil {
			problems = append(problems, fmt.Sprintf("%s is required", req))
		}
	}

	// Sorted so the problem list is deterministic.
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		prop, known := schema.Properties[k]
		v := args[k]
		if !known || v == nil {
			continue
		}
		if msg := checkType(prop, v); msg != "" {
			problems = append(problems, fmt.Sprintf("%s %s", k, msg))
			continue
		}
		if len(prop.Enum) > 0 {
			if s, _ := v.(string); !slices.Contains(prop.Enum, s) {
				problems = append(problems, fmt.Sprintf("%s must be one of %s", k, strings.Join(prop.Enum, ", ")))
			}
		}
		if n, isNum := v.(float64); isNum {
			if prop.Minimum != nil && n < *prop.Minimum {
				problems = append(problems, fmt.Sprintf("%s must be >= %g", k, *prop.Minimum))
			}
			if prop.Maximum != nil && n > *prop.Maximum {
				problems = append(problems, fmt.Sprintf("%s must be <= %g", k, *prop.Maximum))
			}
		}
	}
	return problems
}

func checkType(prop Property, v any) string {
	switch prop.Type {
	case "string":
		if _, ok := v.(string); !ok {
			return "must be a string"
		}
	case "number":
		if _, ok := v.(float64); !ok {
			return "must be a number"
		}
	case "integer":
		n, ok := v.(float64)
		if !ok || n != math.Trunc(n) {
			return "must be an integer"
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return "must be a boolean"
		}
	case "object":
		if _, ok := v.(map[string]any); !ok {
			return "must be an object"
		}
	case "array":
		if _, ok := v.([]any); !ok {
			return "must be an array"
		}
	}
	return ""
}

// normalizeArgs gives in-process callers the same value types a decoded
// JSON request would carry (float64 numbers, []any arrays).
func normalizeArgs(args map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if len(args) == 0 {
		return out, nil
	}
	if err := decodeArgs(args, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeArgs(args map[string]any, dst any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// Float is a helper for building schema bounds.
func Float(v float64) *float64 { return &v }
