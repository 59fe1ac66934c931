package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nomadai/concierge/internal/llmtypes"
)

// Tool is the interface that all tools must implement
type Tool interface {
	// Name returns the tool name
	Name() string

	// Description returns a description of what the tool does
	Description() string

	// Parameters returns the JSON schema for the tool's parameters
	Parameters() map[string]interface{}

	// Execute runs the tool with validated arguments. The result is
	// rendered to text for the reasoning model.
	Execute(ctx context.Context, args Args) (interface{}, error)
}

// ConcurrencySafe is implemented by tools whose handlers touch no shared
// mutable state and may run alongside other calls in the same batch.
type ConcurrencySafe interface {
	ConcurrencySafe() bool
}

// IsConcurrencySafe reports whether t declared itself safe to parallelize
func IsConcurrencySafe(t Tool) bool {
	cs, ok := t.(ConcurrencySafe)
	return ok && cs.ConcurrencySafe()
}

// HandlerFunc is the function form of Tool.Execute
type HandlerFunc func(ctx context.Context, args Args) (interface{}, error)

// Definition builds a Tool from plain values
type Definition struct {
	ToolName   string
	Summary    string
	Schema     map[string]interface{}
	Handler    HandlerFunc
	Concurrent bool
}

// Name returns the tool name
func (d *Definition) Name() string { return d.ToolName }

// Description returns the tool description
func (d *Definition) Description() string { return d.Summary }

// Parameters returns the JSON schema for the tool parameters
func (d *Definition) Parameters() map[string]interface{} { return d.Schema }

// Execute calls the handler
func (d *Definition) Execute(ctx context.Context, args Args) (interface{}, error) {
	if d.Handler == nil {
		return nil, fmt.Errorf("tool %s has no handler", d.ToolName)
	}
	return d.Handler(ctx, args)
}

// ConcurrencySafe reports the declared concurrency safety
func (d *Definition) ConcurrencySafe() bool { return d.Concurrent }

// Advertise converts a tool to the catalog form sent to the reasoning model
func Advertise(t Tool) llmtypes.ToolDefinition {
	return llmtypes.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// Args are the decoded tool-call arguments
type Args map[string]interface{}

// String returns a trimmed string argument or def
func (a Args) String(key, def string) string {
	switch v := a[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case fmt.Stringer:
		return v.String()
	}
	return def
}

// Int returns an integer argument or def, accepting JSON numbers and numeric strings
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

// Float returns a numeric argument or def
func (a Args) Float(key string, def float64) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// Strings returns a string-list argument. A single string is split on commas.
func (a Args) Strings(key string) []string {
	var out []string
	switch v := a[key].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

// object builds an object schema
func object(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// prop builds a property schema
func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

// enumProp builds a string property restricted to values
func enumProp(description string, values ...string) map[string]interface{} {
	p := prop("string", description)
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	p["enum"] = enum
	return p
}
