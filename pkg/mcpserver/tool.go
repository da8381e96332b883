package mcpserver

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Tool is one callable MCP tool.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
	Handler     func(ctx context.Context, args Args) (*ToolCallResult, error)
}

// Args holds the decoded arguments of a tool call.
type Args map[string]any

// String returns the trimmed string argument name, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return strings.TrimSpace(s)
}

// RequiredString is String that fails when the argument is missing or blank.
func (a Args) RequiredString(name string) (string, error) {
	s := a.String(name)
	if s == "" {
		return "", fmt.Errorf("argument %q is required", name)
	}
	return s, nil
}

// Int returns an integer argument. JSON numbers decode as float64, so
// whole floats are accepted.
func (a Args) Int(name string, def int) (int, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("argument %q must be an integer", name)
	}
	return int(f), nil
}

// ObjectSchema builds a JSON schema for an object with the given
// properties and required names.
func ObjectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// Prop describes one schema property.
func Prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

// Middleware wraps request handling.
type Middleware func(next HandlerFunc) HandlerFunc

// HandlerFunc handles one JSON-RPC request.
type HandlerFunc func(ctx context.Context, req *Request) *Response
