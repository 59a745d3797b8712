// ABOUTME: Thread-safe registry mapping tool names to descriptors and handlers.
// ABOUTME: Populated once at startup; reads are lock-free after that point.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTool indicates the requested tool name is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidArguments indicates a required argument is missing or empty.
var ErrInvalidArguments = errors.New("invalid arguments")

// ErrDuplicateTool indicates a tool with the same name is already registered.
var ErrDuplicateTool = errors.New("tool already registered")

// ExecutionError wraps a failure raised by a tool handler. The registry never
// lets raw handler errors escape unannotated.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Descriptor describes a tool: its name, human description, and JSON Schema
// for the accepted arguments. Immutable after registration.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Handler executes a tool call with raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

type entry struct {
	desc     Descriptor
	handler  Handler
	required []string // required string fields from the input schema
}

// Registry holds the registered tools in registration order. Registration
// happens once at startup; List and Invoke are safe for concurrent use after
// that without locking.
type Registry struct {
	order   []string
	entries map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool. Returns ErrDuplicateTool if the name already exists.
func (r *Registry) Register(desc Descriptor, handler Handler) error {
	if desc.Name == "" {
		return errors.New("tool name is required")
	}
	if handler == nil {
		return errors.New("tool handler is required")
	}
	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, desc.Name)
	}

	required, err := requiredFields(desc.InputSchema)
	if err != nil {
		return fmt.Errorf("parsing input schema for %s: %w", desc.Name, err)
	}

	r.entries[desc.Name] = &entry{desc: desc, handler: handler, required: required}
	r.order = append(r.order, desc.Name)
	return nil
}

// List returns the registered descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].desc)
	}
	return out
}

// Invoke runs the named tool with the given arguments. Required schema fields
// are validated before the handler runs.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if err := checkRequired(e.required, args); err != nil {
		return nil, err
	}

	result, err := e.handler(ctx, args)
	if err != nil {
		return nil, &ExecutionError{Tool: name, Err: err}
	}
	return result, nil
}

// requiredFields extracts the "required" field list from a JSON Schema blob.
func requiredFields(schema json.RawMessage) ([]string, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	var parsed struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		return nil, err
	}
	return parsed.Required, nil
}

// checkRequired verifies the required fields are present and, for strings,
// non-blank in the raw arguments.
func checkRequired(required []string, args json.RawMessage) error {
	if len(required) == 0 {
		return nil
	}

	var decoded map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return fmt.Errorf("%w: arguments are not a JSON object", ErrInvalidArguments)
		}
	}

	for _, field := range required {
		v, ok := decoded[field]
		if !ok || v == nil {
			return fmt.Errorf("%w: %q is required", ErrInvalidArguments, field)
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %q must not be empty", ErrInvalidArguments, field)
		}
	}
	return nil
}
