// Package tools defines the role-scoped function registry offered to the
// voice model, and the HR tools themselves.
//
// A [Registry] is built once per session from the current user's role (see
// [ForRole]). Its declarations and its handlers derive from the same slice of
// [Tool] values, so the set the model is told about always equals the set
// that can be executed.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

// ErrUnknownTool is returned by [Registry.Execute] for a name that is not
// registered.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Effects are UI side effects a tool asks the session owner to perform after
// the result has been returned to the model.
type Effects struct {
	// Navigate names the view the UI should switch to. Empty means none.
	Navigate string

	// ClosePanelAfter, when positive, requests the assistant panel be closed
	// after this delay so the user still hears the confirmation.
	ClosePanelAfter time.Duration
}

// Result is the outcome of one tool invocation.
type Result struct {
	// Response is the JSON-compatible object handed back to the model.
	Response map[string]any

	// Effects are optional UI side effects.
	Effects Effects
}

// Handler executes one tool call. args is the decoded argument object sent
// by the model; it may be nil. Business failures (employee not found, ...)
// are reported inside Response and never as an error.
type Handler func(ctx context.Context, args map[string]any) (Result, error)

// Tool couples a model-facing declaration with its handler.
type Tool struct {
	Declaration s2s.ToolDeclaration
	Handler     Handler
}

// Registry is an immutable set of tools. A nil *Registry is valid and empty.
type Registry struct {
	tools []Tool
	index map[string]int
}

// NewRegistry validates tools and returns a registry holding them in order.
// An empty name, a nil handler or a duplicate name is a configuration error.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make([]Tool, 0, len(tools)),
		index: make(map[string]int, len(tools)),
	}
	for i, t := range tools {
		name := t.Declaration.Name
		if name == "" {
			return nil, fmt.Errorf("tools: tool[%d]: name must not be empty", i)
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tools: tool %q: handler must not be nil", name)
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("tools: tool %q registered twice", name)
		}
		r.index[name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tools)
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Declaration.Name
	}
	return out
}

// Declarations returns the model-facing declarations in registration order.
func (r *Registry) Declarations() []s2s.ToolDeclaration {
	if r == nil || len(r.tools) == 0 {
		return nil
	}
	out := make([]s2s.ToolDeclaration, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Declaration
	}
	return out
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return Tool{}, false
	}
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Execute runs the named tool. It returns [ErrUnknownTool] when name is not
// registered.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	res, err := t.Handler(ctx, args)
	if err != nil {
		return Result{}, fmt.Errorf("tools: %s: %w", name, err)
	}
	return res, nil
}
