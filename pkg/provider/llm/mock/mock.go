// Package mock provides a test double for the llm.Generator interface.
//
// Use Generator in unit tests to verify the requests a service sends and to
// feed canned JSON answers without a live backend.
//
// Example:
//
//	g := &mock.Generator{Response: `{"overallScore": 80}`}
//	out, err := g.GenerateJSON(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/synergy/pkg/provider/llm"
)

// GenerateCall records a single invocation of GenerateJSON.
type GenerateCall struct {
	// Ctx is the context passed to GenerateJSON.
	Ctx context.Context
	// Req is the Request passed to GenerateJSON.
	Req llm.Request
}

// Generator is a mock implementation of llm.Generator.
type Generator struct {
	mu sync.Mutex

	// Response is returned from every GenerateJSON call.
	Response string

	// Err, if non-nil, is returned instead of Response.
	Err error

	// Calls records every call to GenerateJSON in order.
	Calls []GenerateCall
}

// Ensure Generator implements llm.Generator at compile time.
var _ llm.Generator = (*Generator)(nil)

// GenerateJSON records the call and returns the configured answer.
func (g *Generator) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, GenerateCall{Ctx: ctx, Req: req})
	if g.Err != nil {
		return "", g.Err
	}
	return g.Response, nil
}

// CallCount returns the number of GenerateJSON invocations. Thread-safe.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

// LastRequest returns the Request of the most recent call.
func (g *Generator) LastRequest() llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Calls) == 0 {
		return llm.Request{}
	}
	return g.Calls[len(g.Calls)-1].Req
}
