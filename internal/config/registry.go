package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/synergy/pkg/provider/llm"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// LiveFactory builds a realtime speech provider from its config entry.
type LiveFactory func(ctx context.Context, entry ProviderEntry) (s2s.Provider, error)

// AnalysisFactory builds a structured-output generator from its config entry.
type AnalysisFactory func(ctx context.Context, entry ProviderEntry) (llm.Generator, error)

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	live     map[string]LiveFactory
	analysis map[string]AnalysisFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		live:     make(map[string]LiveFactory),
		analysis: make(map[string]AnalysisFactory),
	}
}

// RegisterLive registers a live provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLive(name string, factory LiveFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[name] = factory
}

// RegisterAnalysis registers an analysis generator factory under name.
func (r *Registry) RegisterAnalysis(name string, factory AnalysisFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analysis[name] = factory
}

// CreateLive instantiates a live provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if none is registered.
func (r *Registry) CreateLive(ctx context.Context, entry ProviderEntry) (s2s.Provider, error) {
	r.mu.RLock()
	factory, ok := r.live[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: live/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// CreateAnalysis instantiates an analysis generator using the factory
// registered under entry.Name.
func (r *Registry) CreateAnalysis(ctx context.Context, entry ProviderEntry) (llm.Generator, error) {
	r.mu.RLock()
	factory, ok := r.analysis[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: analysis/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}
