package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/synergy/pkg/provider/llm"
)

// ErrAllFailed is returned when no backend of a [Generator] produced an
// answer. It wraps the last backend error.
var ErrAllFailed = errors.New("resilience: all analysis backends failed")

// Compile-time interface assertion.
var _ llm.Generator = (*Generator)(nil)

type backend struct {
	name    string
	gen     llm.Generator
	breaker *Breaker
}

// Generator implements [llm.Generator] on top of an ordered list of backends.
// Each request goes to the first backend whose breaker admits it; on error
// the next one is tried.
type Generator struct {
	cfg      BreakerConfig
	log      *slog.Logger
	backends []backend
}

// GeneratorOption is a functional option for [NewGenerator].
type GeneratorOption func(*Generator)

// WithBreakerConfig sets the breaker tuning used for every backend. The
// Name field is ignored.
func WithBreakerConfig(cfg BreakerConfig) GeneratorOption {
	return func(g *Generator) { g.cfg = cfg }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.log = l }
}

// NewGenerator creates a Generator whose preferred backend is primary.
func NewGenerator(name string, primary llm.Generator, opts ...GeneratorOption) *Generator {
	g := &Generator{log: slog.Default()}
	for _, o := range opts {
		o(g)
	}
	if g.cfg.Logger == nil {
		g.cfg.Logger = g.log
	}
	g.Add(name, primary)
	return g
}

// Add appends a fallback backend. Backends are tried in the order added.
// Add must not be called concurrently with GenerateJSON.
func (g *Generator) Add(name string, gen llm.Generator) {
	cfg := g.cfg
	cfg.Name = name
	g.backends = append(g.backends, backend{name: name, gen: gen, breaker: NewBreaker(cfg)})
}

// Backends returns the backend names in failover order.
func (g *Generator) Backends() []string {
	out := make([]string, len(g.backends))
	for i, b := range g.backends {
		out[i] = b.name
	}
	return out
}

// GenerateJSON implements [llm.Generator]. It stops early when ctx ends;
// otherwise every backend gets one attempt. The returned error wraps
// [ErrAllFailed] and the last backend error, so callers can still match
// causes like [llm.ErrUnsupportedDocument].
func (g *Generator) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	var lastErr error
	for _, b := range g.backends {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var out string
		err := b.breaker.Do(func() error {
			var err error
			out, err = b.gen.GenerateJSON(ctx, req)
			return err
		})
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			g.log.Debug("skipping analysis backend, circuit open", "backend", b.name)
			continue
		}
		g.log.Warn("analysis backend failed, trying next", "backend", b.name, "err", err)
	}
	return "", fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
