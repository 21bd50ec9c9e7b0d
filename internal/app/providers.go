package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/synergy/internal/config"
	"github.com/MrWong99/synergy/internal/resilience"
	"github.com/MrWong99/synergy/pkg/provider/llm"
	"github.com/MrWong99/synergy/pkg/provider/llm/anyllm"
	geminillm "github.com/MrWong99/synergy/pkg/provider/llm/gemini"
	openaillm "github.com/MrWong99/synergy/pkg/provider/llm/openai"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
	geminilive "github.com/MrWong99/synergy/pkg/provider/s2s/gemini"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends are the analysis providers served through any-llm-go.
var anyllmBackends = []string{"anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// RegisterBuiltinProviders wires all built-in provider factories into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── Live ──────────────────────────────────────────────────────────────────

	reg.RegisterLive("gemini-live", func(_ context.Context, entry config.ProviderEntry) (s2s.Provider, error) {
		opts := []geminilive.Option{geminilive.WithLogger(slog.Default())}
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(entry.APIKey, opts...), nil
	})

	// ── Analysis ──────────────────────────────────────────────────────────────

	reg.RegisterAnalysis("gemini", func(ctx context.Context, entry config.ProviderEntry) (llm.Generator, error) {
		var opts []geminillm.Option
		if entry.Model != "" {
			opts = append(opts, geminillm.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminillm.WithBaseURL(entry.BaseURL))
		}
		return geminillm.New(ctx, entry.APIKey, opts...)
	})

	reg.RegisterAnalysis("openai", func(_ context.Context, entry config.ProviderEntry) (llm.Generator, error) {
		var opts []openaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, openaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openaillm.WithOrganization(org))
		}
		model := entry.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return openaillm.New(entry.APIKey, model, opts...)
	})

	for _, name := range anyllmBackends {
		reg.RegisterAnalysis(name, func(_ context.Context, entry config.ProviderEntry) (llm.Generator, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	slog.Debug("registered providers",
		"live", config.ValidProviderNames["live"],
		"analysis", config.ValidProviderNames["analysis"],
	)
}

// BuildProviders instantiates the providers named in cfg. A provider that is
// not registered or fails to build is left nil; the matching features are
// then reported as disabled instead of failing startup.
func BuildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}

	if entry := cfg.Providers.Live; entry.Name != "" {
		p, err := reg.CreateLive(ctx, entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			return nil, fmt.Errorf("create live provider %q: %w", entry.Name, err)
		case err != nil:
			slog.Warn("live provider unavailable", "name", entry.Name, "err", err)
		default:
			ps.Live = p
			slog.Info("provider created", "kind", "live", "name", entry.Name)
		}
	}

	// The primary and its fallbacks form one failover chain. Entries that
	// fail to build are skipped so a missing key only removes that backend.
	entries := cfg.Providers.AnalysisFallbacks
	if cfg.Providers.Analysis.Name != "" {
		entries = append([]config.ProviderEntry{cfg.Providers.Analysis}, entries...)
	}
	var (
		primary string
		chain   *resilience.Generator
	)
	for _, entry := range entries {
		g, err := reg.CreateAnalysis(ctx, entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			return nil, fmt.Errorf("create analysis provider %q: %w", entry.Name, err)
		case err != nil:
			slog.Warn("analysis provider unavailable", "name", entry.Name, "err", err)
			continue
		}
		slog.Info("provider created", "kind", "analysis", "name", entry.Name)
		if ps.Analysis == nil {
			ps.Analysis, primary = g, entry.Name
			continue
		}
		if chain == nil {
			cb := cfg.Analysis.CircuitBreaker
			chain = resilience.NewGenerator(primary, ps.Analysis,
				resilience.WithLogger(slog.Default()),
				resilience.WithBreakerConfig(resilience.BreakerConfig{
					MaxFailures: cb.MaxFailures,
					Cooldown:    cb.Cooldown,
				}),
			)
			ps.Analysis = chain
		}
		chain.Add(entry.Name, g)
	}
	if chain != nil {
		slog.Info("analysis failover enabled", "backends", chain.Backends())
	}

	return ps, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
