// Package app wires all Synergy subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject test doubles via functional options (WithStore,
// WithListener, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/synergy/internal/api"
	"github.com/MrWong99/synergy/internal/config"
	"github.com/MrWong99/synergy/internal/health"
	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/observe"
	"github.com/MrWong99/synergy/internal/screening"
	"github.com/MrWong99/synergy/pkg/provider/llm"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	Live     s2s.Provider
	Analysis llm.Generator
}

// App owns all subsystem lifetimes of the Synergy server.
type App struct {
	cfg       *config.Config
	providers *Providers

	log      *slog.Logger
	level    *slog.LevelVar
	metrics  *observe.Metrics
	version  string
	listener net.Listener
	metricsH http.Handler

	// Subsystems, initialised in New and torn down in Shutdown.
	store    hr.Store
	screener *screening.Service
	api      *api.Server
	health   *health.Handler
	srv      *http.Server

	mu      sync.Mutex
	current *config.Config

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects an HR store instead of the built-in seeded one.
func WithStore(s hr.Store) Option {
	return func(a *App) { a.store = s }
}

// WithListener serves on l instead of listening on cfg.Server.ListenAddr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithLevelVar lets [App.Reload] change the log level of the handler built
// around v.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithMetrics records HTTP, session and provider metrics into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// WithVersion sets the version reported by the MCP endpoint.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithCloser registers fn to run during Shutdown after the HTTP server has
// stopped.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		current:   cfg,
		providers: providers,
		log:       slog.Default(),
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. HR store ──────────────────────────────────────────────────────
	if a.store == nil {
		store, err := NewStore(cfg)
		if err != nil {
			return nil, err
		}
		a.store = store
	}

	// ── 2. Screening ─────────────────────────────────────────────────────
	if err := a.initScreening(); err != nil {
		return nil, fmt.Errorf("app: init screening: %w", err)
	}

	// ── 3. HTTP API ──────────────────────────────────────────────────────
	if err := a.initAPI(ctx); err != nil {
		return nil, fmt.Errorf("app: init api: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initScreening() error {
	if a.providers.Analysis == nil {
		a.log.Warn("no analysis provider configured, resume screening and interview analysis are disabled")
		return nil
	}
	opts := []screening.Option{
		screening.WithLogger(a.log),
		screening.WithProviderName(a.cfg.Providers.Analysis.Name),
		screening.WithMaxDocumentSize(a.cfg.Analysis.MaxDocumentBytes),
		screening.WithTemperature(a.cfg.Analysis.Temperature),
	}
	if a.metrics != nil {
		opts = append(opts, screening.WithMetrics(a.metrics))
	}
	svc, err := screening.New(a.providers.Analysis, opts...)
	if err != nil {
		return err
	}
	a.screener = svc
	return nil
}

func (a *App) initAPI(ctx context.Context) error {
	if a.providers.Live == nil {
		a.log.Warn("no live provider configured, voice sessions are disabled")
	}

	apiOpts := []api.Option{
		api.WithLogger(a.log),
		api.WithAllowedOrigins(a.cfg.Server.AllowedOrigins...),
		api.WithVersion(a.version),
		api.WithAnalysisTimeout(a.cfg.Analysis.Timeout),
	}
	if a.metrics != nil {
		apiOpts = append(apiOpts, api.WithMetrics(a.metrics))
	}
	if n := a.cfg.Analysis.MaxDocumentBytes; n > 0 {
		// base64 grows by 4/3; leave room for the rest of the JSON body.
		apiOpts = append(apiOpts, api.WithMaxBodyBytes(int64(n)*4/3+64<<10))
	}

	// A nil *screening.Service must stay a nil interface.
	var screener api.Screener
	if a.screener != nil {
		screener = a.screener
	}
	a.api = api.New(a.store, screener, a.providers.Live, apiOpts...)
	a.api.SetVoiceSettings(VoiceSettings(a.cfg))

	a.health = health.New(
		health.Checker{
			Name: "store",
			Check: func(ctx context.Context) error {
				_, err := a.store.List(ctx)
				return err
			},
		},
		health.Checker{
			Name: "live_provider",
			Check: func(context.Context) error {
				if a.providers.Live == nil {
					return errors.New("not configured")
				}
				return nil
			},
		},
	)

	mux := http.NewServeMux()
	if err := a.api.Register(mux); err != nil {
		return err
	}
	a.health.Register(mux)
	if a.metricsH != nil {
		mux.Handle("GET /metrics", a.metricsH)
	}

	var handler http.Handler = mux
	if a.metrics != nil {
		handler = observe.Middleware(a.metrics)(mux)
	}

	a.srv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(a.log.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	return nil
}

// VoiceSettings maps the assistant, interviewer and audio sections of cfg
// onto bridge session defaults. Empty fields keep the built-in defaults.
func VoiceSettings(cfg *config.Config) api.VoiceSettings {
	v := api.DefaultVoiceSettings()
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&v.AssistantModel, cfg.Assistant.Model)
	set(&v.AssistantVoice, cfg.Assistant.Voice)
	set(&v.InterviewerModel, cfg.Interviewer.Model)
	set(&v.InterviewerVoice, cfg.Interviewer.Voice)
	set(&v.JobRole, cfg.Interviewer.JobRole)
	set(&v.Tone, cfg.Interviewer.Tone)
	set(&v.Guidance, cfg.Interviewer.Guidance)
	if cfg.Assistant.PanelCloseDelay > 0 {
		v.PanelCloseDelay = cfg.Assistant.PanelCloseDelay
	}
	if cfg.Audio.FrameSize > 0 {
		v.FrameSize = cfg.Audio.FrameSize
	}
	return v
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
// When ctx is done, Run returns context.Canceled (or the underlying cause);
// call Shutdown afterwards to drain connections.
func (a *App) Run(ctx context.Context) error {
	l := a.listener
	if l == nil {
		var err error
		l, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
		}
	}
	if tc := a.cfg.Server.TLS; tc != nil {
		cert, err := tls.LoadX509KeyPair(tc.CertFile, tc.KeyFile)
		if err != nil {
			_ = l.Close()
			return fmt.Errorf("app: load tls key pair: %w", err)
		}
		l = tls.NewListener(l, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.Serve(l)
	}()

	a.log.Info("app running",
		"addr", l.Addr().String(),
		"tls", a.cfg.Server.TLS != nil,
		"voice", a.providers.Live != nil,
		"analysis", a.screener != nil,
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler returns the root HTTP handler. It is what Run serves.
func (a *App) Handler() http.Handler {
	return a.srv.Handler
}

// VoiceSettings returns the session defaults new voice bridges start with.
func (a *App) VoiceSettings() api.VoiceSettings {
	return a.api.VoiceSettings()
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable parts of next: the log level and the
// voice session defaults. Changes that need a restart are logged. Analysis
// settings apply after a restart as well because the screening service is
// immutable.
func (a *App) Reload(next *config.Config) config.ConfigDiff {
	a.mu.Lock()
	prev := a.current
	a.current = next
	a.mu.Unlock()

	d := config.Diff(prev, next)
	if !d.Changed() {
		return d
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		a.log.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AssistantChanged || d.InterviewerChanged {
		v := VoiceSettings(next)
		// Audio framing is a restart-only section.
		v.FrameSize = a.api.VoiceSettings().FrameSize
		a.api.SetVoiceSettings(v)
		a.log.Info("voice defaults reloaded",
			"assistant", d.AssistantChanged,
			"interviewer", d.InterviewerChanged,
		)
	}
	restart := d.RestartRequired
	if d.AnalysisChanged {
		restart = append(restart, "analysis")
	}
	if len(restart) > 0 {
		a.log.Warn("config changes need a restart to take effect", "sections", restart)
	}
	return d
}

// SlogLevel converts a config log level to a [slog.Level]. Unknown values
// map to info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems: readiness flips to draining, open
// voice bridges are closed, the HTTP server drains, then closers run in
// order. It respects the context deadline: if ctx expires before all
// closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		a.health.SetDraining()

		if err := a.api.Shutdown(ctx); err != nil {
			a.log.Warn("closing voice bridges", "err", err)
			shutdownErr = err
		}
		if err := a.srv.Shutdown(ctx); err != nil {
			a.log.Warn("http server shutdown", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// NewStore builds the in-memory HR store, seeded from cfg.Store.SeedFile when
// set and from the built-in demo records otherwise.
func NewStore(cfg *config.Config) (*hr.MemStore, error) {
	if cfg.Store.SeedFile == "" {
		return hr.NewSeededStore(), nil
	}
	ds, err := hr.LoadDatasetFile(cfg.Store.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("app: load seed file: %w", err)
	}
	store, err := hr.NewMemStore(ds)
	if err != nil {
		return nil, fmt.Errorf("app: seed store: %w", err)
	}
	return store, nil
}
