package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/synergy/internal/screening"
	"github.com/MrWong99/synergy/internal/session"
	"github.com/MrWong99/synergy/internal/tools"
)

// Defaults applied by [LoadFromReader] to fields left empty.
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultLiveProvider    = "gemini-live"
	DefaultAnalysis        = "gemini"
	DefaultAnalysisTimeout = 60 * time.Second
	DefaultCaptureRate     = 16000
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"live":     {"gemini-live"},
	"analysis": {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// parse is the shared decode path of [Load] and the [Watcher].
func parse(data []byte) (*Config, error) {
	cfg, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, os.Getenv)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Environment overrides are not applied. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	setDefault(&cfg.Server.ListenAddr, DefaultListenAddr)
	setDefault(&cfg.Server.LogLevel, LogInfo)
	setDefault(&cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)

	setDefault(&cfg.Providers.Live.Name, DefaultLiveProvider)
	setDefault(&cfg.Providers.Analysis.Name, DefaultAnalysis)

	setDefault(&cfg.Assistant.Voice, session.DefaultVoice)
	setDefault(&cfg.Assistant.PanelCloseDelay, tools.DefaultPanelCloseDelay)

	setDefault(&cfg.Interviewer.Voice, session.DefaultVoice)
	setDefault(&cfg.Interviewer.JobRole, session.DefaultJobRole)
	setDefault(&cfg.Interviewer.Tone, string(session.ToneFriendly))
	setDefault(&cfg.Interviewer.Guidance, session.DefaultInterviewerGuidance)

	setDefault(&cfg.Analysis.MaxDocumentBytes, screening.DefaultMaxDocumentSize)
	setDefault(&cfg.Analysis.Timeout, DefaultAnalysisTimeout)

	setDefault(&cfg.Audio.FrameSize, session.DefaultFrameSize)
	setDefault(&cfg.Audio.CaptureRate, DefaultCaptureRate)
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %v must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Providers
	validateProviderName("live", cfg.Providers.Live.Name)
	validateProviderName("analysis", cfg.Providers.Analysis.Name)
	for i, fb := range cfg.Providers.AnalysisFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.analysis_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("analysis", fb.Name)
	}
	if cfg.Providers.Live.APIKey == "" {
		slog.Warn("providers.live.api_key is empty; voice sessions will fail to connect")
	}

	// Assistant
	if cfg.Assistant.PanelCloseDelay < 0 {
		errs = append(errs, fmt.Errorf("assistant.panel_close_delay %v must not be negative", cfg.Assistant.PanelCloseDelay))
	}

	// Interviewer
	if cfg.Interviewer.Tone != "" {
		if _, err := session.ParseTone(cfg.Interviewer.Tone); err != nil {
			errs = append(errs, fmt.Errorf("interviewer.tone %q is invalid; valid values: %v", cfg.Interviewer.Tone, session.Tones))
		}
	}

	// Analysis
	if cfg.Analysis.Temperature < 0 || cfg.Analysis.Temperature > 2 {
		errs = append(errs, fmt.Errorf("analysis.temperature %.2f is out of range [0, 2]", cfg.Analysis.Temperature))
	}
	if cfg.Analysis.MaxDocumentBytes < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_document_bytes %d must not be negative", cfg.Analysis.MaxDocumentBytes))
	}
	if cb := cfg.Analysis.CircuitBreaker; cb.MaxFailures < 0 || cb.Cooldown < 0 {
		errs = append(errs, errors.New("analysis.circuit_breaker values must not be negative"))
	}
	if cfg.Analysis.Timeout < 0 {
		errs = append(errs, fmt.Errorf("analysis.timeout %v must not be negative", cfg.Analysis.Timeout))
	}

	// Audio
	if cfg.Audio.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must not be negative", cfg.Audio.FrameSize))
	}
	if cfg.Audio.CaptureRate < 0 || (cfg.Audio.CaptureRate > 0 && cfg.Audio.CaptureRate < 8000) {
		errs = append(errs, fmt.Errorf("audio.capture_rate %d is out of range; must be at least 8000", cfg.Audio.CaptureRate))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
