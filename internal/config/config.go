// Package config provides the configuration schema, loader, hot-reload
// watcher, and provider registry for the Synergy server.
package config

import "time"

// LogLevel controls log verbosity for the Synergy server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Synergy.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Assistant   AssistantConfig   `yaml:"assistant"`
	Interviewer InterviewerConfig `yaml:"interviewer"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Audio       AudioConfig       `yaml:"audio"`
	Store       StoreConfig       `yaml:"store"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// AllowedOrigins lists browser origins permitted to open voice bridge
	// WebSockets. Empty allows same-origin requests only; "*" allows any.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// ShutdownTimeout bounds graceful shutdown. Defaults to 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the backend for each model-facing concern.
type ProvidersConfig struct {
	// Live is the realtime speech-to-speech backend used by voice sessions.
	Live ProviderEntry `yaml:"live"`

	// Analysis is the structured-output backend for resume screening and
	// interview analysis.
	Analysis ProviderEntry `yaml:"analysis"`

	// AnalysisFallbacks are tried in order when Analysis fails or its
	// circuit is open.
	AnalysisFallbacks []ProviderEntry `yaml:"analysis_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// AssistantConfig tunes the general voice assistant.
type AssistantConfig struct {
	// Model overrides the live model for assistant sessions.
	Model string `yaml:"model"`

	// Voice is the prebuilt voice name. Defaults to "Zephyr".
	Voice string `yaml:"voice"`

	// PanelCloseDelay is how long after a navigation the panel closes.
	PanelCloseDelay time.Duration `yaml:"panel_close_delay"`
}

// InterviewerConfig holds defaults for interview sessions. Each field can be
// overridden per session by the client.
type InterviewerConfig struct {
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	JobRole  string `yaml:"job_role"`
	Tone     string `yaml:"tone"`
	Guidance string `yaml:"guidance"`
}

// AnalysisConfig tunes resume screening and interview analysis.
type AnalysisConfig struct {
	// Temperature is passed to the analysis model. Zero leaves the provider default.
	Temperature float64 `yaml:"temperature"`

	// MaxDocumentBytes caps decoded resume uploads.
	MaxDocumentBytes int `yaml:"max_document_bytes"`

	// Timeout bounds one analysis call. Defaults to 60s.
	Timeout time.Duration `yaml:"timeout"`

	// CircuitBreaker tunes failover between analysis backends. Only used
	// when fallbacks are configured.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the per-backend circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens a circuit.
	MaxFailures int `yaml:"max_failures"`

	// Cooldown is how long an open circuit rejects calls before probing.
	Cooldown time.Duration `yaml:"cooldown"`
}

// AudioConfig controls microphone framing and local devices.
type AudioConfig struct {
	// FrameSize is the number of 16 kHz samples per outbound frame.
	FrameSize int `yaml:"frame_size"`

	// CaptureRate is the sample rate requested from a local microphone.
	CaptureRate int `yaml:"capture_rate"`
}

// StoreConfig selects the data the in-memory HR store starts with.
type StoreConfig struct {
	// SeedFile is a YAML dataset loaded at startup. Empty uses the built-in
	// demo records.
	SeedFile string `yaml:"seed_file"`
}
