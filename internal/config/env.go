package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// Environment variables consulted by [ApplyEnv].
const (
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvListenAddr   = "SYNERGY_LISTEN_ADDR"
	EnvLogLevel     = "SYNERGY_LOG_LEVEL"
)

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Variables already set are not overwritten and missing files
// are skipped. With no arguments it reads ".env" in the working directory.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %q: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv fills secrets and server overrides from the environment. API keys
// only apply when the config leaves them empty; SYNERGY_* variables always win.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if key := getenv(EnvGeminiAPIKey); key != "" && cfg.Providers.Live.APIKey == "" {
		cfg.Providers.Live.APIKey = key
	}
	fill := func(e *ProviderEntry) {
		if e.APIKey != "" {
			return
		}
		switch e.Name {
		case "gemini":
			e.APIKey = getenv(EnvGeminiAPIKey)
		case "openai":
			e.APIKey = getenv(EnvOpenAIAPIKey)
		}
	}
	fill(&cfg.Providers.Analysis)
	for i := range cfg.Providers.AnalysisFallbacks {
		fill(&cfg.Providers.AnalysisFallbacks[i])
	}
	if addr := getenv(EnvListenAddr); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if lvl := getenv(EnvLogLevel); lvl != "" {
		cfg.Server.LogLevel = LogLevel(lvl)
	}
}
