package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AssistantChanged is set when voice, model, or panel timing of the
	// general assistant changed. New sessions pick up the change.
	AssistantChanged bool

	// InterviewerChanged is set when any interviewer default changed.
	InterviewerChanged bool

	// AnalysisChanged is set when temperature or document limits changed.
	AnalysisChanged bool

	// RestartRequired lists changed sections that only take effect after a
	// restart (listen address, providers, audio).
	RestartRequired []string
}

// Changed reports whether d carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.AssistantChanged || d.InterviewerChanged ||
		d.AnalysisChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.AssistantChanged = old.Assistant != new.Assistant
	d.InterviewerChanged = old.Interviewer != new.Interviewer
	d.AnalysisChanged = old.Analysis != new.Analysis

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !sameEntry(old.Providers.Live, new.Providers.Live) {
		d.RestartRequired = append(d.RestartRequired, "providers.live")
	}
	if !sameEntry(old.Providers.Analysis, new.Providers.Analysis) {
		d.RestartRequired = append(d.RestartRequired, "providers.analysis")
	}
	if !slices.EqualFunc(old.Providers.AnalysisFallbacks, new.Providers.AnalysisFallbacks, sameEntry) {
		d.RestartRequired = append(d.RestartRequired, "providers.analysis_fallbacks")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	return d
}

// sameEntry compares the scalar fields of two entries; Options are ignored.
func sameEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
