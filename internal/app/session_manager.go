package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/synergy/internal/api"
	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/observe"
	"github.com/MrWong99/synergy/internal/screening"
	"github.com/MrWong99/synergy/internal/session"
	"github.com/MrWong99/synergy/internal/tools"
	"github.com/MrWong99/synergy/pkg/audio"
	"github.com/MrWong99/synergy/pkg/audio/playback"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

// ErrNoSession is returned by [SessionManager.Stop] and
// [SessionManager.EndInterview] when no session is active.
var ErrNoSession = errors.New("app: no active session")

// Analyzer scores a finished interview. [*screening.Service] implements it.
type Analyzer interface {
	AnalyzeInterview(ctx context.Context, req screening.InterviewRequest) (screening.InterviewResult, error)
}

// SessionInfo holds metadata about an active session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// Profile is "assistant" or "interviewer".
	Profile string

	// StartedAt is when the session was started.
	StartedAt time.Time

	// User is the identity the assistant acts for. Zero for interviews.
	User hr.User

	// JobRole is the role being interviewed for. Empty for the assistant.
	JobRole string
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Provider s2s.Provider
	Source   audio.Source
	Device   playback.Device
	Store    hr.Store

	// Analyzer, when set, scores interviews ended with EndInterview.
	Analyzer Analyzer

	Settings api.VoiceSettings
	Logger   *slog.Logger
	Metrics  *observe.Metrics

	// OnStatus, OnTranscript and OnNavigate mirror the engine hooks.
	OnStatus     func(session.Status)
	OnTranscript func([]session.Turn)
	OnNavigate   func(view string)
}

// SessionManager runs voice sessions on a local microphone and speaker.
// Only one session can be active at a time. All exported methods are safe
// for concurrent use.
type SessionManager struct {
	cfg    SessionManagerConfig
	log    *slog.Logger
	engine *session.Engine

	mu     sync.Mutex
	active bool
	info   SessionInfo
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Settings.FrameSize == 0 {
		cfg.Settings = api.DefaultVoiceSettings()
	}
	sm := &SessionManager{cfg: cfg, log: cfg.Logger}

	opts := []session.Option{
		session.WithLogger(cfg.Logger),
		session.WithFrameSize(cfg.Settings.FrameSize),
		session.WithStatusHook(sm.onStatus),
		session.WithPanelCloser(sm.onPanelClose),
	}
	if cfg.OnTranscript != nil {
		opts = append(opts, session.WithTranscriptHook(cfg.OnTranscript))
	}
	if cfg.OnNavigate != nil {
		opts = append(opts, session.WithNavigateHook(cfg.OnNavigate))
	}
	if cfg.Metrics != nil {
		opts = append(opts, session.WithMetrics(cfg.Metrics))
	}
	sm.engine = session.New(cfg.Provider, cfg.Source, cfg.Device, opts...)
	return sm
}

// StartAssistant begins a general assistant session acting as the demo user
// of role.
func (sm *SessionManager) StartAssistant(ctx context.Context, role hr.Role) error {
	user, err := hr.DemoUser(ctx, sm.cfg.Store, role)
	if err != nil {
		return fmt.Errorf("app: start assistant: %w", err)
	}
	s := sm.cfg.Settings
	reg, err := tools.ForRole(user.Role, user, sm.cfg.Store, tools.WithPanelCloseDelay(s.PanelCloseDelay))
	if err != nil {
		return fmt.Errorf("app: start assistant: %w", err)
	}
	p := session.AssistantProfile(user, reg)
	override(&p, s.AssistantModel, s.AssistantVoice)

	return sm.start(ctx, p, SessionInfo{User: user})
}

// StartInterview begins an interviewer session for jobRole. Empty arguments
// fall back to the configured defaults.
func (sm *SessionManager) StartInterview(ctx context.Context, jobRole, tone, guidance string) error {
	s := sm.cfg.Settings
	if strings.TrimSpace(jobRole) == "" {
		jobRole = s.JobRole
	}
	if tone == "" {
		tone = s.Tone
	}
	t, err := session.ParseTone(tone)
	if err != nil {
		return fmt.Errorf("app: start interview: %w", err)
	}
	if strings.TrimSpace(guidance) == "" {
		guidance = s.Guidance
	}
	p := session.InterviewerProfile(jobRole, t, guidance)
	override(&p, s.InterviewerModel, s.InterviewerVoice)

	return sm.start(ctx, p, SessionInfo{JobRole: jobRole})
}

func (sm *SessionManager) start(ctx context.Context, p session.Profile, info SessionInfo) error {
	sm.mu.Lock()
	if sm.active {
		id := sm.info.SessionID
		sm.mu.Unlock()
		return fmt.Errorf("app: a session is already active (id=%s): %w", id, session.ErrActive)
	}
	info.SessionID = uuid.NewString()
	info.Profile = p.Name
	info.StartedAt = time.Now().UTC()
	sm.active = true
	sm.info = info
	sm.mu.Unlock()

	if err := sm.engine.Start(ctx, p); err != nil {
		sm.clear()
		return err
	}
	sm.log.Info("session started",
		"session_id", info.SessionID,
		"profile", info.Profile,
		"user", info.User.Name,
		"job_role", info.JobRole,
	)
	return nil
}

// Stop ends the active session without analysis.
func (sm *SessionManager) Stop() error {
	info, ok := sm.Info()
	if !ok {
		return ErrNoSession
	}
	sm.engine.Stop()
	sm.clear()
	sm.log.Info("session stopped", "session_id", info.SessionID)
	return nil
}

// EndInterview stops the active interview and, when it holds more than one
// turn and an analyzer is configured, returns its analysis. A nil result
// with a nil error means there was nothing to analyse.
func (sm *SessionManager) EndInterview(ctx context.Context) (*screening.InterviewResult, error) {
	info, ok := sm.Info()
	if !ok {
		return nil, ErrNoSession
	}
	turns := sm.engine.FlushTranscript()
	sm.engine.Stop()
	sm.clear()
	sm.log.Info("interview ended", "session_id", info.SessionID, "turns", len(turns))

	if info.JobRole == "" || len(turns) <= 1 || sm.cfg.Analyzer == nil {
		return nil, nil
	}
	res, err := sm.cfg.Analyzer.AnalyzeInterview(ctx, screening.InterviewRequest{
		JobRole:    info.JobRole,
		Transcript: turns,
	})
	if err != nil {
		return nil, fmt.Errorf("app: analyze interview: %w", err)
	}
	return &res, nil
}

// IsActive reports whether a session is currently running.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.active
}

// Info returns metadata about the active session and whether one is active.
func (sm *SessionManager) Info() (SessionInfo, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.info, sm.active
}

// Status returns the engine status.
func (sm *SessionManager) Status() session.Status {
	return sm.engine.Status()
}

// Transcript returns a copy of the current transcript.
func (sm *SessionManager) Transcript() []session.Turn {
	return sm.engine.Transcript()
}

// Close stops any session and releases the engine.
func (sm *SessionManager) Close() error {
	sm.clear()
	return sm.engine.Close()
}

func (sm *SessionManager) clear() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.active = false
	sm.info = SessionInfo{}
}

// onStatus keeps the active flag in step with sessions that end on their
// own: remote close, transport error or panel close.
func (sm *SessionManager) onStatus(st session.Status) {
	if st == session.StatusIdle || st == session.StatusError {
		sm.mu.Lock()
		if sm.active && sm.engine.Status() == st {
			sm.active = false
			sm.info = SessionInfo{}
		}
		sm.mu.Unlock()
	}
	if sm.cfg.OnStatus != nil {
		sm.cfg.OnStatus(st)
	}
}

func (sm *SessionManager) onPanelClose() {
	sm.log.Info("navigation finished, ending assistant session")
	sm.engine.Stop()
}

func override(p *session.Profile, model, voice string) {
	if model != "" {
		p.Model = model
	}
	if voice != "" {
		p.Voice = voice
	}
}
