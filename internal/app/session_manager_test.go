package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/synergy/internal/api"
	"github.com/MrWong99/synergy/internal/app"
	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/screening"
	"github.com/MrWong99/synergy/internal/session"
	"github.com/MrWong99/synergy/pkg/audio"
	playmock "github.com/MrWong99/synergy/pkg/audio/playback/mock"
	llmmock "github.com/MrWong99/synergy/pkg/provider/llm/mock"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
	s2smock "github.com/MrWong99/synergy/pkg/provider/s2s/mock"
)

type smEnv struct {
	sm   *app.SessionManager
	prov *s2smock.Provider
	src  *audio.ChanSource
	gen  *llmmock.Generator

	mu       sync.Mutex
	statuses []session.Status
}

func (e *smEnv) sawStatus(st session.Status) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.statuses {
		if s == st {
			return true
		}
	}
	return false
}

func newSMEnv(t *testing.T) *smEnv {
	t.Helper()
	env := &smEnv{
		prov: &s2smock.Provider{AutoOpen: true},
		src:  audio.NewChanSource(16000),
		gen: &llmmock.Generator{Response: `{"isQualified":true,"overallScore":72,"summary":"Fine.",` +
			`"strengths":["clarity"],"weaknesses":[],"recommendation":"Proceed to next round"}`},
	}
	svc, err := screening.New(env.gen)
	if err != nil {
		t.Fatalf("screening.New: %v", err)
	}
	settings := api.DefaultVoiceSettings()
	settings.PanelCloseDelay = 10 * time.Millisecond

	env.sm = app.NewSessionManager(app.SessionManagerConfig{
		Provider: env.prov,
		Source:   env.src,
		Device:   &playmock.Device{},
		Store:    hr.NewSeededStore(),
		Analyzer: svc,
		Settings: settings,
		OnStatus: func(st session.Status) {
			env.mu.Lock()
			env.statuses = append(env.statuses, st)
			env.mu.Unlock()
		},
	})
	t.Cleanup(func() { _ = env.sm.Close() })
	return env
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionManager_StartAssistant(t *testing.T) {
	t.Parallel()
	env := newSMEnv(t)
	ctx := context.Background()

	if err := env.sm.StartAssistant(ctx, hr.RoleAdmin); err != nil {
		t.Fatalf("StartAssistant: %v", err)
	}
	info, ok := env.sm.Info()
	if !ok || !env.sm.IsActive() {
		t.Fatal("expected an active session after StartAssistant")
	}
	if info.Profile != "assistant" {
		t.Errorf("Profile: got %q, want assistant", info.Profile)
	}
	if info.User.Name != "Jane Smith" {
		t.Errorf("User: got %q, want Jane Smith", info.User.Name)
	}
	if _, err := uuid.Parse(info.SessionID); err != nil {
		t.Errorf("SessionID %q is not a UUID: %v", info.SessionID, err)
	}
	if info.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}

	cfg := env.prov.LastConfig()
	if len(cfg.Tools) == 0 {
		t.Error("assistant session declared no tools")
	}
	if !strings.Contains(cfg.SystemInstruction, "Jane") {
		t.Errorf("system instruction does not greet the user:\n%s", cfg.SystemInstruction)
	}
	eventually(t, "listening", func() bool { return env.sm.Status() == session.StatusListening })

	if err := env.sm.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if env.sm.IsActive() {
		t.Error("still active after Stop")
	}
	eventually(t, "transport close", env.prov.LastSession().Closed)
}

func TestSessionManager_DoubleStart(t *testing.T) {
	t.Parallel()
	env := newSMEnv(t)
	ctx := context.Background()

	if err := env.sm.StartInterview(ctx, "", "", ""); err != nil {
		t.Fatalf("StartInterview: %v", err)
	}
	err := env.sm.StartAssistant(ctx, hr.RoleHR)
	if !errors.Is(err, session.ErrActive) {
		t.Fatalf("second start: got %v, want ErrActive", err)
	}
	if n := env.prov.ConnectCallCount(); n != 1 {
		t.Errorf("connects: got %d, want 1", n)
	}
	if info, _ := env.sm.Info(); info.Profile != "interviewer" {
		t.Errorf("active profile changed to %q", info.Profile)
	}
}

func TestSessionManager_NoSession(t *testing.T) {
	t.Parallel()
	env := newSMEnv(t)

	if err := env.sm.Stop(); !errors.Is(err, app.ErrNoSession) {
		t.Errorf("Stop: got %v, want ErrNoSession", err)
	}
	if _, err := env.sm.EndInterview(context.Background()); !errors.Is(err, app.ErrNoSession) {
		t.Errorf("EndInterview: got %v, want ErrNoSession", err)
	}
}

func TestSessionManager_StartInterviewInvalidTone(t *testing.T) {
	t.Parallel()
	env := newSMEnv(t)

	err := env.sm.StartInterview(context.Background(), "Go Developer", "sarcastic", "")
	if err == nil {
		t.Fatal("expected an error for an unknown tone")
	}
	if env.sm.IsActive() {
		t.Error("session active after a rejected start")
	}
	if n := env.prov.ConnectCallCount(); n != 0 {
		t.Errorf("connects: got %d, want 0", n)
	}
}

func TestSessionManager_StartInterviewDefaults(t *testing.T) {
	t.Parallel()
	env := newSMEnv(t)

	if err := env.sm.StartInterview(context.Background(), "  ", "", ""); err != nil {
		t.Fatalf("StartInterview: %v", err)
	}
	info, _ := env.sm.Info()
	if want := api.DefaultVoiceSettings().JobRole; info.JobRole != want {
		t.Errorf("JobRole: got %q, want default %q", info.JobRole, want)
	}
	if cfg := env.prov.LastConfig(); len(cfg.Tools) != 0 {
		t.Errorf("interviewer declared %d tools, want none", len(cfg.Tools))
	}
}

func TestSessionManager_EndInterviewAnalyzes(t *testing.T) {
	t.Parallel()
	env := newSMEnv(t)
	ctx := context.Background()

	if err := env.sm.StartInterview(ctx, "Data Engineer", "formal", ""); err != nil {
		t.Fatalf("StartInterview: %v", err)
	}
	eventually(t, "listening", func() bool { return env.sm.Status() == session.StatusListening })

	ms := env.prov.LastSession()
	ms.Deliver(&s2s.ServerMessage{ServerContent: &s2s.ServerContent{
		OutputTranscription: &s2s.Transcription{Text: "Tell me about SQL."},
		TurnComplete:        true,
	}})
	ms.Deliver(&s2s.ServerMessage{ServerContent: &s2s.ServerContent{
		InputTranscription: &s2s.Transcription{Text: "I tune queries daily."},
	}})
	eventually(t, "two turns", func() bool { return len(env.sm.Transcript()) == 2 })

	res, err := env.sm.EndInterview(ctx)
	if err != nil {
		t.Fatalf("EndInterview: %v", err)
	}
	if res == nil {
		t.Fatal("expected an analysis result")
	}
	if res.OverallScore != 72 || res.Recommendation != "Proceed to next round" {
		t.Errorf("result: got %+v", *res)
	}
	prompt := env.gen.LastRequest().Prompt
	if !strings.Contains(prompt, "**Data Engineer**") || !strings.Contains(prompt, "Candidate: I tune queries daily.") {
		t.Errorf("analysis prompt:\n%s", prompt)
	}
	if env.sm.IsActive() {
		t.Error("still active after EndInterview")
	}
	eventually(t, "transport close", ms.Closed)
}

func TestSessionManager_EndInterviewSkipsShortTranscript(t *testing.T) {
	t.Parallel()
	env := newSMEnv(t)
	ctx := context.Background()

	if err := env.sm.StartInterview(ctx, "", "", ""); err != nil {
		t.Fatalf("StartInterview: %v", err)
	}
	eventually(t, "listening", func() bool { return env.sm.Status() == session.StatusListening })
	env.prov.LastSession().Deliver(&s2s.ServerMessage{ServerContent: &s2s.ServerContent{
		OutputTranscription: &s2s.Transcription{Text: "Hello!"},
	}})
	eventually(t, "one turn", func() bool { return len(env.sm.Transcript()) == 1 })

	res, err := env.sm.EndInterview(ctx)
	if err != nil || res != nil {
		t.Fatalf("EndInterview: got (%v, %v), want (nil, nil)", res, err)
	}
	if n := env.gen.CallCount(); n != 0 {
		t.Errorf("analysis calls: got %d, want 0", n)
	}
}

func TestSessionManager_MicrophoneDenied(t *testing.T) {
	t.Parallel()
	env := newSMEnv(t)
	env.src.Deny()

	err := env.sm.StartAssistant(context.Background(), hr.RoleEmployee)
	var perr *session.PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("StartAssistant: got %v, want *PermissionError", err)
	}
	if env.sm.IsActive() {
		t.Error("session active after a denied microphone")
	}
	if !env.sawStatus(session.StatusError) {
		t.Error("status hook never reported error")
	}
	if n := env.prov.ConnectCallCount(); n != 0 {
		t.Errorf("connects: got %d, want 0", n)
	}
}

func TestSessionManager_RemoteCloseClearsActive(t *testing.T) {
	t.Parallel()
	env := newSMEnv(t)

	if err := env.sm.StartAssistant(context.Background(), hr.RoleHR); err != nil {
		t.Fatalf("StartAssistant: %v", err)
	}
	eventually(t, "listening", func() bool { return env.sm.Status() == session.StatusListening })

	env.prov.LastSession().CloseRemote(s2s.CloseEvent{Code: 1000, Reason: "done"})
	eventually(t, "inactive", func() bool { return !env.sm.IsActive() })

	if err := env.sm.StartAssistant(context.Background(), hr.RoleHR); err != nil {
		t.Fatalf("restart after remote close: %v", err)
	}
}
