package session_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/session"
)

func TestStatus_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    session.Status
		want string
	}{
		{session.StatusIdle, "idle"},
		{session.StatusConnecting, "connecting"},
		{session.StatusListening, "listening"},
		{session.StatusThinking, "thinking"},
		{session.StatusSpeaking, "speaking"},
		{session.StatusError, "error"},
		{session.Status(42), "Status(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

func TestAssistantProfile(t *testing.T) {
	t.Parallel()

	p := session.AssistantProfile(hr.User{Name: "Mary Garcia", Role: hr.RoleHR}, nil)
	if !strings.HasPrefix(p.SystemInstruction, "You are Synergy AI") {
		t.Errorf("instruction: %q", p.SystemInstruction)
	}
	if !strings.HasSuffix(p.SystemInstruction, "The current user is Mary Garcia, who is an HR.") {
		t.Errorf("instruction: %q", p.SystemInstruction)
	}
	if p.Greeting != "Hi Mary, how can I help you?" {
		t.Errorf("greeting: %q", p.Greeting)
	}
	if p.Model != session.DefaultModel || p.Voice != "Zephyr" {
		t.Errorf("model/voice: %q/%q", p.Model, p.Voice)
	}
}

func TestInterviewerProfile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		role     string
		tone     session.Tone
		guidance string
		want     string
	}{
		{
			name: "defaults",
			want: "You are an HR interviewer conducting a pre-screening for a Software Engineer role. " +
				"You must conduct the interview in a friendly tone. " + session.DefaultInterviewerGuidance,
		},
		{
			name:     "custom",
			role:     "Data Analyst",
			tone:     session.ToneFormal,
			guidance: "Ask about SQL.",
			want: "You are an HR interviewer conducting a pre-screening for a Data Analyst role. " +
				"You must conduct the interview in a formal tone. Ask about SQL.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := session.InterviewerProfile(tt.role, tt.tone, tt.guidance)
			if p.SystemInstruction != tt.want {
				t.Errorf("instruction:\n got %q\nwant %q", p.SystemInstruction, tt.want)
			}
			if p.Tools != nil || p.Greeting != "" {
				t.Error("interviewer must have no tools and no greeting")
			}
		})
	}
}

func TestParseTone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    session.Tone
		wantErr bool
	}{
		{"", session.ToneFriendly, false},
		{"formal", session.ToneFormal, false},
		{" NEUTRAL ", session.ToneNeutral, false},
		{"sarcastic", "", true},
	}
	for _, tt := range tests {
		got, err := session.ParseTone(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTone(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
