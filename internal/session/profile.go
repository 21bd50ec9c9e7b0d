package session

import (
	"fmt"
	"strings"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/tools"
)

const (
	// DefaultModel is the live model used by both built-in profiles.
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

	// DefaultVoice is the prebuilt voice used by both built-in profiles.
	DefaultVoice = "Zephyr"

	// DefaultJobRole is the interviewer's role when none is given.
	DefaultJobRole = "Software Engineer"

	// DefaultInterviewerGuidance is appended to the interviewer instruction
	// when no extra guidance is given.
	DefaultInterviewerGuidance = "Keep your questions relevant to the role and your answers concise."
)

// Profile parameterises one [Engine.Start]: which model to talk to, how it
// should behave and which tools it may call.
type Profile struct {
	// Name labels logs and metrics, e.g. "assistant" or "interviewer".
	Name string

	Model             string
	Voice             string
	SystemInstruction string

	// Greeting, when set, is shown as the first model turn once the session
	// opens. It is not spoken.
	Greeting string

	// Tools is the callable tool set. Nil means the model gets no tools.
	Tools *tools.Registry
}

// AssistantProfile returns the general voice assistant profile for user.
// reg should come from [tools.ForRole] for the same user.
func AssistantProfile(user hr.User, reg *tools.Registry) Profile {
	return Profile{
		Name:  "assistant",
		Model: DefaultModel,
		Voice: DefaultVoice,
		SystemInstruction: fmt.Sprintf("You are Synergy AI, a helpful voice assistant for the Synergy HRMS platform. "+
			"Your goal is to provide quick answers and perform simple tasks. Use the available tools to answer questions. "+
			"Be concise and professional. You must communicate only in English. "+
			"The current user is %s, who is an %s.", user.Name, user.Role),
		Greeting: fmt.Sprintf("Hi %s, how can I help you?", hr.FirstName(user.Name)),
		Tools:    reg,
	}
}

// Tone is the interviewer's speaking style.
type Tone string

const (
	ToneFriendly Tone = "Friendly"
	ToneFormal   Tone = "Formal"
	ToneNeutral  Tone = "Neutral"
)

// Tones lists the supported tones in display order.
var Tones = []Tone{ToneFriendly, ToneFormal, ToneNeutral}

// ParseTone matches s case-insensitively against [Tones]. An empty string
// yields [ToneFriendly].
func ParseTone(s string) (Tone, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ToneFriendly, nil
	}
	for _, t := range Tones {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("session: unknown tone %q", s)
}

// InterviewerProfile returns the pre-screening interviewer profile. Empty
// jobRole and guidance fall back to [DefaultJobRole] and
// [DefaultInterviewerGuidance]. The interviewer has no tools.
func InterviewerProfile(jobRole string, tone Tone, guidance string) Profile {
	if strings.TrimSpace(jobRole) == "" {
		jobRole = DefaultJobRole
	}
	if tone == "" {
		tone = ToneFriendly
	}
	if strings.TrimSpace(guidance) == "" {
		guidance = DefaultInterviewerGuidance
	}
	return Profile{
		Name:  "interviewer",
		Model: DefaultModel,
		Voice: DefaultVoice,
		SystemInstruction: fmt.Sprintf("You are an HR interviewer conducting a pre-screening for a %s role. "+
			"You must conduct the interview in a %s tone. %s", jobRole, strings.ToLower(string(tone)), guidance),
	}
}
