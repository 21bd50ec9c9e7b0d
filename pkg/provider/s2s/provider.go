// Package s2s defines the contract for speech-to-speech (live) model sessions.
//
// A live session is a single bidirectional stream: the client pushes realtime
// microphone audio and tool results, the server pushes transcription
// fragments, synthesised audio, tool-call batches and turn signals. The
// message shapes mirror the Gemini Live BidiGenerateContent protocol because
// that is the reference backend, but nothing in this package is tied to a
// particular wire format.
//
// Inbound events are delivered through [Callbacks]. Implementations invoke the
// callbacks of one session sequentially from a single goroutine, so a
// consumer never sees two callbacks of the same session at once.
package s2s

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by operations that require an open session.
var ErrClosed = errors.New("s2s: session closed")

// Modality is a response modality requested from the model.
type Modality string

const (
	// ModalityAudio requests synthesised speech.
	ModalityAudio Modality = "AUDIO"

	// ModalityText requests plain text.
	ModalityText Modality = "TEXT"
)

// PCMInputMIME is the MIME type of outbound microphone frames.
const PCMInputMIME = "audio/pcm;rate=16000"

// OutputSampleRate is the rate of inline audio produced by live models.
const OutputSampleRate = 24000

// ToolDeclaration describes one callable function offered to the model.
type ToolDeclaration struct {
	// Name is the function name the model uses in tool calls.
	Name string

	// Description tells the model when to use the function.
	Description string

	// Parameters is the JSON Schema of the argument object. Nil means the
	// function takes no arguments.
	Parameters map[string]any
}

// Config is the initial configuration of a live session.
type Config struct {
	// Model identifies the remote model, without any "models/" prefix.
	Model string

	// ResponseModalities defaults to audio only when empty.
	ResponseModalities []Modality

	// InputTranscription enables transcription of the user's speech.
	InputTranscription bool

	// OutputTranscription enables transcription of the model's speech.
	OutputTranscription bool

	// Voice is the prebuilt voice name used for synthesis.
	Voice string

	// SystemInstruction frames the model's persona and policy.
	SystemInstruction string

	// Tools is the set of functions the model may call.
	Tools []ToolDeclaration
}

// Blob is a base64-encoded media payload.
type Blob struct {
	MIMEType string
	// Data is the standard base64 encoding of the payload.
	Data string
}

// Transcription is a partial transcript fragment.
type Transcription struct {
	Text string
}

// Part is one element of a model turn.
type Part struct {
	Text       string
	InlineData *Blob
}

// Content is a model turn.
type Content struct {
	Parts []Part
}

// ServerContent carries turn-related payloads. Any combination of fields may
// be set in a single message.
type ServerContent struct {
	ModelTurn           *Content
	TurnComplete        bool
	Interrupted         bool
	InputTranscription  *Transcription
	OutputTranscription *Transcription
}

// FunctionCall is one tool invocation requested by the model.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolCall is a batch of function calls that must be answered with exactly
// one [Session.SendToolResponse].
type ToolCall struct {
	FunctionCalls []FunctionCall
}

// ServerMessage is one inbound protocol message.
type ServerMessage struct {
	ServerContent *ServerContent
	ToolCall      *ToolCall
}

// FunctionResponse answers one [FunctionCall], matched by ID.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// CloseEvent describes why a session ended.
type CloseEvent struct {
	// Code is the transport close code (WebSocket status for Gemini).
	Code int
	// Reason is the human-readable close reason, possibly empty.
	Reason string
	// Local is true when the close was initiated by [Session.Close].
	Local bool
}

// Callbacks receives session lifecycle and inbound messages. Nil fields are
// ignored.
type Callbacks struct {
	// OnOpen fires once the session is ready to accept realtime input.
	OnOpen func()

	// OnMessage fires for every inbound message after OnOpen.
	OnMessage func(*ServerMessage)

	// OnError fires when the session fails. OnClose follows.
	OnError func(error)

	// OnClose fires exactly once when the session ends for any reason.
	OnClose func(CloseEvent)
}

// Session is an open live session. All methods are safe for concurrent use.
type Session interface {
	// SendRealtimeInput forwards one realtime media frame. After the session
	// closed the frame is dropped and nil is returned: realtime audio is lossy
	// by nature and late frames are worthless.
	SendRealtimeInput(Blob) error

	// SendToolResponse answers a tool-call batch in a single message.
	SendToolResponse([]FunctionResponse) error

	// Close ends the session. Closing an already closed session is a no-op.
	Close() error
}

// Provider opens live sessions.
type Provider interface {
	// Connect dials the remote model and sends the session setup. It returns
	// as soon as the transport is established; [Callbacks.OnOpen] signals
	// that the server accepted the setup.
	Connect(ctx context.Context, cfg Config, cb Callbacks) (Session, error)
}

// ServerError is an error reported by the remote side inside the protocol.
type ServerError struct {
	Code    int
	Status  string
	Message string
}

// Error implements error.
func (e *ServerError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("s2s: server error %d (%s): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("s2s: server error %d: %s", e.Code, e.Message)
}
