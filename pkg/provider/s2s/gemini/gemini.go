// Package gemini implements the s2s.Provider interface for Google's Gemini Live API.
//
// It establishes a bidirectional WebSocket connection to the Gemini Live endpoint
// and exchanges JSON messages according to the BidiGenerateContent protocol.
// Audio is transmitted as base64-encoded PCM chunks; everything the server
// sends is translated into [s2s.ServerMessage] values and handed to the
// session callbacks from a single receive goroutine.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

// Compile-time assertions that Provider and session satisfy the s2s interfaces.
var _ s2s.Provider = (*Provider)(nil)
var _ s2s.Session = (*session)(nil)

const (
	defaultModel   = "gemini-2.5-flash-native-audio-preview-09-2025"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model used when [s2s.Config.Model] is empty.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithLogger sets the logger for protocol diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements s2s.Provider for Google's Gemini Live API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	log     *slog.Logger
}

// New creates a new Gemini Live Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Connect establishes a new Gemini Live session with the given configuration.
// It returns once the setup message is written; cb.OnOpen fires when the
// server acknowledges it with setupComplete.
func (p *Provider) Connect(ctx context.Context, cfg s2s.Config, cb s2s.Callbacks) (s2s.Session, error) {
	wsURL := fmt.Sprintf(
		"%s/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=%s",
		p.baseURL, url.QueryEscape(p.apiKey),
	)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: dial: %w", err)
	}
	// Model turns carrying audio regularly exceed the 32 KiB default.
	conn.SetReadLimit(16 << 20)

	model := cfg.Model
	if model == "" {
		model = p.model
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:   conn,
		cb:     cb,
		log:    p.log.With("model", model),
		done:   make(chan struct{}),
		ctx:    sessCtx,
		cancel: sessCancel,
	}

	if err := sess.writeJSON(buildSetup(model, cfg)); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("gemini: setup: %w", err)
	}

	go sess.receiveLoop()
	go sess.keepaliveLoop()

	return sess, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model                    string             `json:"model"`
	GenerationConfig         generationConfig   `json:"generationConfig"`
	SystemInstruction        *systemInstruction `json:"systemInstruction,omitempty"`
	Tools                    []geminiTool       `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}          `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}          `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type geminiTool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations,omitempty"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []inlineData `json:"mediaChunks"`
}

type toolResponseMessage struct {
	ToolResponse toolResponse `json:"toolResponse"`
}

type toolResponse struct {
	FunctionResponses []functionResponse `json:"functionResponses"`
}

type functionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

type serverMessage struct {
	SetupComplete        *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent        *serverContent   `json:"serverContent,omitempty"`
	ToolCall             *toolCallMsg     `json:"toolCall,omitempty"`
	ToolCallCancellation *json.RawMessage `json:"toolCallCancellation,omitempty"`
	Error                *geminiError     `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type transcription struct {
	Text string `json:"text"`
}

type toolCallMsg struct {
	FunctionCalls []functionCall `json:"functionCalls"`
}

type functionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// buildSetup translates an s2s.Config into the BidiGenerateContent setup frame.
func buildSetup(model string, cfg s2s.Config) setupMessage {
	modalities := make([]string, 0, len(cfg.ResponseModalities))
	for _, m := range cfg.ResponseModalities {
		modalities = append(modalities, string(m))
	}
	if len(modalities) == 0 {
		modalities = []string{string(s2s.ModalityAudio)}
	}

	msg := setupMessage{
		Setup: setupConfig{
			Model: fmt.Sprintf("models/%s", model),
			GenerationConfig: generationConfig{
				ResponseModalities: modalities,
			},
		},
	}

	if cfg.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: cfg.SystemInstruction}},
		}
	}

	if cfg.Voice != "" {
		msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}

	if cfg.InputTranscription {
		msg.Setup.InputAudioTranscription = &struct{}{}
	}
	if cfg.OutputTranscription {
		msg.Setup.OutputAudioTranscription = &struct{}{}
	}

	if len(cfg.Tools) > 0 {
		decls := make([]functionDeclaration, len(cfg.Tools))
		for i, t := range cfg.Tools {
			decls[i] = functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  openAPISchema(t.Parameters),
			}
		}
		msg.Setup.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	return msg
}

// openAPIKeys is the subset of schema keywords the Live API accepts in
// function parameters.
var openAPIKeys = map[string]bool{
	"type": true, "description": true, "properties": true, "required": true,
	"items": true, "enum": true, "format": true, "nullable": true,
	"minimum": true, "maximum": true, "minItems": true, "maxItems": true,
}

// openAPISchema converts a JSON Schema document to the OpenAPI flavour used by
// Gemini: type names are upper-cased and unsupported keywords are dropped.
func openAPISchema(js map[string]any) map[string]any {
	if js == nil {
		return nil
	}
	out := make(map[string]any, len(js))
	for k, v := range js {
		if !openAPIKeys[k] {
			continue
		}
		switch k {
		case "type":
			if t, ok := v.(string); ok {
				v = strings.ToUpper(t)
			}
		case "items":
			if sub, ok := v.(map[string]any); ok {
				v = openAPISchema(sub)
			}
		case "properties":
			if props, ok := v.(map[string]any); ok {
				conv := make(map[string]any, len(props))
				for name, p := range props {
					if sub, ok := p.(map[string]any); ok {
						conv[name] = openAPISchema(sub)
					}
				}
				v = conv
			}
		}
		out[k] = v
	}
	return out
}

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	conn *websocket.Conn
	cb   s2s.Callbacks
	log  *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gemini: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// receiveLoop reads messages from the WebSocket and dispatches them. It is
// the only goroutine that invokes callbacks, and it always ends with exactly
// one OnClose.
func (s *session) receiveLoop() {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			s.finish(err)
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("gemini: skipping malformed frame", "err", err, "bytes", len(data))
			continue
		}
		s.dispatch(&msg)
	}
}

// finish translates the terminal read error into OnError/OnClose.
func (s *session) finish(err error) {
	ev := s2s.CloseEvent{Code: int(websocket.StatusNormalClosure)}

	switch {
	case s.isClosed() || s.ctx.Err() != nil:
		ev.Local = true
		ev.Reason = "session closed"

	default:
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			ev.Code = int(ce.Code)
			ev.Reason = ce.Reason
			if ce.Code != websocket.StatusNormalClosure && ce.Code != websocket.StatusGoingAway {
				s.emitError(fmt.Errorf("gemini: connection closed with status %d: %s", ce.Code, ce.Reason))
			}
		} else {
			ev.Code = int(websocket.StatusAbnormalClosure)
			ev.Reason = err.Error()
			s.emitError(fmt.Errorf("gemini: read: %w", err))
		}
	}

	s.markClosed()
	if s.cb.OnClose != nil {
		s.cb.OnClose(ev)
	}
}

func (s *session) emitError(err error) {
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
}

func (s *session) dispatch(msg *serverMessage) {
	if msg.SetupComplete != nil && s.cb.OnOpen != nil {
		s.cb.OnOpen()
	}
	if msg.Error != nil {
		s.emitError(&s2s.ServerError{
			Code:    msg.Error.Code,
			Status:  msg.Error.Status,
			Message: msg.Error.Message,
		})
	}
	if msg.ServerContent == nil && msg.ToolCall == nil {
		return
	}
	if s.cb.OnMessage != nil {
		s.cb.OnMessage(convertServerMessage(msg))
	}
}

func convertServerMessage(msg *serverMessage) *s2s.ServerMessage {
	out := &s2s.ServerMessage{}

	if sc := msg.ServerContent; sc != nil {
		content := &s2s.ServerContent{
			TurnComplete: sc.TurnComplete,
			Interrupted:  sc.Interrupted,
		}
		if sc.InputTranscription != nil {
			content.InputTranscription = &s2s.Transcription{Text: sc.InputTranscription.Text}
		}
		if sc.OutputTranscription != nil {
			content.OutputTranscription = &s2s.Transcription{Text: sc.OutputTranscription.Text}
		}
		if sc.ModelTurn != nil {
			turn := &s2s.Content{Parts: make([]s2s.Part, 0, len(sc.ModelTurn.Parts))}
			for _, p := range sc.ModelTurn.Parts {
				sp := s2s.Part{Text: p.Text}
				if p.InlineData != nil {
					sp.InlineData = &s2s.Blob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}
				}
				turn.Parts = append(turn.Parts, sp)
			}
			content.ModelTurn = turn
		}
		out.ServerContent = content
	}

	if tc := msg.ToolCall; tc != nil {
		call := &s2s.ToolCall{FunctionCalls: make([]s2s.FunctionCall, len(tc.FunctionCalls))}
		for i, fc := range tc.FunctionCalls {
			call.FunctionCalls[i] = s2s.FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args}
		}
		out.ToolCall = call
	}

	return out
}

// keepaliveLoop sends WebSocket pings to keep the Gemini Live connection alive.
func (s *session) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			_ = s.conn.Ping(pingCtx)
			cancel()
		}
	}
}

// markClosed flips the closed flag and releases keepalive. It reports whether
// this call performed the transition.
func (s *session) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.done)
	return true
}

// ── Session methods ──────────────────────────────────────────────────────────

// SendRealtimeInput delivers one media frame. Frames sent after the session
// closed are dropped without error.
func (s *session) SendRealtimeInput(b s2s.Blob) error {
	if s.isClosed() {
		return nil
	}
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{MIMEType: b.MIMEType, Data: b.Data}},
		},
	}
	if err := s.writeJSON(msg); err != nil {
		if s.isClosed() || s.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("gemini: send realtime input: %w", err)
	}
	return nil
}

// SendToolResponse answers a whole tool-call batch in one toolResponse frame.
func (s *session) SendToolResponse(responses []s2s.FunctionResponse) error {
	if s.isClosed() {
		return s2s.ErrClosed
	}
	frs := make([]functionResponse, len(responses))
	for i, r := range responses {
		resp := r.Response
		if resp == nil {
			resp = map[string]any{}
		}
		frs[i] = functionResponse{ID: r.ID, Name: r.Name, Response: resp}
	}
	if err := s.writeJSON(toolResponseMessage{ToolResponse: toolResponse{FunctionResponses: frs}}); err != nil {
		return fmt.Errorf("gemini: send tool response: %w", err)
	}
	return nil
}

// Close terminates the session and releases all resources. Idempotent. It
// does not wait for the closing handshake; OnClose fires from the receive
// goroutine once the connection is gone.
func (s *session) Close() error {
	if !s.markClosed() {
		return nil
	}
	s.cancel() // unblocks receiveLoop and keepaliveLoop
	go s.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
