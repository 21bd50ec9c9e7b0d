package api_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrWong99/synergy/internal/api"
	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/session"
	"github.com/MrWong99/synergy/pkg/audio"
	"github.com/MrWong99/synergy/pkg/provider/llm/mock"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
	s2smock "github.com/MrWong99/synergy/pkg/provider/s2s/mock"
)

const waitTimeout = 3 * time.Second

// inbound is one frame received by the test client.
type inbound struct {
	binary bool
	data   []byte
	msg    map[string]any
}

// wsClient reads frames on a goroutine so tests can wait with a timeout.
type wsClient struct {
	conn   *websocket.Conn
	frames chan inbound
	closed chan error
}

func dial(t *testing.T, ts *httptest.Server, path string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", path, err, status)
	}
	c := &wsClient{conn: conn, frames: make(chan inbound, 512), closed: make(chan error, 1)}
	go func() {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				c.closed <- err
				return
			}
			f := inbound{binary: mt == websocket.BinaryMessage, data: data}
			if !f.binary {
				_ = json.Unmarshal(data, &f.msg)
			}
			c.frames <- f
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return c
}

func (c *wsClient) send(t *testing.T, v any) {
	t.Helper()
	if err := c.conn.WriteJSON(v); err != nil {
		t.Fatalf("write control: %v", err)
	}
}

func (c *wsClient) sendAudio(t *testing.T, samples []float32) {
	t.Helper()
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		t.Fatalf("write audio: %v", err)
	}
}

// next waits for the first frame matching pred, skipping the rest.
func (c *wsClient) next(t *testing.T, what string, pred func(inbound) bool) inbound {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case f := <-c.frames:
			if pred(f) {
				return f
			}
		case err := <-c.closed:
			t.Fatalf("connection closed while waiting for %s: %v", what, err)
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func (c *wsClient) message(t *testing.T, typ string) map[string]any {
	t.Helper()
	return c.next(t, typ, func(f inbound) bool { return !f.binary && f.msg["type"] == typ }).msg
}

func (c *wsClient) status(t *testing.T, st session.Status) map[string]any {
	t.Helper()
	return c.next(t, "status "+st.String(), func(f inbound) bool {
		return !f.binary && f.msg["type"] == "status" && f.msg["status"] == st.String()
	}).msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type bridgeEnv struct {
	srv  *api.Server
	ts   *httptest.Server
	prov *s2smock.Provider
	gen  *mock.Generator
}

func newBridgeEnv(t *testing.T) *bridgeEnv {
	t.Helper()
	env := &bridgeEnv{
		prov: &s2smock.Provider{},
		gen: &mock.Generator{Response: `{"isQualified":true,"overallScore":88,"summary":"Solid.",` +
			`"strengths":["Go"],"weaknesses":[],"recommendation":"Proceed to next round"}`},
	}
	env.srv = api.New(hr.NewSeededStore(), screener(t, env.gen), env.prov)
	v := api.DefaultVoiceSettings()
	v.PanelCloseDelay = 10 * time.Millisecond
	v.FrameSize = 1024
	env.srv.SetVoiceSettings(v)

	h, err := env.srv.Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	env.ts = httptest.NewServer(h)
	t.Cleanup(func() {
		_ = env.srv.Shutdown(context.Background())
		env.ts.Close()
	})
	return env
}

// open starts a session on c and drives it to listening with capture running.
func (env *bridgeEnv) open(t *testing.T, c *wsClient) *s2smock.Session {
	t.Helper()
	c.send(t, map[string]string{"type": "start"})
	c.status(t, session.StatusConnecting)

	waitFor(t, "connect", func() bool { return env.prov.ConnectCallCount() == 1 })
	ms := env.prov.LastSession()
	ms.Open()
	c.status(t, session.StatusListening)

	// A forwarded frame proves capture is attached to the session.
	waitFor(t, "first audio frame", func() bool {
		c.sendAudio(t, make([]float32, 1024))
		return len(ms.RealtimeInputs()) > 0
	})
	return ms
}

func TestBridge_Ready(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)
	c := dial(t, env.ts, "/ws/interviewer?rate=48000")

	msg := c.message(t, "ready")
	if msg["inputSampleRate"] != float64(48000) {
		t.Errorf("inputSampleRate: got %v, want 48000", msg["inputSampleRate"])
	}
	if msg["outputSampleRate"] != float64(s2s.OutputSampleRate) {
		t.Errorf("outputSampleRate: got %v, want %d", msg["outputSampleRate"], s2s.OutputSampleRate)
	}
}

func TestBridge_RejectsBadQuery(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/ws/interviewer?tone=sarcastic", http.StatusBadRequest},
		{"/ws/interviewer?rate=12", http.StatusBadRequest},
		{"/ws/interviewer?format=mp3", http.StatusBadRequest},
		{"/ws/assistant", http.StatusBadRequest},
		{"/ws/assistant?role=Intern", http.StatusBadRequest},
		{"/ws/assistant?email=nobody@example.com", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + tc.path
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)
			if err == nil {
				t.Fatal("expected dial to fail")
			}
			if resp == nil || resp.StatusCode != tc.status {
				t.Fatalf("status: got %v, want %d", resp, tc.status)
			}
		})
	}
}

func TestBridge_NoLiveProvider(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/interviewer"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status: got %v, want 503", resp)
	}
}

func TestBridge_InterviewerProfile(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)
	c := dial(t, env.ts, "/ws/interviewer?role=Data%20Engineer&tone=formal&extra=Ask+about+SQL.")
	c.message(t, "ready")

	env.open(t, c)
	cfg := env.prov.LastConfig()
	for _, want := range []string{"Data Engineer role", "formal tone", "Ask about SQL."} {
		if !strings.Contains(cfg.SystemInstruction, want) {
			t.Errorf("system instruction missing %q:\n%s", want, cfg.SystemInstruction)
		}
	}
	if len(cfg.Tools) != 0 {
		t.Errorf("interviewer tools: got %d, want 0", len(cfg.Tools))
	}
}

func TestBridge_AudioBothWays(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)
	c := dial(t, env.ts, "/ws/interviewer")
	c.message(t, "ready")
	ms := env.open(t, c)

	before := len(ms.RealtimeInputs())
	c.sendAudio(t, make([]float32, 1024))
	waitFor(t, "second frame", func() bool { return len(ms.RealtimeInputs()) > before })
	if got := ms.RealtimeInputs()[0].MIMEType; got != s2s.PCMInputMIME {
		t.Errorf("input MIME: got %q, want %q", got, s2s.PCMInputMIME)
	}

	pcm := audio.FloatToPCM16(make([]float32, 240))
	ms.Deliver(&s2s.ServerMessage{ServerContent: &s2s.ServerContent{ModelTurn: &s2s.Content{
		Parts: []s2s.Part{{InlineData: &s2s.Blob{MIMEType: "audio/pcm;rate=24000", Data: audio.Encode(pcm)}}},
	}}})

	f := c.next(t, "audio frame", func(f inbound) bool { return f.binary })
	if len(f.data) != len(pcm) {
		t.Errorf("audio frame: got %d bytes, want %d", len(f.data), len(pcm))
	}
	c.status(t, session.StatusSpeaking)
}

func TestBridge_Transcript(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)
	c := dial(t, env.ts, "/ws/interviewer")
	c.message(t, "ready")
	ms := env.open(t, c)

	ms.Deliver(&s2s.ServerMessage{ServerContent: &s2s.ServerContent{
		InputTranscription: &s2s.Transcription{Text: "Hello there"},
	}})

	msg := c.next(t, "non-empty transcript", func(f inbound) bool {
		turns, _ := f.msg["turns"].([]any)
		return !f.binary && f.msg["type"] == "transcript" && len(turns) > 0
	}).msg
	turn := msg["turns"].([]any)[0].(map[string]any)
	if turn["speaker"] != string(session.SpeakerUser) || turn["text"] != "Hello there" {
		t.Errorf("turn: got %v", turn)
	}
}

func TestBridge_EndInterviewRunsAnalysis(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)
	c := dial(t, env.ts, "/ws/interviewer?role=Go%20Developer")
	c.message(t, "ready")
	ms := env.open(t, c)

	ms.Deliver(&s2s.ServerMessage{ServerContent: &s2s.ServerContent{
		OutputTranscription: &s2s.Transcription{Text: "Why Go?"},
		TurnComplete:        true,
	}})
	ms.Deliver(&s2s.ServerMessage{ServerContent: &s2s.ServerContent{
		InputTranscription: &s2s.Transcription{Text: "Because of goroutines."},
	}})
	c.next(t, "two turns", func(f inbound) bool {
		turns, _ := f.msg["turns"].([]any)
		return !f.binary && f.msg["type"] == "transcript" && len(turns) == 2
	})

	c.send(t, map[string]string{"type": "end"})
	c.message(t, "ended")

	msg := c.message(t, "analysis")
	analysis := msg["analysis"].(map[string]any)
	if analysis["overallScore"] != float64(88) || analysis["recommendation"] != "Proceed to next round" {
		t.Errorf("analysis: got %v", analysis)
	}
	req := env.gen.LastRequest()
	if !strings.Contains(req.Prompt, "**Go Developer**") || !strings.Contains(req.Prompt, "Candidate: Because of goroutines.") {
		t.Errorf("analysis prompt:\n%s", req.Prompt)
	}
	waitFor(t, "session close", ms.Closed)
}

func TestBridge_EndWithoutConversationSkipsAnalysis(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)
	c := dial(t, env.ts, "/ws/interviewer")
	c.message(t, "ready")
	env.open(t, c)

	c.send(t, map[string]string{"type": "end"})
	c.message(t, "ended")
	c.send(t, map[string]string{"type": "bogus"})
	c.message(t, "error")

	if n := env.gen.CallCount(); n != 0 {
		t.Errorf("analysis calls: got %d, want 0", n)
	}
}

func TestBridge_MicrophoneDenied(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)
	c := dial(t, env.ts, "/ws/interviewer")
	c.message(t, "ready")

	c.send(t, map[string]string{"type": "mic_denied"})
	c.send(t, map[string]string{"type": "start"})

	msg := c.status(t, session.StatusError)
	if errText, _ := msg["error"].(string); !strings.Contains(errText, "Microphone") {
		t.Errorf("error text: got %q", errText)
	}
	if n := env.prov.ConnectCallCount(); n != 0 {
		t.Errorf("connect calls: got %d, want 0", n)
	}
}

func TestBridge_AssistantNavigateClosesPanel(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)
	c := dial(t, env.ts, "/ws/assistant?role=Admin")
	c.message(t, "ready")
	ms := env.open(t, c)

	cfg := env.prov.LastConfig()
	if len(cfg.Tools) == 0 {
		t.Fatal("assistant session has no tools")
	}
	if !strings.Contains(cfg.SystemInstruction, "Jane") {
		t.Errorf("system instruction does not greet the demo admin:\n%s", cfg.SystemInstruction)
	}

	ms.Deliver(&s2s.ServerMessage{ToolCall: &s2s.ToolCall{FunctionCalls: []s2s.FunctionCall{
		{ID: "c1", Name: "navigateTo", Args: map[string]any{"view": "recruit"}},
	}}})

	nav := c.message(t, "navigate")
	if nav["view"] != hr.ViewRecruitment {
		t.Errorf("view: got %v, want %s", nav["view"], hr.ViewRecruitment)
	}
	waitFor(t, "tool response", func() bool { return len(ms.ToolResponses()) == 1 })

	c.message(t, "close_panel")
	c.status(t, session.StatusIdle)
	waitFor(t, "session close", ms.Closed)
}

func TestBridge_StartTwice(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)
	c := dial(t, env.ts, "/ws/interviewer")
	c.message(t, "ready")
	env.open(t, c)

	c.send(t, map[string]string{"type": "start"})
	msg := c.message(t, "error")
	if !strings.Contains(msg["message"].(string), "already active") {
		t.Errorf("message: got %v", msg["message"])
	}
}

func TestBridge_ShutdownClosesConnections(t *testing.T) {
	t.Parallel()
	env := newBridgeEnv(t)
	c := dial(t, env.ts, "/ws/interviewer")
	c.message(t, "ready")
	ms := env.open(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := env.srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case <-c.closed:
	case <-time.After(waitTimeout):
		t.Fatal("client connection not closed by shutdown")
	}
	waitFor(t, "session close", ms.Closed)

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws/interviewer"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial after shutdown: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(waitTimeout))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read after shutdown: got %v, want going-away close", err)
	}
}
