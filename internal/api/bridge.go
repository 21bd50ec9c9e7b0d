package api

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/observe"
	"github.com/MrWong99/synergy/internal/screening"
	"github.com/MrWong99/synergy/internal/session"
	"github.com/MrWong99/synergy/internal/tools"
	"github.com/MrWong99/synergy/pkg/audio"
	"github.com/MrWong99/synergy/pkg/audio/playback"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = pongWait * 9 / 10
	maxInboundSize = 1 << 20
	outboundQueue  = 256
)

// Messages sent to the browser as JSON text frames. Audio travels as binary
// frames: PCM16 little-endian mono at [s2s.OutputSampleRate].
type (
	readyMessage struct {
		Type             string `json:"type"`
		InputSampleRate  int    `json:"inputSampleRate"`
		OutputSampleRate int    `json:"outputSampleRate"`
	}
	statusMessage struct {
		Type   string `json:"type"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	transcriptMessage struct {
		Type  string         `json:"type"`
		Turns []session.Turn `json:"turns"`
	}
	navigateMessage struct {
		Type string `json:"type"`
		View string `json:"view"`
	}
	analysisMessage struct {
		Type     string                     `json:"type"`
		Analysis *screening.InterviewResult `json:"analysis,omitempty"`
		Message  string                     `json:"message,omitempty"`
	}
	eventMessage struct {
		Type    string `json:"type"`
		Message string `json:"message,omitempty"`
	}
)

// controlMessage is a JSON text frame sent by the browser.
type controlMessage struct {
	// Type is one of "start", "stop", "end" or "mic_denied".
	Type string `json:"type"`
}

// sampleFormat is the encoding of inbound binary frames.
type sampleFormat int

const (
	formatFloat32 sampleFormat = iota
	formatPCM16
)

// bridgeKind selects the profile and the extra controls of a bridge.
type bridgeKind struct {
	name    string
	profile func(VoiceSettings) (session.Profile, error)
	jobRole string // interviewer only
}

// ── Handlers ─────────────────────────────────────────────────────────────────

func (s *Server) assistantBridge(w http.ResponseWriter, r *http.Request) {
	user, err := s.resolveUser(r)
	if err != nil {
		if errors.Is(err, hr.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "no user with that email")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	kind := bridgeKind{
		name: "assistant",
		profile: func(v VoiceSettings) (session.Profile, error) {
			reg, err := tools.ForRole(user.Role, user, s.store, tools.WithPanelCloseDelay(v.PanelCloseDelay))
			if err != nil {
				return session.Profile{}, err
			}
			p := session.AssistantProfile(user, reg)
			override(&p, v.AssistantModel, v.AssistantVoice)
			return p, nil
		},
	}
	s.serveBridge(w, r, kind)
}

func (s *Server) interviewerBridge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	defaults := s.VoiceSettings()

	jobRole := strings.TrimSpace(q.Get("role"))
	if jobRole == "" {
		jobRole = defaults.JobRole
	}
	toneStr := q.Get("tone")
	if toneStr == "" {
		toneStr = defaults.Tone
	}
	tone, err := session.ParseTone(toneStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	extra := q.Get("extra")

	kind := bridgeKind{
		name:    "interviewer",
		jobRole: jobRole,
		profile: func(v VoiceSettings) (session.Profile, error) {
			guidance := extra
			if strings.TrimSpace(guidance) == "" {
				guidance = v.Guidance
			}
			p := session.InterviewerProfile(jobRole, tone, guidance)
			override(&p, v.InterviewerModel, v.InterviewerVoice)
			return p, nil
		},
	}
	s.serveBridge(w, r, kind)
}

// resolveUser finds the signed-in identity by ?email=, falling back to the
// demo user of ?role=.
func (s *Server) resolveUser(r *http.Request) (hr.User, error) {
	q := r.URL.Query()
	if email := strings.TrimSpace(q.Get("email")); email != "" {
		users, err := hr.DemoUsers(r.Context(), s.store)
		if err != nil {
			return hr.User{}, err
		}
		for _, u := range users {
			if strings.EqualFold(u.Email, email) {
				return u, nil
			}
		}
		return hr.User{}, hr.ErrNotFound
	}
	role := hr.Role(q.Get("role"))
	if !role.IsValid() {
		return hr.User{}, errors.New("email or role (Admin, Manager, HR, Employee) is required")
	}
	return hr.DemoUser(r.Context(), s.store, role)
}

func override(p *session.Profile, model, voice string) {
	if model != "" {
		p.Model = model
	}
	if voice != "" {
		p.Voice = voice
	}
}

func (s *Server) serveBridge(w http.ResponseWriter, r *http.Request, kind bridgeKind) {
	if s.live == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "voice sessions are not configured")
		return
	}
	q := r.URL.Query()
	rate := session.InputSampleRate
	if v := q.Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 8000 || n > 192000 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "rate must be an integer between 8000 and 192000")
			return
		}
		rate = n
	}
	format := formatFloat32
	switch q.Get("format") {
	case "", "f32":
	case "s16":
		format = formatPCM16
	default:
		writeError(w, http.StatusBadRequest, CodeBadRequest, "format must be f32 or s16")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}

	b := s.newBridge(r.Context(), conn, kind, rate, format)
	if !s.bridges.add(b) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer s.bridges.remove(b)

	if s.metrics != nil {
		s.metrics.ActiveBridges.Add(r.Context(), 1)
		defer s.metrics.ActiveBridges.Add(context.WithoutCancel(r.Context()), -1)
	}
	b.run()
}

// ── Bridge ───────────────────────────────────────────────────────────────────

type outFrame struct {
	kind int
	data []byte
}

// bridge connects one browser WebSocket to one session engine. The browser
// is both the microphone (binary frames in) and the speaker (binary frames
// out); the engine never knows.
type bridge struct {
	s      *Server
	conn   *websocket.Conn
	kind   bridgeKind
	log    *slog.Logger
	format sampleFormat
	rate   int

	src    *audio.ChanSource
	engine *session.Engine

	ctx    context.Context
	cancel context.CancelFunc
	out    chan outFrame
	wg     sync.WaitGroup
}

// Compile-time interface assertion.
var _ playback.Sink = (*bridge)(nil)

func (s *Server) newBridge(ctx context.Context, conn *websocket.Conn, kind bridgeKind, rate int, format sampleFormat) *bridge {
	bctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b := &bridge{
		s:      s,
		conn:   conn,
		kind:   kind,
		log:    observe.Logger(ctx).With("bridge", kind.name),
		format: format,
		rate:   rate,
		src:    audio.NewChanSource(rate),
		ctx:    bctx,
		cancel: cancel,
		out:    make(chan outFrame, outboundQueue),
	}

	opts := []session.Option{
		session.WithLogger(b.log),
		session.WithFrameSize(s.VoiceSettings().FrameSize),
		session.WithStatusHook(b.onStatus),
		session.WithTranscriptHook(b.onTranscript),
		session.WithNavigateHook(b.onNavigate),
		session.WithPanelCloser(b.onClosePanel),
	}
	if s.metrics != nil {
		opts = append(opts, session.WithMetrics(s.metrics))
	}
	b.engine = session.New(s.live, b.src, playback.NewClockDevice(b), opts...)
	return b
}

func (b *bridge) run() {
	b.log.Info("voice bridge connected", "input_rate", b.rate)
	defer b.log.Info("voice bridge closed")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.writePump()
	}()

	b.sendJSON(readyMessage{Type: "ready", InputSampleRate: b.rate, OutputSampleRate: s2s.OutputSampleRate})
	b.readLoop()

	_ = b.engine.Close()
	b.cancel()
	b.wg.Wait()
}

// shutdown asks the bridge to close from outside the read loop.
func (b *bridge) shutdown() {
	b.cancel()
}

func (b *bridge) readLoop() {
	b.conn.SetReadLimit(maxInboundSize)
	_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPongHandler(func(string) error {
		return b.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.log.Debug("voice bridge read ended", "err", err)
			}
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			b.onAudio(data)
		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				b.sendJSON(eventMessage{Type: "error", Message: "invalid control message"})
				continue
			}
			b.onControl(msg)
		}
	}
}

func (b *bridge) writePump() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer b.conn.Close()

	for {
		select {
		case <-b.ctx.Done():
			_ = b.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case f := <-b.out:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(f.kind, f.data); err != nil {
				b.log.Debug("voice bridge write failed", "err", err)
				b.cancel()
				return
			}
		case <-ping.C:
			if err := b.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				b.cancel()
				return
			}
		}
	}
}

// enqueue hands a frame to the write pump. It blocks while the queue is
// full and gives up once the bridge is closing.
func (b *bridge) enqueue(kind int, data []byte) {
	select {
	case b.out <- outFrame{kind: kind, data: data}:
	case <-b.ctx.Done():
	}
}

func (b *bridge) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.log.Error("voice bridge: encode message", "err", err)
		return
	}
	b.enqueue(websocket.TextMessage, data)
}

// ── Inbound ──────────────────────────────────────────────────────────────────

func (b *bridge) onAudio(data []byte) {
	var samples []float32
	switch b.format {
	case formatPCM16:
		if len(data)%2 != 0 {
			return
		}
		samples = audio.PCM16ToFloat(data)
	default:
		if len(data)%4 != 0 {
			return
		}
		samples = decodeFloat32LE(data)
	}
	if !b.src.Push(samples) {
		b.log.Debug("voice bridge: microphone block dropped", "samples", len(samples))
	}
}

func (b *bridge) onControl(msg controlMessage) {
	switch msg.Type {
	case "start":
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.start()
		}()
	case "stop":
		b.engine.Stop()
	case "end":
		b.end()
	case "mic_denied":
		b.src.Deny()
	default:
		b.sendJSON(eventMessage{Type: "error", Message: "unknown control type " + strconv.Quote(msg.Type)})
	}
}

func (b *bridge) start() {
	p, err := b.kind.profile(b.s.VoiceSettings())
	if err != nil {
		b.log.Error("voice bridge: build profile", "err", err)
		b.sendJSON(eventMessage{Type: "error", Message: "could not prepare the assistant"})
		return
	}
	err = b.engine.Start(b.ctx, p)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrActive):
		b.sendJSON(eventMessage{Type: "error", Message: "a session is already active"})
	case errors.Is(err, session.ErrEngineClosed):
	default:
		// The status hook already reported StatusError with the cause.
		b.log.Warn("voice session failed to start", "err", err)
	}
}

// end finishes an interview: pending transcript fragments are flushed, the
// session is closed and, with more than one turn, the transcript analysed.
func (b *bridge) end() {
	turns := b.engine.FlushTranscript()
	b.engine.Stop()
	b.sendJSON(eventMessage{Type: "ended"})

	if b.kind.jobRole == "" || len(turns) <= 1 || b.s.screener == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(b.ctx, b.s.analysisTimeout)
		defer cancel()

		res, err := b.s.screener.AnalyzeInterview(ctx, screening.InterviewRequest{
			JobRole:    b.kind.jobRole,
			Transcript: turns,
		})
		if err != nil {
			b.log.Warn("interview analysis failed", "err", err)
			b.sendJSON(analysisMessage{Type: "analysis_error", Message: "analysis failed, please try again"})
			return
		}
		b.sendJSON(analysisMessage{Type: "analysis", Analysis: &res})
	}()
}

// ── Engine hooks ─────────────────────────────────────────────────────────────

func (b *bridge) onStatus(st session.Status) {
	msg := statusMessage{Type: "status", Status: st.String()}
	if st == session.StatusError {
		if err := b.engine.Err(); err != nil {
			msg.Error = userFacing(err)
		}
	}
	b.sendJSON(msg)
}

func (b *bridge) onTranscript(turns []session.Turn) {
	if turns == nil {
		turns = []session.Turn{}
	}
	b.sendJSON(transcriptMessage{Type: "transcript", Turns: turns})
}

func (b *bridge) onNavigate(view string) {
	b.sendJSON(navigateMessage{Type: "navigate", View: view})
}

func (b *bridge) onClosePanel() {
	b.sendJSON(eventMessage{Type: "close_panel"})
	b.engine.Stop()
}

// Enqueue implements [playback.Sink].
func (b *bridge) Enqueue(pcm []byte, _ int, _ time.Duration) {
	b.enqueue(websocket.BinaryMessage, pcm)
}

// Flush implements [playback.Sink].
func (b *bridge) Flush() {
	b.sendJSON(eventMessage{Type: "flush"})
}

func userFacing(err error) string {
	var perr *session.PermissionError
	var terr *session.TransportError
	switch {
	case errors.As(err, &perr):
		return "Microphone access was denied. Please allow microphone access and try again."
	case errors.As(err, &terr):
		return "Could not reach the voice service. Please try again."
	default:
		return err.Error()
	}
}

func decodeFloat32LE(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// ── Bridge set ───────────────────────────────────────────────────────────────

// bridgeSet tracks open bridges so shutdown can close them.
type bridgeSet struct {
	mu      sync.Mutex
	open    map[*bridge]struct{}
	closing bool
	wg      sync.WaitGroup
}

func (bs *bridgeSet) add(b *bridge) bool {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.closing {
		return false
	}
	if bs.open == nil {
		bs.open = make(map[*bridge]struct{})
	}
	bs.open[b] = struct{}{}
	bs.wg.Add(1)
	return true
}

func (bs *bridgeSet) remove(b *bridge) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if _, ok := bs.open[b]; ok {
		delete(bs.open, b)
		bs.wg.Done()
	}
}

func (bs *bridgeSet) closeAll(ctx context.Context) error {
	bs.mu.Lock()
	bs.closing = true
	for b := range bs.open {
		b.shutdown()
	}
	bs.mu.Unlock()

	done := make(chan struct{})
	go func() {
		bs.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
