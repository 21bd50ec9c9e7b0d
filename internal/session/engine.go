// Package session implements the voice assistant session engine: one live
// speech-to-speech session at a time, fed by a microphone [audio.Source],
// answered through a [playback.Scheduler], with streamed transcription
// coalesced into a [Turn] list and tool calls dispatched to a
// [tools.Registry].
//
// An [Engine] is the server-side counterpart of an assistant panel. It is
// created once per panel and survives many sessions: [Engine.Start] opens a
// session with a [Profile], [Engine.Stop] tears it down, and [Engine.Close]
// releases the engine when the panel goes away.
//
// Status transitions:
//
//	idle, error      --Start-->             connecting
//	connecting       --transport open-->    listening
//	live             --user speech-->       thinking
//	live             --tool call batch-->   thinking
//	live             --model audio-->       speaking
//	live             --turn complete-->     listening
//	speaking         --playback drained-->  listening
//	any session      --failure-->           error
//	any session      --remote close/Stop--> idle
//
// Error is sticky: a close event following a failure does not overwrite it,
// and only Start leaves it.
//
// Every session is tagged with its own run record. Callbacks that arrive
// from a session that has since ended are recognised by that record and
// ignored, so a late message from a previous session never leaks into the
// next one.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MrWong99/synergy/internal/observe"
	"github.com/MrWong99/synergy/pkg/audio"
	"github.com/MrWong99/synergy/pkg/audio/playback"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

const (
	// InputSampleRate is the rate of outbound microphone frames.
	InputSampleRate = 16000

	// DefaultFrameSize is the number of samples per outbound frame.
	DefaultFrameSize = 4096
)

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithStatusHook registers fn to receive every status change. Hooks run in
// change order and must not call Start, Stop or Close.
func WithStatusHook(fn func(Status)) Option {
	return func(e *Engine) { e.onStatus = fn }
}

// WithTranscriptHook registers fn to receive the full transcript whenever it
// changes. The slice is a copy owned by fn.
func WithTranscriptHook(fn func([]Turn)) Option {
	return func(e *Engine) { e.onTranscript = fn }
}

// WithPanelCloser registers fn to run when a tool asks for the assistant
// panel to close, after the delay the tool requested. It runs on its own
// goroutine and may call Stop.
func WithPanelCloser(fn func()) Option {
	return func(e *Engine) { e.closePanel = fn }
}

// WithNavigateHook registers fn to receive view switches requested by tools.
func WithNavigateHook(fn func(view string)) Option {
	return func(e *Engine) { e.navigate = fn }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics records session metrics into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithFrameSize overrides [DefaultFrameSize].
func WithFrameSize(n int) Option {
	return func(e *Engine) { e.frameSize = n }
}

// Engine runs voice sessions for one assistant panel. It is safe for
// concurrent use.
type Engine struct {
	provider s2s.Provider
	source   audio.Source
	sched    *playback.Scheduler
	input    *inputContext

	log          *slog.Logger
	metrics      *observe.Metrics
	onStatus     func(Status)
	onTranscript func([]Turn)
	closePanel   func()
	navigate     func(string)
	frameSize    int

	// emitMu orders state changes together with the hook calls reporting them.
	emitMu sync.Mutex

	// toolMu runs tool batches one at a time.
	toolMu sync.Mutex

	mu      sync.Mutex
	status  Status
	err     error
	gen     uint64
	cur     *run
	profile string
	tr      transcript
	closed  bool

	wg sync.WaitGroup
}

// run is the state of one session, from Start until it ends.
type run struct {
	gen     uint64
	profile Profile
	ctx     context.Context
	cancel  context.CancelFunc
	log     *slog.Logger

	stream    audio.Stream
	sess      s2s.Session
	opened    bool
	capturing bool
}

// inputContext is the capture state retained across sessions. Its lock is
// held by the capture goroutine of the current session for its whole life.
type inputContext struct {
	mu     sync.Mutex
	framer *audio.Framer
}

// New creates an idle Engine. Audio is captured from source and played on
// device; both are shared by every session of the engine.
func New(provider s2s.Provider, source audio.Source, device playback.Device, opts ...Option) *Engine {
	e := &Engine{
		provider:  provider,
		source:    source,
		log:       slog.Default(),
		frameSize: DefaultFrameSize,
	}
	for _, o := range opts {
		o(e)
	}
	e.sched = playback.New(device, playback.WithOnDrained(e.onDrained))
	e.input = &inputContext{framer: audio.NewFramer(e.frameSize)}
	return e
}

// Start opens a session with profile p. It acquires the microphone, connects
// to the live model and returns once the transport is established; the
// status hook reports listening when the model accepted the session.
//
// Start fails with [ErrActive] while a session is connecting or open and
// with [ErrEngineClosed] after Close. Microphone failures are returned as
// [*PermissionError] and connection failures as [*TransportError]; both
// leave the engine in [StatusError]. A Stop racing with Start wins and Start
// returns nil.
func (e *Engine) Start(ctx context.Context, p Profile) error {
	var (
		r   *run
		err error
	)
	e.change(func() bool {
		switch {
		case e.closed:
			err = ErrEngineClosed
			return false
		case e.cur != nil:
			err = ErrActive
			return false
		}
		e.gen++
		sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		r = &run{
			gen:     e.gen,
			profile: p,
			ctx:     sctx,
			cancel:  cancel,
			log:     e.log.With("profile", p.Name, "generation", e.gen),
		}
		e.cur = r
		e.err = nil
		e.profile = p.Name
		e.status = StatusConnecting
		e.tr.reset()
		return true
	})
	if err != nil {
		return err
	}

	stream, err := e.source.Open(r.ctx)
	if err != nil {
		perr := &PermissionError{Err: err}
		if e.fail(r, perr) {
			return perr
		}
		return nil
	}
	if !e.attach(r, func() { r.stream = stream }) {
		_ = stream.Close()
		return nil
	}

	cfg := s2s.Config{
		Model:               p.Model,
		ResponseModalities:  []s2s.Modality{s2s.ModalityAudio},
		InputTranscription:  true,
		OutputTranscription: true,
		Voice:               p.Voice,
		SystemInstruction:   p.SystemInstruction,
		Tools:               p.Tools.Declarations(),
	}
	sess, err := e.provider.Connect(r.ctx, cfg, e.callbacks(r))
	if err != nil {
		terr := &TransportError{Op: "connect", Err: err}
		if e.fail(r, terr) {
			return terr
		}
		return nil
	}
	if !e.attach(r, func() { r.sess = sess }) {
		_ = sess.Close()
		return nil
	}
	r.log.Info("voice session connecting", "model", p.Model, "tools", p.Tools.Len())
	return nil
}

// Stop ends the current session, if any: playback is cut off, the transport
// is closed in the background and the microphone is released. Stop never
// blocks on the network.
func (e *Engine) Stop() {
	var r *run
	e.change(func() bool {
		r = e.cur
		if r == nil {
			return false
		}
		e.cur = nil
		e.status = StatusIdle
		e.releaseLocked(r)
		return false
	})
	if r != nil {
		r.log.Info("voice session stopped")
	}
}

// Close stops the current session and releases the engine. It waits for
// background work of past sessions to finish. Safe to call more than once.
func (e *Engine) Close() error {
	e.Stop()
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
	return nil
}

// Status returns the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Err returns the error that put the engine into [StatusError], or nil.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Transcript returns a copy of the current transcript.
func (e *Engine) Transcript() []Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tr.snapshot()
}

// FlushTranscript closes the current turn and returns the transcript with
// empty entries removed. It is what an interview hands to analysis when it
// ends.
func (e *Engine) FlushTranscript() []Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tr.flush()
}

// ── State plumbing ───────────────────────────────────────────────────────────

// change runs fn with the state lock held and then reports a status change,
// and a transcript change if fn returned true, to the hooks.
func (e *Engine) change(fn func() (transcriptChanged bool)) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	prev := e.status
	trChanged := fn()
	status := e.status
	profile := e.profile
	var turns []Turn
	if trChanged && e.onTranscript != nil {
		turns = e.tr.snapshot()
	}
	e.mu.Unlock()

	if status != prev {
		e.log.Debug("session status", "profile", profile, "from", prev.String(), "to", status.String())
		if e.metrics != nil {
			e.metrics.RecordStatus(context.Background(), profile, status.String())
		}
		if e.onStatus != nil {
			e.onStatus(status)
		}
	}
	if trChanged && e.onTranscript != nil {
		e.onTranscript(turns)
	}
}

// attach runs set if r is still the current session and reports whether it
// did. It starts capture once everything capture needs is in place.
func (e *Engine) attach(r *run, set func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur != r {
		return false
	}
	set()
	e.maybeCaptureLocked(r)
	return true
}

// current returns r's transport if r is still the current session.
func (e *Engine) current(r *run) (s2s.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur != r || r.sess == nil {
		return nil, false
	}
	return r.sess, true
}

// fail moves the engine to [StatusError] with err if r is still current and
// reports whether it did.
func (e *Engine) fail(r *run, err error) bool {
	applied := false
	e.change(func() bool {
		if e.cur != r {
			return false
		}
		applied = true
		e.cur = nil
		e.err = err
		e.status = StatusError
		e.releaseLocked(r)
		return false
	})
	if applied {
		r.log.Error("voice session failed", "err", err)
	}
	return applied
}

// releaseLocked tears down r: playback stops, capture ends, the stream is
// released and the transport is closed on a background goroutine.
func (e *Engine) releaseLocked(r *run) {
	r.cancel()
	e.sched.Interrupt()
	if r.stream != nil {
		_ = r.stream.Close()
	}
	if r.sess != nil {
		sess := r.sess
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := sess.Close(); err != nil {
				r.log.Debug("closing live session", "err", err)
			}
		}()
	}
	if r.opened && e.metrics != nil {
		e.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}
