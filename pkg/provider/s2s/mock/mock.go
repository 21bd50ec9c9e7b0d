// Package mock provides test doubles for the s2s package interfaces.
//
// Use Provider to verify Connect calls and hand out controllable sessions.
// Use Session to drive the callback side of a live session (Open, Deliver,
// Fail, CloseRemote) and to inspect what the code under test sent.
//
// Example:
//
//	p := &mock.Provider{}
//	sess, _ := p.Connect(ctx, cfg, callbacks)
//	ms := p.LastSession()
//	ms.Open()
//	ms.Deliver(&s2s.ServerMessage{ServerContent: &s2s.ServerContent{TurnComplete: true}})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the Config passed to Connect.
	Cfg s2s.Config
}

// Provider is a mock implementation of s2s.Provider.
type Provider struct {
	mu sync.Mutex

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// AutoOpen makes every new session fire OnOpen right after Connect.
	AutoOpen bool

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall

	sessions []*Session
}

// Ensure Provider implements s2s.Provider at compile time.
var _ s2s.Provider = (*Provider)(nil)

// Connect records the call and returns a new Session bound to cb.
func (p *Provider) Connect(ctx context.Context, cfg s2s.Config, cb s2s.Callbacks) (s2s.Session, error) {
	p.mu.Lock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		err := p.ConnectErr
		p.mu.Unlock()
		return nil, err
	}
	sess := &Session{cb: cb}
	p.sessions = append(p.sessions, sess)
	autoOpen := p.AutoOpen
	p.mu.Unlock()

	if autoOpen {
		go sess.Open()
	}
	return sess, nil
}

// ConnectCallCount returns the number of Connect invocations. Thread-safe.
func (p *Provider) ConnectCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ConnectCalls)
}

// LastConfig returns the Config of the most recent Connect call.
func (p *Provider) LastConfig() s2s.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ConnectCalls) == 0 {
		return s2s.Config{}
	}
	return p.ConnectCalls[len(p.ConnectCalls)-1].Cfg
}

// LastSession returns the most recently created Session, or nil.
func (p *Provider) LastSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

// Sessions returns every Session created so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Session is a mock implementation of s2s.Session.
//
// Callback-driving methods invoke the callbacks synchronously on the calling
// goroutine, mirroring the single receive goroutine of real providers.
type Session struct {
	mu sync.Mutex
	cb s2s.Callbacks

	closed     bool
	closeCount int
	realtime   []s2s.Blob
	dropped    int
	responses  [][]s2s.FunctionResponse

	// SendToolResponseErr, if non-nil, is returned by every SendToolResponse call.
	SendToolResponseErr error
}

// Ensure Session implements s2s.Session at compile time.
var _ s2s.Session = (*Session)(nil)

// SendRealtimeInput records the frame, or counts it as dropped when closed.
func (s *Session) SendRealtimeInput(b s2s.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.dropped++
		return nil
	}
	s.realtime = append(s.realtime, b)
	return nil
}

// SendToolResponse records the batch.
func (s *Session) SendToolResponse(responses []s2s.FunctionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendToolResponseErr != nil {
		return s.SendToolResponseErr
	}
	if s.closed {
		return s2s.ErrClosed
	}
	cp := make([]s2s.FunctionResponse, len(responses))
	copy(cp, responses)
	s.responses = append(s.responses, cp)
	return nil
}

// Close records the call. The first call delivers OnClose{Local: true} on a
// separate goroutine, like a real transport would.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closeCount++
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	onClose := s.cb.OnClose
	s.mu.Unlock()

	if onClose != nil {
		go onClose(s2s.CloseEvent{Code: 1000, Reason: "session closed", Local: true})
	}
	return nil
}

// ── Driving helpers ──────────────────────────────────────────────────────────

// Open fires OnOpen.
func (s *Session) Open() {
	if s.cb.OnOpen != nil {
		s.cb.OnOpen()
	}
}

// Deliver fires OnMessage with msg.
func (s *Session) Deliver(msg *s2s.ServerMessage) {
	if s.cb.OnMessage != nil {
		s.cb.OnMessage(msg)
	}
}

// Fail fires OnError followed by OnClose, as a broken connection would.
func (s *Session) Fail(err error) {
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
	s.CloseRemote(s2s.CloseEvent{Code: 1006, Reason: err.Error()})
}

// CloseRemote marks the session closed and fires OnClose with ev.
func (s *Session) CloseRemote(ev s2s.CloseEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	if s.cb.OnClose != nil {
		s.cb.OnClose(ev)
	}
}

// ── Inspection ───────────────────────────────────────────────────────────────

// RealtimeInputs returns a copy of every frame accepted while open.
func (s *Session) RealtimeInputs() []s2s.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]s2s.Blob, len(s.realtime))
	copy(out, s.realtime)
	return out
}

// DroppedCount returns how many frames arrived after close.
func (s *Session) DroppedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// ToolResponses returns every batch passed to SendToolResponse.
func (s *Session) ToolResponses() [][]s2s.FunctionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]s2s.FunctionResponse, len(s.responses))
	copy(out, s.responses)
	return out
}

// CloseCallCount returns how many times Close was called.
func (s *Session) CloseCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

// Closed reports whether the session was closed by either side.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
