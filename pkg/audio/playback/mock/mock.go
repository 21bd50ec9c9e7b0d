// Package mock provides a controllable [playback.Device] for tests.
//
// The device clock only moves when the test calls [Device.Advance]. Handles
// never finish on their own: call [Handle.Finish] (or [Device.FinishAll]) to
// simulate natural completion.
//
//	dev := &mock.Device{}
//	sched := playback.New(dev)
//	sched.Schedule(buf)
//	dev.Plays()[0].Handle.Finish()
package mock

import (
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/synergy/pkg/audio"
	"github.com/MrWong99/synergy/pkg/audio/playback"
)

// Compile-time interface assertions.
var (
	_ playback.Device = (*Device)(nil)
	_ playback.Handle = (*Handle)(nil)
)

// ErrPlay is a convenience error for tests that set [Device.PlayErr].
var ErrPlay = errors.New("mock: play failed")

// PlayCall records a single invocation of Device.Play.
type PlayCall struct {
	// Buffer is the buffer passed to Play.
	Buffer *audio.Buffer
	// At is the requested start time.
	At time.Duration
	// Handle is the handle returned for this call.
	Handle *Handle
}

// Device is a mock implementation of playback.Device.
type Device struct {
	mu    sync.Mutex
	now   time.Duration
	plays []PlayCall

	// PlayErr, if non-nil, is returned from Play.
	PlayErr error
}

// Now returns the manual clock.
func (d *Device) Now() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

// Advance moves the clock forward by dt.
func (d *Device) Advance(dt time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now += dt
}

// Set moves the clock to t.
func (d *Device) Set(t time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = t
}

// Play records the call and returns a fresh Handle.
func (d *Device) Play(buf *audio.Buffer, at time.Duration) (playback.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.PlayErr != nil {
		return nil, d.PlayErr
	}
	h := &Handle{done: make(chan struct{})}
	d.plays = append(d.plays, PlayCall{Buffer: buf, At: at, Handle: h})
	return h, nil
}

// Plays returns a copy of every recorded Play call in order.
func (d *Device) Plays() []PlayCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PlayCall, len(d.plays))
	copy(out, d.plays)
	return out
}

// FinishAll completes every handle that is still pending.
func (d *Device) FinishAll() {
	for _, p := range d.Plays() {
		p.Handle.Finish()
	}
}

// Handle is a mock implementation of playback.Handle.
type Handle struct {
	mu      sync.Mutex
	stopped int
	once    sync.Once
	done    chan struct{}
}

// Stop records the call and closes Done.
func (h *Handle) Stop() {
	h.mu.Lock()
	h.stopped++
	h.mu.Unlock()
	h.Finish()
}

// Finish simulates natural completion.
func (h *Handle) Finish() {
	h.once.Do(func() { close(h.done) })
}

// Done implements playback.Handle.
func (h *Handle) Done() <-chan struct{} { return h.done }

// StopCallCount returns how many times Stop was called.
func (h *Handle) StopCallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}
