// Package playback schedules decoded audio chunks back-to-back on an output
// [Device] so that streamed replies play without gaps or overlaps, and can be
// cut off instantly when the user barges in.
//
// The scheduler keeps a "next start" cursor on the device clock. Every chunk
// starts at max(device clock, cursor) and pushes the cursor forward by its
// own duration. Handles of chunks that have not finished playing form the
// active set; when that set drains naturally the drained hook fires.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/synergy/pkg/audio"
)

// Device is an output with its own monotonically advancing clock.
type Device interface {
	// Now returns the device clock.
	Now() time.Duration

	// Play schedules buf to start at device time at. If at is in the past the
	// device starts playback immediately.
	Play(buf *audio.Buffer, at time.Duration) (Handle, error)
}

// Handle controls one scheduled chunk.
type Handle interface {
	// Stop cuts playback off immediately. Safe to call more than once and
	// after the chunk finished.
	Stop()

	// Done is closed when the chunk finished playing or was stopped.
	Done() <-chan struct{}
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithOnDrained registers fn to run whenever the active set becomes empty
// because its last chunk finished naturally. fn runs on an internal goroutine
// and must not block for long.
func WithOnDrained(fn func()) Option {
	return func(s *Scheduler) { s.onDrained = fn }
}

// Scheduler places chunks on a [Device] strictly in arrival order.
// It is safe for concurrent use.
type Scheduler struct {
	dev       Device
	onDrained func()

	mu     sync.Mutex
	cursor time.Duration
	active map[*entry]struct{}
}

type entry struct {
	h     Handle
	start time.Duration
}

// New returns a Scheduler bound to dev.
func New(dev Device, opts ...Option) *Scheduler {
	s := &Scheduler{
		dev:    dev,
		active: make(map[*entry]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule queues buf right after the previously scheduled chunk, or now if
// the device clock has already passed that point. It returns the start time
// assigned to the chunk.
func (s *Scheduler) Schedule(buf *audio.Buffer) (time.Duration, error) {
	s.mu.Lock()
	start := max(s.dev.Now(), s.cursor)
	h, err := s.dev.Play(buf, start)
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("playback: schedule: %w", err)
	}
	s.cursor = start + buf.Duration()
	e := &entry{h: h, start: start}
	s.active[e] = struct{}{}
	s.mu.Unlock()

	go s.watch(e)
	return start, nil
}

// watch removes e from the active set once it finishes. Entries already
// removed by Interrupt are ignored so that a cut-off reply never reports a
// natural drain.
func (s *Scheduler) watch(e *entry) {
	<-e.h.Done()

	s.mu.Lock()
	if _, ok := s.active[e]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, e)
	drained := len(s.active) == 0
	fn := s.onDrained
	s.mu.Unlock()

	if drained && fn != nil {
		fn()
	}
}

// Interrupt stops every active chunk, empties the active set and rewinds the
// cursor to zero. Calling it with nothing scheduled is a no-op apart from the
// cursor reset.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	stopping := make([]Handle, 0, len(s.active))
	for e := range s.active {
		stopping = append(stopping, e.h)
	}
	clear(s.active)
	s.cursor = 0
	s.mu.Unlock()

	for _, h := range stopping {
		h.Stop()
	}
}

// Active returns the number of chunks scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Cursor returns the device time at which the next chunk would start if the
// clock has not passed it yet.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
