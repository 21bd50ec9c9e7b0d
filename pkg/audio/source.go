package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPermissionDenied is returned by [Source.Open] when the user (or the
// operating system) refuses microphone access.
var ErrPermissionDenied = errors.New("audio: microphone permission denied")

// ErrSourceBusy is returned by [ChanSource.Open] while a previous stream is
// still open.
var ErrSourceBusy = errors.New("audio: source already open")

// Source acquires a microphone stream. Implementations must be safe for
// concurrent use.
type Source interface {
	// Open starts capturing and returns a stream of mono float32 samples at
	// the source's native rate. The stream stays open until Close is called or
	// ctx is cancelled.
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open microphone capture.
type Stream interface {
	// Samples delivers blocks of mono float32 samples in capture order. The
	// channel is closed when the stream ends.
	Samples() <-chan []float32

	// SampleRate is the rate of the delivered samples in Hz.
	SampleRate() int

	// Close releases the underlying device. Safe to call more than once.
	Close() error
}

// DropCounter is implemented by streams whose producer never blocks and
// therefore discards blocks the consumer did not take in time.
type DropCounter interface {
	// Dropped returns the number of blocks discarded since the stream opened.
	Dropped() uint64
}

// ── ChanSource ───────────────────────────────────────────────────────────────

// Compile-time interface assertions.
var (
	_ Source      = (*ChanSource)(nil)
	_ DropCounter = (*chanStream)(nil)
)

// chanStreamBuffer is the number of blocks a [ChanSource] stream holds before
// Push starts rejecting. Browsers send roughly 20 ms per block.
const chanStreamBuffer = 128

// ChanSource is a [Source] fed by pushing sample blocks, typically from a
// network peer such as a browser that captures the microphone remotely.
// Only one stream may be open at a time; blocks pushed while no stream is
// open are discarded.
type ChanSource struct {
	rate int

	mu     sync.Mutex
	denied bool
	cur    *chanStream
}

// NewChanSource creates a ChanSource delivering samples at rate Hz.
func NewChanSource(rate int) *ChanSource {
	return &ChanSource{rate: rate}
}

// Deny makes every subsequent Open fail with [ErrPermissionDenied]. It models
// a peer that reported a refused microphone prompt.
func (s *ChanSource) Deny() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied = true
}

// Open implements [Source].
func (s *ChanSource) Open(ctx context.Context) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied {
		return nil, ErrPermissionDenied
	}
	if s.cur != nil {
		return nil, ErrSourceBusy
	}
	st := &chanStream{
		src:   s,
		rate:  s.rate,
		ch:    make(chan []float32, chanStreamBuffer),
		close: make(chan struct{}),
	}
	s.cur = st
	go func() {
		select {
		case <-ctx.Done():
			_ = st.Close()
		case <-st.close:
		}
	}()
	return st, nil
}

// Push delivers one block of samples to the open stream. It reports whether
// the block was accepted. Push never blocks: when the consumer lags behind by
// more than the internal buffer, the block is rejected and counted in the
// stream's [DropCounter].
func (s *ChanSource) Push(samples []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return false
	}
	select {
	case s.cur.ch <- samples:
		return true
	default:
		s.cur.dropped.Add(1)
		return false
	}
}

type chanStream struct {
	src  *ChanSource
	rate int
	ch   chan []float32

	dropped atomic.Uint64

	once  sync.Once
	close chan struct{}
}

func (st *chanStream) Samples() <-chan []float32 { return st.ch }

func (st *chanStream) SampleRate() int { return st.rate }

func (st *chanStream) Dropped() uint64 { return st.dropped.Load() }

func (st *chanStream) Close() error {
	st.once.Do(func() {
		st.src.mu.Lock()
		if st.src.cur == st {
			st.src.cur = nil
		}
		close(st.ch)
		st.src.mu.Unlock()
		close(st.close)
	})
	return nil
}
