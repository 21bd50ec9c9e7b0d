package playback_test

import (
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/synergy/pkg/audio"
	"github.com/MrWong99/synergy/pkg/audio/playback"
	"github.com/MrWong99/synergy/pkg/audio/playback/mock"
)

// chunk returns a silent 24 kHz mono buffer lasting d.
func chunk(t *testing.T, d time.Duration) *audio.Buffer {
	t.Helper()
	samples := int(d * 24000 / time.Second)
	buf, err := audio.DecodeAudioData(make([]byte, samples*2), 24000, 1)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	return buf
}

// waitFor polls cond until it is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSchedule_BackToBack(t *testing.T) {
	t.Parallel()

	dev := &mock.Device{}
	s := playback.New(dev)

	for i, want := range []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond} {
		got, err := s.Schedule(chunk(t, 100*time.Millisecond))
		if err != nil {
			t.Fatalf("Schedule %d: %v", i, err)
		}
		if got != want {
			t.Errorf("chunk %d: start %v, want %v", i, got, want)
		}
	}
	if s.Cursor() != 300*time.Millisecond {
		t.Errorf("Cursor: got %v, want 300ms", s.Cursor())
	}
	if s.Active() != 3 {
		t.Errorf("Active: got %d, want 3", s.Active())
	}
}

func TestSchedule_ClockAheadOfCursor(t *testing.T) {
	t.Parallel()

	dev := &mock.Device{}
	s := playback.New(dev)

	if _, err := s.Schedule(chunk(t, 100*time.Millisecond)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	dev.Set(time.Second)
	got, err := s.Schedule(chunk(t, 50*time.Millisecond))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if got != time.Second {
		t.Errorf("start: got %v, want 1s (never in the past)", got)
	}
	if s.Cursor() != time.Second+50*time.Millisecond {
		t.Errorf("Cursor: got %v", s.Cursor())
	}
}

func TestSchedule_NoOverlapProperty(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))
	for trial := range 50 {
		dev := &mock.Device{}
		s := playback.New(dev)

		var prevEnd time.Duration
		for i := range 20 {
			dev.Advance(time.Duration(rng.IntN(150)) * time.Millisecond)
			arrival := dev.Now()
			d := time.Duration(10+rng.IntN(120)) * time.Millisecond
			buf := chunk(t, d)

			start, err := s.Schedule(buf)
			if err != nil {
				t.Fatalf("trial %d chunk %d: %v", trial, i, err)
			}
			if start < arrival {
				t.Fatalf("trial %d chunk %d: started in the past (%v < %v)", trial, i, start, arrival)
			}
			if start < prevEnd {
				t.Fatalf("trial %d chunk %d: overlaps previous chunk (%v < %v)", trial, i, start, prevEnd)
			}
			prevEnd = start + buf.Duration()
		}
	}
}

func TestSchedule_PlayErrorLeavesCursor(t *testing.T) {
	t.Parallel()

	dev := &mock.Device{PlayErr: mock.ErrPlay}
	s := playback.New(dev)

	if _, err := s.Schedule(chunk(t, 100*time.Millisecond)); !errors.Is(err, mock.ErrPlay) {
		t.Fatalf("expected ErrPlay, got %v", err)
	}
	if s.Cursor() != 0 || s.Active() != 0 {
		t.Errorf("state changed after failed Schedule: cursor=%v active=%d", s.Cursor(), s.Active())
	}
}

func TestOnDrained_FiresWhenLastChunkFinishes(t *testing.T) {
	t.Parallel()

	var drained atomic.Int32
	dev := &mock.Device{}
	s := playback.New(dev, playback.WithOnDrained(func() { drained.Add(1) }))

	for range 2 {
		if _, err := s.Schedule(chunk(t, 100*time.Millisecond)); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	plays := dev.Plays()

	plays[0].Handle.Finish()
	waitFor(t, func() bool { return s.Active() == 1 })
	if drained.Load() != 0 {
		t.Fatal("OnDrained fired while a chunk was still active")
	}

	plays[1].Handle.Finish()
	waitFor(t, func() bool { return drained.Load() == 1 })
	if s.Active() != 0 {
		t.Errorf("Active: got %d, want 0", s.Active())
	}
}

func TestInterrupt(t *testing.T) {
	t.Parallel()

	var drained atomic.Int32
	dev := &mock.Device{}
	s := playback.New(dev, playback.WithOnDrained(func() { drained.Add(1) }))

	for range 3 {
		if _, err := s.Schedule(chunk(t, 100*time.Millisecond)); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}

	s.Interrupt()
	if s.Active() != 0 {
		t.Errorf("Active after Interrupt: got %d, want 0", s.Active())
	}
	if s.Cursor() != 0 {
		t.Errorf("Cursor after Interrupt: got %v, want 0", s.Cursor())
	}
	for i, p := range dev.Plays() {
		if p.Handle.StopCallCount() != 1 {
			t.Errorf("handle %d: Stop called %d times, want 1", i, p.Handle.StopCallCount())
		}
	}

	// Idempotent on an empty set.
	s.Interrupt()
	if s.Active() != 0 || s.Cursor() != 0 {
		t.Error("second Interrupt changed state")
	}

	// A cut-off reply must not be reported as a natural drain.
	time.Sleep(20 * time.Millisecond)
	if drained.Load() != 0 {
		t.Errorf("OnDrained fired %d times after Interrupt", drained.Load())
	}

	// Scheduling starts fresh from the device clock.
	dev.Set(5 * time.Second)
	start, err := s.Schedule(chunk(t, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if start != 5*time.Second {
		t.Errorf("start after Interrupt: got %v, want 5s", start)
	}
}

// ── ClockDevice ──────────────────────────────────────────────────────────────

type recordingSink struct {
	mu       sync.Mutex
	enqueued int
	flushed  int
}

func (r *recordingSink) Enqueue(_ []byte, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued++
}

func (r *recordingSink) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed++
}

func (r *recordingSink) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enqueued, r.flushed
}

func TestClockDevice_FinishesAfterDuration(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	dev := playback.NewClockDevice(sink)

	h, err := dev.Play(chunk(t, 20*time.Millisecond), dev.Now())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handle never finished")
	}
	if enq, fl := sink.counts(); enq != 1 || fl != 0 {
		t.Errorf("sink: enqueued=%d flushed=%d, want 1/0", enq, fl)
	}
}

func TestClockDevice_StopFlushesSink(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	dev := playback.NewClockDevice(sink)

	h, err := dev.Play(chunk(t, time.Minute), dev.Now())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	h.Stop()
	h.Stop()
	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if _, fl := sink.counts(); fl != 1 {
		t.Errorf("flushed: got %d, want 1", fl)
	}
}
