package miniaudio

import (
	"sync"
	"time"

	"github.com/MrWong99/synergy/pkg/audio/playback"
)

// timeline mixes scheduled chunks into a sample clock. The clock only
// advances when the output callback renders, so device time is exactly the
// number of frames the hardware consumed.
type timeline struct {
	rate int

	mu     sync.Mutex
	clock  int64 // frames rendered so far
	chunks []*chunk
}

type chunk struct {
	t       *timeline
	start   int64
	samples []float32

	once sync.Once
	done chan struct{}
}

// Compile-time interface assertion.
var _ playback.Handle = (*chunk)(nil)

func newTimeline(rate int) *timeline {
	return &timeline{rate: rate}
}

// now returns the clock as a duration.
func (t *timeline) now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.framesToDuration(t.clock)
}

// schedule places mono samples at device time at. Start times in the past
// are moved to the current clock.
func (t *timeline) schedule(samples []float32, at time.Duration) *chunk {
	c := &chunk{t: t, samples: samples, done: make(chan struct{})}

	t.mu.Lock()
	defer t.mu.Unlock()
	c.start = max(t.durationToFrames(at), t.clock)
	if len(samples) == 0 {
		c.finish()
		return c
	}
	t.chunks = append(t.chunks, c)
	return c
}

// render fills out with the sum of every chunk overlapping the next
// len(out) frames and advances the clock.
func (t *timeline) render(out []float32) {
	clear(out)

	t.mu.Lock()
	from := t.clock
	to := from + int64(len(out))
	t.clock = to

	keep := t.chunks[:0]
	var finished []*chunk
	for _, c := range t.chunks {
		end := c.start + int64(len(c.samples))
		lo := max(c.start, from)
		hi := min(end, to)
		for f := lo; f < hi; f++ {
			out[f-from] += c.samples[f-c.start]
		}
		if end <= to {
			finished = append(finished, c)
			continue
		}
		keep = append(keep, c)
	}
	clear(t.chunks[len(keep):])
	t.chunks = keep
	t.mu.Unlock()

	for i := range out {
		out[i] = max(-1, min(1, out[i]))
	}
	for _, c := range finished {
		c.finish()
	}
}

// pending returns the number of chunks still scheduled.
func (t *timeline) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.chunks)
}

func (t *timeline) remove(c *chunk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, x := range t.chunks {
		if x == c {
			t.chunks = append(t.chunks[:i], t.chunks[i+1:]...)
			return
		}
	}
}

func (t *timeline) framesToDuration(frames int64) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(t.rate)
}

func (t *timeline) durationToFrames(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(d) * int64(t.rate) / int64(time.Second)
}

// Stop implements [playback.Handle].
func (c *chunk) Stop() {
	c.t.remove(c)
	c.finish()
}

// Done implements [playback.Handle].
func (c *chunk) Done() <-chan struct{} { return c.done }

func (c *chunk) finish() {
	c.once.Do(func() { close(c.done) })
}
