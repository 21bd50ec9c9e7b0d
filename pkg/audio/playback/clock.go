package playback

import (
	"sync"
	"time"

	"github.com/MrWong99/synergy/pkg/audio"
)

// Sink receives audio that a [ClockDevice] scheduled. It is the bridge to a
// remote player (for example a browser tab) that performs the actual output.
type Sink interface {
	// Enqueue delivers PCM16 audio to start at device time at.
	Enqueue(pcm []byte, sampleRate int, at time.Duration)

	// Flush discards everything enqueued so far.
	Flush()
}

// Compile-time interface assertion.
var _ Device = (*ClockDevice)(nil)

// ClockDevice is a [Device] driven by the wall clock. Audio is handed to the
// sink as soon as it is scheduled; completion is tracked with timers so the
// scheduler knows when the remote side has finished playing.
type ClockDevice struct {
	sink  Sink
	epoch time.Time
}

// NewClockDevice returns a ClockDevice whose clock starts now.
func NewClockDevice(sink Sink) *ClockDevice {
	return &ClockDevice{sink: sink, epoch: time.Now()}
}

// Now implements [Device].
func (d *ClockDevice) Now() time.Duration { return time.Since(d.epoch) }

// Play implements [Device].
func (d *ClockDevice) Play(buf *audio.Buffer, at time.Duration) (Handle, error) {
	d.sink.Enqueue(buf.PCM16(), buf.SampleRate, at)

	h := &timerHandle{done: make(chan struct{}), flush: d.sink.Flush}
	wait := max(0, at+buf.Duration()-d.Now())
	h.timer = time.AfterFunc(wait, h.finish)
	return h, nil
}

type timerHandle struct {
	timer *time.Timer
	flush func()

	once sync.Once
	done chan struct{}
}

func (h *timerHandle) finish() {
	h.once.Do(func() { close(h.done) })
}

func (h *timerHandle) Stop() {
	select {
	case <-h.done:
		return
	default:
	}
	h.timer.Stop()
	h.flush()
	h.finish()
}

func (h *timerHandle) Done() <-chan struct{} { return h.done }
