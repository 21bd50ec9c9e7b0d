// Package miniaudio provides a local microphone ([audio.Source]) and speaker
// ([playback.Device]) backed by miniaudio through malgo.
//
// Both devices share one [Context]. Capture delivers mono float32 at the
// configured rate; miniaudio converts from whatever the hardware runs at.
// Playback is driven by the device callback, so the speaker clock advances
// exactly as fast as the hardware consumes samples.
package miniaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/synergy/pkg/audio"
	"github.com/MrWong99/synergy/pkg/audio/playback"
)

// Context owns the miniaudio backend. Close it after every device opened
// from it has been closed.
type Context struct {
	ctx *malgo.AllocatedContext
	log *slog.Logger

	once sync.Once
}

// NewContext initialises the platform's default audio backend.
func NewContext(log *slog.Logger) (*Context, error) {
	if log == nil {
		log = slog.Default()
	}
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug("miniaudio", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init context: %w", err)
	}
	return &Context{ctx: actx, log: log}, nil
}

// Close releases the backend. Safe to call more than once.
func (c *Context) Close() error {
	var err error
	c.once.Do(func() {
		err = c.ctx.Uninit()
		c.ctx.Free()
	})
	return err
}

// ── Microphone ───────────────────────────────────────────────────────────────

// Compile-time interface assertions.
var (
	_ audio.Source      = (*Microphone)(nil)
	_ audio.DropCounter = (*captureStream)(nil)
)

// captureBuffer is the number of callback blocks held for a slow consumer,
// about 2.5 s at the low-latency period of 10 ms.
const captureBuffer = 256

// Microphone opens the default capture device on demand.
type Microphone struct {
	c    *Context
	rate int
}

// NewMicrophone returns a Microphone capturing mono float32 at rate Hz.
func (c *Context) NewMicrophone(rate int) *Microphone {
	return &Microphone{c: c, rate: rate}
}

// Open implements [audio.Source]. Capture starts immediately. The device
// callback runs on miniaudio's realtime thread and must not block, so blocks
// the consumer does not take in time are dropped and counted.
func (m *Microphone) Open(ctx context.Context) (audio.Stream, error) {
	st := &captureStream{
		rate: m.rate,
		ch:   make(chan []float32, captureBuffer),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = uint32(m.rate)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.Alsa.NoMMap = 1
	cfg.PerformanceProfile = malgo.LowLatency

	dev, err := malgo.InitDevice(m.c.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, frames uint32) {
			st.deliver(in, int(frames))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init capture: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("miniaudio: start capture: %w", err)
	}
	st.dev = dev

	stop := context.AfterFunc(ctx, func() { _ = st.Close() })
	st.stop = stop
	return st, nil
}

type captureStream struct {
	rate int
	dev  *malgo.Device
	stop func() bool

	mu     sync.Mutex
	ch     chan []float32
	closed bool

	dropped atomic.Uint64
}

func (st *captureStream) deliver(in []byte, frames int) {
	n := frames * 4
	if n == 0 || len(in) < n {
		return
	}
	block := float32FromBytes(in[:n])

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	select {
	case st.ch <- block:
	default:
		st.dropped.Add(1)
	}
}

func (st *captureStream) Samples() <-chan []float32 { return st.ch }

func (st *captureStream) Dropped() uint64 { return st.dropped.Load() }

func (st *captureStream) SampleRate() int { return st.rate }

func (st *captureStream) Close() error {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return nil
	}
	st.closed = true
	close(st.ch)
	st.mu.Unlock()

	if st.stop != nil {
		st.stop()
	}
	// Uninit waits for a running callback; deliver no longer touches ch.
	st.dev.Uninit()
	return nil
}

// ── Speaker ──────────────────────────────────────────────────────────────────

// Compile-time interface assertion.
var _ playback.Device = (*Speaker)(nil)

// Speaker is the default playback device, mono float32 at a fixed rate.
type Speaker struct {
	dev *malgo.Device
	tl  *timeline

	once sync.Once
}

// NewSpeaker opens and starts the default playback device at rate Hz.
func (c *Context) NewSpeaker(rate int) (*Speaker, error) {
	s := &Speaker{tl: newTimeline(rate)}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.SampleRate = uint32(rate)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.Alsa.NoMMap = 1
	cfg.PeriodSizeInFrames = uint32(rate / 50) // 20 ms
	cfg.Periods = 3

	var scratch []float32
	dev, err := malgo.InitDevice(c.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frames uint32) {
			n := int(frames)
			if cap(scratch) < n {
				scratch = make([]float32, n)
			}
			scratch = scratch[:n]
			s.tl.render(scratch)
			float32ToBytes(out, scratch)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init playback: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("miniaudio: start playback: %w", err)
	}
	s.dev = dev
	return s, nil
}

// Now implements [playback.Device].
func (s *Speaker) Now() time.Duration { return s.tl.now() }

// Play implements [playback.Device]. Multi-channel buffers are downmixed
// and other rates resampled to the device rate.
func (s *Speaker) Play(buf *audio.Buffer, at time.Duration) (playback.Handle, error) {
	if buf == nil || buf.Channels() == 0 {
		return nil, fmt.Errorf("miniaudio: play: empty buffer")
	}
	samples := downmix(buf)
	if buf.SampleRate != s.tl.rate {
		samples = audio.ResampleFloat(samples, buf.SampleRate, s.tl.rate)
	}
	return s.tl.schedule(samples, at), nil
}

// Close stops the device. Safe to call more than once.
func (s *Speaker) Close() error {
	s.once.Do(func() {
		s.dev.Uninit()
	})
	return nil
}

// ── Sample helpers ───────────────────────────────────────────────────────────

func downmix(buf *audio.Buffer) []float32 {
	if buf.Channels() == 1 {
		return buf.Data[0]
	}
	out := make([]float32, buf.Frames())
	scale := 1 / float32(buf.Channels())
	for _, ch := range buf.Data {
		for i, v := range ch {
			out[i] += v * scale
		}
	}
	return out
}

func float32FromBytes(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func float32ToBytes(dst []byte, samples []float32) {
	for i, v := range samples {
		if (i+1)*4 > len(dst) {
			return
		}
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
