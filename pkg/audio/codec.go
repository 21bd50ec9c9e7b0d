// Package audio holds the PCM plumbing shared by the voice session engine:
// the transport codec (base64 + little-endian int16), float conversion,
// resampling, fixed-size framing, and the microphone [Source] abstraction.
//
// Everything here is allocation-explicit and free of global state so the
// helpers can be called from device callbacks.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrDecode is matched by every [*DecodeError] via errors.Is.
var ErrDecode = errors.New("audio: decode failed")

// DecodeError reports an inbound payload that cannot be interpreted as
// interleaved 16-bit PCM with the requested layout.
type DecodeError struct {
	// Length is the byte length of the rejected payload.
	Length int
	// Channels is the channel count the payload was decoded against.
	Channels int
	// Reason describes what was wrong.
	Reason string
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio: decode %d bytes as %d-channel pcm16: %s", e.Length, e.Channels, e.Reason)
}

// Is makes errors.Is(err, ErrDecode) succeed for any DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Encode returns the transport-safe (standard base64) form of b.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode is the exact inverse of [Encode].
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("audio: base64 decode: %w", err)
	}
	return b, nil
}

// Buffer is a decoded, playable block of audio. Samples are normalised to
// [-1, 1] and stored per channel.
type Buffer struct {
	// SampleRate in Hz.
	SampleRate int

	// Data holds one slice per channel; all slices have the same length.
	Data [][]float32
}

// Channels returns the channel count.
func (b *Buffer) Channels() int { return len(b.Data) }

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// PCM16 re-interleaves the buffer into little-endian int16 PCM, clamping to
// the int16 range. Used by sinks that expect raw PCM (speakers, browsers).
func (b *Buffer) PCM16() []byte {
	ch := b.Channels()
	frames := b.Frames()
	out := make([]byte, frames*ch*2)
	for i := range frames {
		for c := range ch {
			v := b.Data[c][i] * 32768
			v = max(-32768, min(32767, v))
			s := int16(v)
			j := (i*ch + c) * 2
			out[j] = byte(s)
			out[j+1] = byte(s >> 8)
		}
	}
	return out
}

// DecodeAudioData interprets data as interleaved little-endian int16 PCM with
// the given layout and returns a [Buffer] with samples scaled by 1/32768.
//
// A [*DecodeError] is returned when the length is not a whole multiple of
// 2*channels or the layout itself is invalid. An empty payload decodes to an
// empty buffer.
func DecodeAudioData(data []byte, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		return nil, &DecodeError{Length: len(data), Channels: channels, Reason: "channel count must be positive"}
	}
	if sampleRate <= 0 {
		return nil, &DecodeError{Length: len(data), Channels: channels, Reason: fmt.Sprintf("invalid sample rate %d", sampleRate)}
	}
	frameWidth := 2 * channels
	if len(data)%frameWidth != 0 {
		return nil, &DecodeError{
			Length:   len(data),
			Channels: channels,
			Reason:   fmt.Sprintf("length is not a multiple of %d", frameWidth),
		}
	}

	frames := len(data) / frameWidth
	buf := &Buffer{SampleRate: sampleRate, Data: make([][]float32, channels)}
	for c := range channels {
		buf.Data[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			j := (i*channels + c) * 2
			s := int16(data[j]) | int16(data[j+1])<<8
			buf.Data[c][i] = float32(s) / 32768
		}
	}
	return buf, nil
}
