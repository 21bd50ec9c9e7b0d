package audio

// Framer re-blocks an arbitrary stream of samples into fixed-size frames.
// It is not safe for concurrent use.
type Framer struct {
	size    int
	pending []float32
}

// NewFramer returns a Framer emitting frames of exactly size samples.
// size must be positive.
func NewFramer(size int) *Framer {
	if size <= 0 {
		panic("audio: framer size must be positive")
	}
	return &Framer{size: size, pending: make([]float32, 0, size)}
}

// Size returns the frame length in samples.
func (f *Framer) Size() int { return f.size }

// Write appends samples and calls emit once per completed frame, in order.
// The slice passed to emit is freshly allocated and may be retained.
func (f *Framer) Write(samples []float32, emit func([]float32)) {
	for len(samples) > 0 {
		n := min(f.size-len(f.pending), len(samples))
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]
		if len(f.pending) == f.size {
			frame := make([]float32, f.size)
			copy(frame, f.pending)
			f.pending = f.pending[:0]
			emit(frame)
		}
	}
}

// Buffered returns the number of samples waiting for a full frame.
func (f *Framer) Buffered() int { return len(f.pending) }

// Reset discards any partial frame.
func (f *Framer) Reset() { f.pending = f.pending[:0] }
