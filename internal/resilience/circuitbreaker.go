// Package resilience keeps analysis requests flowing when a model backend
// misbehaves.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open) that
// sheds calls to a backend after repeated failures. [Generator] chains
// several [llm.Generator] backends, each behind its own breaker, and answers
// from the first healthy one.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the cool-down elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. One failed
	// probe opens the breaker again; enough successful ones close it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take the defaults.
type BreakerConfig struct {
	// Name labels log lines.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls that close the
	// breaker. Default: 2.
	Probes int

	// Counts decides whether an error is the backend's fault. Errors it
	// rejects are returned to the caller without touching the failure count.
	// Default: everything except context cancellation and deadline errors.
	Counts func(error) bool

	// Logger receives state transitions. Default: [slog.Default].
	Logger *slog.Logger

	now func() time.Time
}

// Breaker implements the circuit breaker pattern for one backend.
type Breaker struct {
	name     string
	max      int
	cooldown time.Duration
	probes   int
	counts   func(error) bool
	log      *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int // half-open probes started
	succeeded int // half-open probes that succeeded
}

// NewBreaker creates a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	b := &Breaker{
		name:     cfg.Name,
		max:      cfg.MaxFailures,
		cooldown: cfg.Cooldown,
		probes:   cfg.Probes,
		counts:   cfg.Counts,
		log:      cfg.Logger,
		now:      cfg.now,
	}
	if b.max <= 0 {
		b.max = 5
	}
	if b.cooldown <= 0 {
		b.cooldown = 30 * time.Second
	}
	if b.probes <= 0 {
		b.probes = 2
	}
	if b.counts == nil {
		b.counts = countsAsFailure
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

func countsAsFailure(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn unless the breaker is open. While open it returns
// [ErrCircuitOpen] without calling fn.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.record(probe, err)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.inFlight, b.succeeded = 0, 0
		b.log.Info("circuit half-open, probing backend", "backend", b.name)
	}
	if b.state == StateHalfOpen {
		if b.inFlight >= b.probes {
			return false, ErrCircuitOpen
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && !b.counts(err) {
		if probe {
			// Give the probe slot back; the call said nothing about the backend.
			b.inFlight--
		}
		return
	}

	switch {
	case err == nil && probe:
		b.succeeded++
		if b.succeeded >= b.probes {
			b.state = StateClosed
			b.failures = 0
			b.log.Info("circuit closed", "backend", b.name)
		}
	case err == nil:
		b.failures = 0
	case probe:
		b.trip()
		b.log.Warn("circuit re-opened by failed probe", "backend", b.name, "err", err)
	default:
		b.failures++
		if b.failures >= b.max && b.state == StateClosed {
			b.trip()
			b.log.Warn("circuit opened", "backend", b.name, "failures", b.failures, "err", err)
		}
	}
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = b.max
}

// State returns the current state. An open breaker whose cool-down has
// elapsed reports [StateHalfOpen]; the transition itself happens on the
// next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures, b.inFlight, b.succeeded = 0, 0, 0
}
