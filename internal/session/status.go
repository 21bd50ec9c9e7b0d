package session

import (
	"errors"
	"fmt"
)

// Status is the externally visible state of an [Engine].
type Status int

const (
	// StatusIdle means no session is open.
	StatusIdle Status = iota

	// StatusConnecting means the microphone is being acquired and the live
	// session is being established.
	StatusConnecting

	// StatusListening means the session is open and waiting for the user.
	StatusListening

	// StatusThinking means the user spoke or a tool batch is running and the
	// model has not answered yet.
	StatusThinking

	// StatusSpeaking means model audio is scheduled or playing.
	StatusSpeaking

	// StatusError means the last session failed. Only [Engine.Start] leaves it.
	StatusError
)

var statusNames = [...]string{
	StatusIdle:       "idle",
	StatusConnecting: "connecting",
	StatusListening:  "listening",
	StatusThinking:   "thinking",
	StatusSpeaking:   "speaking",
	StatusError:      "error",
}

// String returns the lower-case status name used on the wire.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// live reports whether a session is open in this status.
func (s Status) live() bool {
	return s == StatusListening || s == StatusThinking || s == StatusSpeaking
}

// ErrEngineClosed is returned by [Engine.Start] after [Engine.Close].
var ErrEngineClosed = errors.New("session: engine closed")

// ErrActive is returned by [Engine.Start] while a session is connecting or
// open.
var ErrActive = errors.New("session: session already active")

// PermissionError reports that the microphone could not be acquired.
type PermissionError struct {
	Err error
}

// Error implements error.
func (e *PermissionError) Error() string {
	return "session: microphone unavailable: " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *PermissionError) Unwrap() error { return e.Err }

// TransportError reports a failure of the live session connection.
type TransportError struct {
	// Op is "connect" for dial failures and "session" for failures of an
	// open session.
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return "session: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }
