package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-gemini-live/pkg/protocol"
)

// Sentinel errors for the session package.
var (
	// ErrPeerClosed indicates the server closed the connection.
	ErrPeerClosed = errors.New("session: peer closed connection")

	// ErrConnectionLost indicates the connection failed mid-stream.
	ErrConnectionLost = errors.New("session: connection lost")

	// ErrInvalidTransition indicates a backwards or repeated state change.
	ErrInvalidTransition = errors.New("session: invalid state transition")
)

// SetupError is a failure before streaming began: connect, upgrade, the
// setup send, or the server closing before acknowledging setup.
type SetupError struct {
	// Stage is "connect", "setup" or "await_ack".
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("session: setup failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *SetupError) Unwrap() error {
	return e.Err
}

// DeviceError is a microphone or speaker failure.
type DeviceError struct {
	// Device is "capture" or "playback".
	Device string
	// Op is "open", "read" or "write".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("session: %s device %s: %v", e.Device, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// UpstreamError is a server error envelope treated as fatal.
type UpstreamError struct {
	Err *protocol.ServerError
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return "session: upstream error: " + e.Err.Error()
}

// Unwrap returns the server error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ExitCode maps the result of Run to a process exit status. Setup, device
// and fatal upstream failures exit 1; interrupts and server-side endings
// exit 0.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	var (
		se *SetupError
		de *DeviceError
		ue *UpstreamError
	)
	if errors.As(err, &se) || errors.As(err, &de) || errors.As(err, &ue) {
		return 1
	}
	return 0
}
