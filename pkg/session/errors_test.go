package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/teslashibe/go-gemini-live/pkg/protocol"
)

func TestExitCode(t *testing.T) {
	errIO := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"interrupt", context.Canceled, 0},
		{"peer closed", fmt.Errorf("%w: code 1000", ErrPeerClosed), 0},
		{"connection lost", fmt.Errorf("%w: reset", ErrConnectionLost), 0},
		{"setup", &SetupError{Stage: "connect", Err: errIO}, 1},
		{"device", &DeviceError{Device: "capture", Op: "read", Err: errIO}, 1},
		{"wrapped device", fmt.Errorf("run: %w", &DeviceError{Device: "playback", Op: "write", Err: errIO}), 1},
		{"upstream", &UpstreamError{Err: &protocol.ServerError{Code: 500, Message: "internal"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	errIO := errors.New("boom")
	tests := []struct {
		err  error
		want string
	}{
		{&SetupError{Stage: "await_ack", Err: errIO}, "session: setup failed at await_ack: boom"},
		{&DeviceError{Device: "capture", Op: "open", Err: errIO}, "session: capture device open: boom"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
		if !errors.Is(tt.err, errIO) {
			t.Errorf("errors.Is(%v, errIO) = false", tt.err)
		}
	}
}
