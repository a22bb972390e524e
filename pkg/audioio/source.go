package audioio

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrInputOverflowed reports that the device dropped input before Read
	// was called. The returned samples are still valid.
	ErrInputOverflowed = errors.New("audioio: input overflowed")

	// ErrOutputUnderflowed reports a gap in playback. The write succeeded.
	ErrOutputUnderflowed = errors.New("audioio: output underflowed")

	// ErrBackendUnavailable indicates the backend was not compiled in.
	ErrBackendUnavailable = errors.New("audioio: backend unavailable")
)

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start opens the device and begins capture.
	Start(ctx context.Context) error

	// Read blocks until one buffer of interleaved samples is available and
	// copies it into dst, returning the number of samples written.
	// ErrInputOverflowed is non-fatal; any other error is.
	Read(dst []int16) (int, error)

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "portaudio", "mock").
	Name() string

	// Close stops capture and releases the device.
	// It is safe to call Close multiple times.
	io.Closer
}

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Start opens the device and begins playback.
	Start(ctx context.Context) error

	// Write plays interleaved samples, blocking while the device buffer is
	// full. ErrOutputUnderflowed is non-fatal; any other error is.
	Write(samples []int16) error

	// Flush plays samples held back for a partially filled device buffer,
	// padding it with silence. It is called when no more audio is pending.
	Flush() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	// Close stops playback and releases the device.
	// It is safe to call Close multiple times.
	io.Closer
}
