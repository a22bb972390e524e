//go:build !cgo

package audioio

import (
	"fmt"
	"log/slog"
)

// hardwareBackends is false when cgo is disabled.
const hardwareBackends = false

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, fmt.Errorf("%w: portaudio requires cgo", ErrBackendUnavailable)
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (Sink, error) {
	return nil, fmt.Errorf("%w: portaudio requires cgo", ErrBackendUnavailable)
}

func newMiniaudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, fmt.Errorf("%w: miniaudio requires cgo", ErrBackendUnavailable)
}

func newMiniaudioSink(cfg Config, logger *slog.Logger) (Sink, error) {
	return nil, fmt.Errorf("%w: miniaudio requires cgo", ErrBackendUnavailable)
}
