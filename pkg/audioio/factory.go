package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates a new audio source with the given configuration.
// If cfg.Backend is BackendAuto, the best available hardware backend is
// selected; ErrBackendUnavailable is returned when there is none.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend, err := resolveBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendPortAudio:
		return newPortAudioSource(cfg, logger)
	case BackendMiniaudio:
		return newMiniaudioSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewSink creates a new audio sink with the given configuration.
// If cfg.Backend is BackendAuto, the best available hardware backend is
// selected; ErrBackendUnavailable is returned when there is none.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend, err := resolveBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendPortAudio:
		return newPortAudioSink(cfg, logger)
	case BackendMiniaudio:
		return newMiniaudioSink(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

func resolveBackend(b Backend) (Backend, error) {
	if b == "" || b == BackendAuto {
		return detectBestBackend()
	}
	return b, nil
}

// detectBestBackend returns the best hardware backend compiled into this
// binary. The mock backend is never chosen automatically.
func detectBestBackend() (Backend, error) {
	if hardwareBackends {
		return BackendPortAudio, nil
	}
	return "", fmt.Errorf("%w: no audio device backend in this build (cgo disabled)", ErrBackendUnavailable)
}

// AvailableBackends returns the list of backends compiled into this binary.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if hardwareBackends {
		backends = append(backends, BackendPortAudio, BackendMiniaudio)
	}
	return backends
}
