//go:build cgo

package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// hardwareBackends is true when the cgo device backends are compiled in.
const hardwareBackends = true

// PortAudioSource captures audio through a blocking PortAudio stream.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []float32
	closed bool
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return &PortAudioSource{
		cfg:    cfg,
		logger: logger,
		buf:    make([]float32, cfg.BufferSamples()),
	}, nil
}

// Start initializes PortAudio and opens the input stream.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	device, err := findPortAudioDevice(s.cfg.Device, true)
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = s.cfg.Channels
	params.SampleRate = float64(s.cfg.SampleRate)
	params.FramesPerBuffer = s.cfg.BufferSize()

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("portaudio: open input %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("portaudio: start input: %w", err)
	}
	s.stream = stream

	s.logger.Info("portaudio source started",
		"device", device.Name,
		"sample_rate", s.cfg.SampleRate,
		"frames_per_buffer", params.FramesPerBuffer,
	)
	return nil
}

// Read blocks for one buffer and converts it to int16.
func (s *PortAudioSource) Read(dst []int16) (int, error) {
	if s.stream == nil {
		return 0, io.EOF
	}
	err := s.stream.Read()
	n := Float32ToInt16(dst, s.buf)
	if err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			return n, ErrInputOverflowed
		}
		return 0, fmt.Errorf("portaudio: read: %w", err)
	}
	return n, nil
}

// Config returns the audio configuration.
func (s *PortAudioSource) Config() Config {
	return s.cfg
}

// Name returns "portaudio".
func (s *PortAudioSource) Name() string {
	return string(BackendPortAudio)
}

// Close stops the stream and releases PortAudio.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.stream == nil {
		return nil
	}
	s.stream.Stop()
	err := s.stream.Close()
	portaudio.Terminate()
	s.logger.Info("portaudio source closed")
	return err
}

// PortAudioSink plays audio through a blocking PortAudio stream. Samples
// that do not fill a whole device buffer are carried to the next Write or
// padded out by Flush.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	fill   int
	closed bool
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (Sink, error) {
	return &PortAudioSink{
		cfg:    cfg,
		logger: logger,
		buf:    make([]int16, cfg.BufferSamples()),
	}, nil
}

// Start initializes PortAudio and opens the output stream.
func (s *PortAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	device, err := findPortAudioDevice(s.cfg.Device, false)
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.LowLatencyParameters(nil, device)
	params.Output.Channels = s.cfg.Channels
	params.SampleRate = float64(s.cfg.SampleRate)
	params.FramesPerBuffer = s.cfg.BufferSize()

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("portaudio: open output %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("portaudio: start output: %w", err)
	}
	s.stream = stream

	s.logger.Info("portaudio sink started",
		"device", device.Name,
		"sample_rate", s.cfg.SampleRate,
		"frames_per_buffer", params.FramesPerBuffer,
	)
	return nil
}

// Write copies samples into the device buffer, writing each time it fills.
func (s *PortAudioSink) Write(samples []int16) error {
	if s.stream == nil {
		return io.ErrClosedPipe
	}

	underflowed := false
	for len(samples) > 0 {
		n := copy(s.buf[s.fill:], samples)
		s.fill += n
		samples = samples[n:]
		if s.fill < len(s.buf) {
			break
		}
		s.fill = 0
		if err := s.stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				underflowed = true
				continue
			}
			return fmt.Errorf("portaudio: write: %w", err)
		}
	}
	if underflowed {
		return ErrOutputUnderflowed
	}
	return nil
}

// Flush pads the partial device buffer with silence and writes it.
func (s *PortAudioSink) Flush() error {
	if s.stream == nil {
		return io.ErrClosedPipe
	}
	if s.fill == 0 {
		return nil
	}
	clear(s.buf[s.fill:])
	s.fill = 0
	if err := s.stream.Write(); err != nil {
		if errors.Is(err, portaudio.OutputUnderflowed) {
			return ErrOutputUnderflowed
		}
		return fmt.Errorf("portaudio: write: %w", err)
	}
	return nil
}

// Config returns the audio configuration.
func (s *PortAudioSink) Config() Config {
	return s.cfg
}

// Name returns "portaudio".
func (s *PortAudioSink) Name() string {
	return string(BackendPortAudio)
}

// Close stops the stream and releases PortAudio.
func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.stream == nil {
		return nil
	}
	s.stream.Stop()
	err := s.stream.Close()
	portaudio.Terminate()
	s.logger.Info("portaudio sink closed")
	return err
}

// findPortAudioDevice returns the named device, or the default input or
// output device when name is empty.
func findPortAudioDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		var (
			d   *portaudio.DeviceInfo
			err error
		)
		if input {
			d, err = portaudio.DefaultInputDevice()
		} else {
			d, err = portaudio.DefaultOutputDevice()
		}
		if err != nil {
			return nil, fmt.Errorf("portaudio: default device: %w", err)
		}
		return d, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	for _, d := range devices {
		if d.Name != name {
			continue
		}
		if input && d.MaxInputChannels > 0 || !input && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio: device %q not found", name)
}
