// Package audioio provides microphone capture and speaker playback for the
// live client, plus the bounded queue that carries decoded audio between the
// network and the speaker.
//
// Supported backends:
//   - PortAudio - blocking stream I/O (cgo)
//   - miniaudio - malgo capture with oto playback (cgo)
//   - Mock - CI/Testing without hardware
//
// The backend is selected from configuration; "auto" picks PortAudio when
// the binary was built with cgo and falls back to the mock otherwise.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the best backend compiled into the binary.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio blocking streams.
	BackendPortAudio Backend = "portaudio"
	// BackendMiniaudio uses miniaudio for capture and oto for playback.
	BackendMiniaudio Backend = "miniaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Fixed stream rates of the live endpoint.
const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
)

// Config holds audio configuration for one direction.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the length of one device frame.
	// Default: 50ms
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device selects a device by name. Empty means the system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultCaptureConfig returns the microphone defaults: 16 kHz mono, 50ms.
func DefaultCaptureConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     CaptureSampleRate,
		Channels:       1,
		BufferDuration: 50 * time.Millisecond,
	}
}

// DefaultPlaybackConfig returns the speaker defaults: 24 kHz mono, 50ms.
func DefaultPlaybackConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     PlaybackSampleRate,
		Channels:       1,
		BufferDuration: 50 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendAuto, BackendPortAudio, BackendMiniaudio, BackendMock:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of frames per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferSamples returns the number of interleaved samples per buffer.
func (c *Config) BufferSamples() int {
	return c.BufferSize() * c.Channels
}

// BufferBytes returns the size of a buffer in bytes (assuming int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSamples() * 2
}
