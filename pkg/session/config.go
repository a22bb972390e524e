package session

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-gemini-live/pkg/audioio"
)

// Default session settings.
const (
	DefaultModel         = "models/gemini-2.5-flash-preview-native-audio-dialog"
	DefaultVoice         = "Aoede"
	DefaultInstruction   = "You are a helpful assistant. Be concise and respond naturally in conversation."
	DefaultSetupTimeout  = 30 * time.Second
	DefaultShutdownGrace = 2 * time.Second
	DefaultRetryDelay    = 10 * time.Millisecond
	DefaultQueueCapacity = 128
)

// Config holds session configuration.
type Config struct {
	// Model is the model resource name sent in setup.
	Model string `yaml:"model" json:"model"`

	// Voice is a prebuilt voice name. Empty leaves the server default.
	Voice string `yaml:"voice" json:"voice"`

	// SystemInstruction is optional.
	SystemInstruction string `yaml:"system_instruction" json:"system_instruction"`

	// Transcription asks the server for input and output transcripts.
	// Default: true
	Transcription bool `yaml:"transcription" json:"transcription"`

	// SetupTimeout is how long to wait for setupComplete before streaming
	// anyway.
	// Default: 30s
	SetupTimeout time.Duration `yaml:"setup_timeout" json:"setup_timeout"`

	// ShutdownGrace bounds the wait for in-flight device I/O at shutdown.
	// Default: 2s
	ShutdownGrace time.Duration `yaml:"shutdown_grace" json:"shutdown_grace"`

	// PollInterval is the playback sleep on an empty queue.
	// Default: 10ms
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// RetryDelay is the pause after a malformed inbound frame.
	// Default: 10ms
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`

	// QueueCapacity bounds the inbound audio queue, in chunks.
	// Default: 128
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`

	// FatalUpstreamErrors ends the session on a server error envelope
	// instead of logging it.
	// Default: false
	FatalUpstreamErrors bool `yaml:"fatal_upstream_errors" json:"fatal_upstream_errors"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Model:             DefaultModel,
		Voice:             DefaultVoice,
		SystemInstruction: DefaultInstruction,
		Transcription:     true,
		SetupTimeout:      DefaultSetupTimeout,
		ShutdownGrace:     DefaultShutdownGrace,
		PollInterval:      audioio.DefaultPollInterval,
		RetryDelay:        DefaultRetryDelay,
		QueueCapacity:     DefaultQueueCapacity,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("session: model is required")
	}
	if c.SetupTimeout <= 0 {
		return fmt.Errorf("session: setup_timeout must be positive, got %v", c.SetupTimeout)
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("session: shutdown_grace must be positive, got %v", c.ShutdownGrace)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("session: poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("session: retry_delay must not be negative, got %v", c.RetryDelay)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("session: queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	return nil
}
