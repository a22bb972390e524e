// Package config assembles the gemini-live configuration from defaults, an
// optional YAML file, a .env file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-gemini-live/pkg/audioio"
	"github.com/teslashibe/go-gemini-live/pkg/session"
	"github.com/teslashibe/go-gemini-live/pkg/transport"
	"github.com/teslashibe/go-gemini-live/pkg/web"
)

// EnvAPIKey holds the API credential.
const EnvAPIKey = "GOOGLE_API_KEY"

// ErrMissingAPIKey is returned when no credential is configured.
var ErrMissingAPIKey = errors.New("config: " + EnvAPIKey + " is not set")

// WebConfig controls the optional status server.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Config is the full application configuration.
type Config struct {
	Session   session.Config   `yaml:"session"`
	Transport transport.Config `yaml:"transport"`
	Capture   audioio.Config   `yaml:"capture"`
	Playback  audioio.Config   `yaml:"playback"`
	Web       WebConfig        `yaml:"web"`
	Log       LogConfig        `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Session:   session.DefaultConfig(),
		Transport: transport.DefaultConfig(),
		Capture:   audioio.DefaultCaptureConfig(),
		Playback:  audioio.DefaultPlaybackConfig(),
		Web:       WebConfig{Addr: web.DefaultAddr},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load returns the defaults overlaid with the YAML file at path, if path
// is not empty. It does not read the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := cfg.decode(data); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding the environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv reads the API key through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	key := getenv(EnvAPIKey)
	if key == "" {
		return ErrMissingAPIKey
	}
	c.Transport.APIKey = key
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		if errors.Is(err, transport.ErrMissingAPIKey) {
			return ErrMissingAPIKey
		}
		return err
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		return errors.New("config: web.addr is required when web is enabled")
	}
	return nil
}
