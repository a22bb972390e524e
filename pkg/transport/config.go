// Package transport opens the TLS-secured upgraded connection to the live
// endpoint and moves frames over it.
package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/teslashibe/go-gemini-live/pkg/wsframe"
)

// Default endpoint settings.
const (
	DefaultHost = "generativelanguage.googleapis.com"
	DefaultPort = 443
	DefaultPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

// Config holds transport configuration.
type Config struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	Path string `yaml:"path" json:"path"`

	// APIKey is sent as the key= query parameter. It is never logged.
	APIKey string `yaml:"-" json:"-"`

	// DialTimeout bounds DNS resolution plus TCP connect.
	// Default: 10s
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`

	// HandshakeTimeout bounds the TLS handshake plus the HTTP upgrade.
	// Default: 10s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`

	// MaxPayload caps a single inbound frame.
	// Default: 16 MiB
	MaxPayload int `yaml:"max_payload" json:"max_payload"`

	InsecureSkipVerify bool `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`

	// TLSConfig overrides the client TLS settings (tests, custom roots).
	TLSConfig *tls.Config `yaml:"-" json:"-"`

	// Resolver overrides the system resolver.
	Resolver *net.Resolver `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config pointing at the public endpoint.
func DefaultConfig() Config {
	return Config{
		Host:             DefaultHost,
		Port:             DefaultPort,
		Path:             DefaultPath,
		DialTimeout:      10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxPayload:       wsframe.DefaultMaxPayload,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("transport: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("transport: port must be 1-65535, got %d", c.Port)
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("transport: dial_timeout must be positive, got %v", c.DialTimeout)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("transport: handshake_timeout must be positive, got %v", c.HandshakeTimeout)
	}
	return nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// requestURI is the path plus query sent on the request line.
func (c *Config) requestURI(key string) string {
	path := c.Path
	if path == "" {
		path = "/"
	}
	return path + "?" + url.Values{"key": {key}}.Encode()
}

// URL returns the full wss URL including the credential.
func (c *Config) URL() string {
	return "wss://" + c.Addr() + c.requestURI(c.APIKey)
}

// Redacted returns the wss URL with the credential masked, for logs.
func (c *Config) Redacted() string {
	return "wss://" + c.Addr() + c.requestURI("REDACTED")
}
