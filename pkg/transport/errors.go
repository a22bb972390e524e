package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for the transport package.
var (
	// ErrMissingAPIKey indicates the credential was not provided.
	ErrMissingAPIKey = errors.New("transport: API key is required")

	// ErrClosed is returned for operations on a closed connection.
	ErrClosed = errors.New("transport: connection closed")
)

// ConnectError reports a failure to reach the endpoint before TLS.
type ConnectError struct {
	// Op is "resolve" or "dial".
	Op   string
	Addr string
	Err  error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Addr, e.Err)
}

// Unwrap returns the underlying network error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TLSHandshakeError reports a failed TLS negotiation.
type TLSHandshakeError struct {
	Host string
	Err  error
}

// Error implements the error interface.
func (e *TLSHandshakeError) Error() string {
	return fmt.Sprintf("transport: tls handshake with %s: %v", e.Host, e.Err)
}

// Unwrap returns the underlying TLS error.
func (e *TLSHandshakeError) Unwrap() error {
	return e.Err
}

// HandshakeRejectedError reports an upgrade the server did not accept.
type HandshakeRejectedError struct {
	StatusCode int
	Status     string

	// Reason describes what was wrong with an otherwise successful status.
	Reason string

	// Body holds the start of the response body, if any.
	Body string
}

// Error implements the error interface.
func (e *HandshakeRejectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("transport: upgrade rejected (%s): %s", e.Status, e.Reason)
	}
	if e.Body != "" {
		return fmt.Sprintf("transport: upgrade rejected (%s): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("transport: upgrade rejected (%s)", e.Status)
}
