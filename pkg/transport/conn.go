package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-gemini-live/pkg/wsframe"
)

// closeWriteTimeout bounds the best-effort close frame on Close.
const closeWriteTimeout = time.Second

// Conn is an upgraded, TLS-secured connection. ReadFrame must be called
// from a single goroutine; writes are serialized internally.
type Conn struct {
	conn   net.Conn
	br     *bufio.Reader
	frames *wsframe.Reader
	logger *slog.Logger

	// Response is the accepted upgrade response.
	Response HandshakeResponse

	wmu  sync.Mutex
	wbuf []byte

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Dial resolves the endpoint, connects, performs the TLS handshake and
// upgrades the connection. Each stage fails with its own error type.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("endpoint", cfg.Redacted())

	raw, err := dialTCP(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("tcp connected", "remote", raw.RemoteAddr().String())

	hctx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()

	tlsConn := tls.Client(raw, tlsConfig(&cfg))
	if err := tlsConn.HandshakeContext(hctx); err != nil {
		raw.Close()
		return nil, &TLSHandshakeError{Host: cfg.Host, Err: err}
	}
	logger.Debug("tls established", "version", tls.VersionName(tlsConn.ConnectionState().Version))

	if deadline, ok := hctx.Deadline(); ok {
		tlsConn.SetDeadline(deadline)
	}
	br := bufio.NewReaderSize(tlsConn, 64*1024)
	resp, err := upgrade(tlsConn, br, &cfg)
	if err != nil {
		tlsConn.Close()
		return nil, err
	}
	tlsConn.SetDeadline(time.Time{})

	logger.Info("connection upgraded", "status", resp.Status)

	return &Conn{
		conn:     tlsConn,
		br:       br,
		frames:   wsframe.NewReader(br, cfg.MaxPayload),
		logger:   logger,
		Response: resp,
	}, nil
}

// dialTCP resolves the host and connects to the first reachable address.
func dialTCP(ctx context.Context, cfg *Config) (net.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	addrs := []string{cfg.Host}
	if net.ParseIP(cfg.Host) == nil {
		resolver := cfg.Resolver
		if resolver == nil {
			resolver = net.DefaultResolver
		}
		var err error
		addrs, err = resolver.LookupHost(dctx, cfg.Host)
		if err != nil {
			return nil, &ConnectError{Op: "resolve", Addr: cfg.Host, Err: err}
		}
		if len(addrs) == 0 {
			return nil, &ConnectError{Op: "resolve", Addr: cfg.Host, Err: fmt.Errorf("no addresses")}
		}
	}

	var d net.Dialer
	var lastErr error
	port := strconv.Itoa(cfg.Port)
	for _, a := range addrs {
		conn, err := d.DialContext(dctx, "tcp", net.JoinHostPort(a, port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, &ConnectError{Op: "dial", Addr: cfg.Addr(), Err: lastErr}
}

func tlsConfig(cfg *Config) *tls.Config {
	var tc *tls.Config
	if cfg.TLSConfig != nil {
		tc = cfg.TLSConfig.Clone()
	} else {
		tc = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if tc.ServerName == "" {
		tc.ServerName = cfg.Host
	}
	if cfg.InsecureSkipVerify {
		tc.InsecureSkipVerify = true
	}
	return tc
}

// Read reads raw bytes from the connection. io.EOF means the peer closed
// the stream gracefully.
func (c *Conn) Read(p []byte) (int, error) {
	return c.br.Read(p)
}

// Write writes raw bytes to the connection.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.Write(p)
}

// WriteText sends payload as a single masked text frame.
func (c *Conn) WriteText(payload []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	buf, err := wsframe.AppendText(c.wbuf[:0], payload, wsframe.NewMaskKey())
	if err != nil {
		return err
	}
	c.wbuf = buf
	_, err = c.conn.Write(buf)
	return err
}

// WritePong answers a ping with the same payload.
func (c *Conn) WritePong(payload []byte) error {
	frame, err := wsframe.EncodePong(payload, wsframe.NewMaskKey())
	if err != nil {
		return err
	}
	_, err = c.Write(frame)
	return err
}

// ReadFrame returns the next inbound frame. The payload is only valid until
// the following call.
func (c *Conn) ReadFrame() (wsframe.Frame, error) {
	return c.frames.Next()
}

// Close sends a normal-closure frame, best effort, and closes the socket.
// It is safe to call Close multiple times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		frame, err := wsframe.EncodeClose(wsframe.CloseNormal, "", wsframe.NewMaskKey())
		if err == nil {
			// The deadline also fails a write stalled on a peer that
			// stopped reading, so the lock below is released.
			c.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
			c.wmu.Lock()
			if _, werr := c.conn.Write(frame); werr != nil {
				c.logger.Debug("close frame not sent", "err", werr)
			}
			c.wmu.Unlock()
		}
		c.closeErr = c.conn.Close()
		c.logger.Info("connection closed")
	})
	return c.closeErr
}
