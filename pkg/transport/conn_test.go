package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-gemini-live/pkg/wsframe"
)

const testKey = "secret-key"

var upgrader = websocket.Upgrader{}

// newTestServer starts a TLS server and returns a Config pointing at it.
func newTestServer(t *testing.T, handler http.HandlerFunc) Config {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())

	cfg := DefaultConfig()
	cfg.Host = u.Hostname()
	cfg.Port = port
	cfg.APIKey = testKey
	cfg.DialTimeout = 2 * time.Second
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.TLSConfig = srv.Client().Transport.(*http.Transport).TLSClientConfig.Clone()
	return cfg
}

// echoHandler upgrades requests carrying testKey and echoes messages back.
func echoHandler(closed chan<- int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") != testKey {
			http.Error(w, "API key not valid", http.StatusForbidden)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				var ce *websocket.CloseError
				if closed != nil && errors.As(err, &ce) {
					closed <- ce.Code
				}
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}
}

func TestDialEcho(t *testing.T) {
	cfg := newTestServer(t, echoHandler(nil))

	conn, err := Dial(testContext(t), cfg, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if conn.Response.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("Response.StatusCode = %d, want 101", conn.Response.StatusCode)
	}

	for _, msg := range []string{`{"setup":{}}`, strings.Repeat("a", 65535)} {
		if err := conn.WriteText([]byte(msg)); err != nil {
			t.Fatalf("WriteText() error = %v", err)
		}
		f, err := conn.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		if f.Opcode != wsframe.OpText {
			t.Errorf("Opcode = %s, want text", f.Opcode)
		}
		if string(f.Payload) != msg {
			t.Errorf("echo mismatch: got %d bytes, want %d", len(f.Payload), len(msg))
		}
	}
}

func TestDialRejectsBadCredential(t *testing.T) {
	cfg := newTestServer(t, echoHandler(nil))
	cfg.APIKey = "wrong"

	_, err := Dial(testContext(t), cfg, nil)
	var rejected *HandshakeRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Dial() error = %v, want HandshakeRejectedError", err)
	}
	if rejected.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", rejected.StatusCode)
	}
	if !strings.Contains(rejected.Body, "API key not valid") {
		t.Errorf("Body = %q", rejected.Body)
	}
}

func TestDialRejectsBadAccept(t *testing.T) {
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer cannot hijack")
			return
		}
		conn, rw, err := hj.Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		rw.WriteString("HTTP/1.1 101 Switching Protocols\r\n" +
			"Upgrade: websocket\r\nConnection: Upgrade\r\n" +
			"Sec-WebSocket-Accept: bogus\r\n\r\n")
		rw.Flush()
	})

	_, err := Dial(testContext(t), cfg, nil)
	var rejected *HandshakeRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Dial() error = %v, want HandshakeRejectedError", err)
	}
	if rejected.StatusCode != http.StatusSwitchingProtocols || rejected.Reason == "" {
		t.Errorf("rejected = %+v, want 101 with a reason", rejected)
	}
}

func TestDialConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.APIKey = testKey
	cfg.DialTimeout = time.Second

	_, err = Dial(testContext(t), cfg, nil)
	var ce *ConnectError
	if !errors.As(err, &ce) || ce.Op != "dial" {
		t.Errorf("Dial() error = %v, want ConnectError{Op: dial}", err)
	}
}

func TestDialResolveFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "does-not-exist.invalid"
	cfg.APIKey = testKey
	cfg.DialTimeout = 2 * time.Second

	_, err := Dial(testContext(t), cfg, nil)
	var ce *ConnectError
	if !errors.As(err, &ce) || ce.Op != "resolve" {
		t.Errorf("Dial() error = %v, want ConnectError{Op: resolve}", err)
	}
}

func TestDialTLSFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())

	cfg := DefaultConfig()
	cfg.Host = u.Hostname()
	cfg.Port = port
	cfg.APIKey = testKey
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.TLSConfig = &tls.Config{InsecureSkipVerify: true}

	_, err := Dial(testContext(t), cfg, nil)
	var te *TLSHandshakeError
	if !errors.As(err, &te) {
		t.Errorf("Dial() error = %v, want TLSHandshakeError", err)
	}
}

func TestDialMissingKey(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := Dial(testContext(t), cfg, nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Dial() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestPingAnsweredWithPong(t *testing.T) {
	ponged := make(chan string, 1)
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		ws.SetPongHandler(func(data string) error {
			ponged <- data
			return nil
		})
		ws.WriteControl(websocket.PingMessage, []byte("are-you-there"), time.Now().Add(time.Second))
		ws.ReadMessage()
	})

	conn, err := Dial(testContext(t), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	f, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if f.Opcode != wsframe.OpPing {
		t.Fatalf("Opcode = %s, want ping", f.Opcode)
	}
	if err := conn.WritePong(f.Payload); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ponged:
		if got != "are-you-there" {
			t.Errorf("pong payload = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Error("server never saw the pong")
	}
}

func TestCloseSendsNormalClosure(t *testing.T) {
	closed := make(chan int, 1)
	cfg := newTestServer(t, echoHandler(closed))

	conn, err := Dial(testContext(t), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := conn.WriteText([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteText() after Close error = %v, want ErrClosed", err)
	}

	select {
	case code := <-closed:
		if code != websocket.CloseNormalClosure {
			t.Errorf("close code = %d, want 1000", code)
		}
	case <-time.After(2 * time.Second):
		t.Error("server never saw a close frame")
	}
}

func TestPeerCloseSurfacesConnectionClosed(t *testing.T) {
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	})

	conn, err := Dial(testContext(t), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	f, err := conn.ReadFrame()
	if !errors.Is(err, wsframe.ErrConnectionClosed) {
		t.Fatalf("ReadFrame() error = %v, want ErrConnectionClosed", err)
	}
	if f.CloseCode() != websocket.CloseGoingAway {
		t.Errorf("CloseCode() = %d, want 1001", f.CloseCode())
	}
}

func TestRedactedHidesCredential(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "AIza-very-secret"

	if strings.Contains(cfg.Redacted(), cfg.APIKey) {
		t.Errorf("Redacted() = %q leaks the key", cfg.Redacted())
	}
	if !strings.Contains(cfg.URL(), "key=AIza-very-secret") {
		t.Errorf("URL() = %q, want key parameter", cfg.URL())
	}
	want := "wss://generativelanguage.googleapis.com:443" + DefaultPath + "?key=REDACTED"
	if cfg.Redacted() != want {
		t.Errorf("Redacted() = %q, want %q", cfg.Redacted(), want)
	}
}

func TestComputeAccept(t *testing.T) {
	// Sample handshake from RFC 6455 section 1.3.
	if got := computeAccept("dGhlIHNhbXBsZSBub25jZQ=="); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("computeAccept() = %q", got)
	}
}

func TestUpgradeRequestShape(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cfg := DefaultConfig()
	cfg.APIKey = testKey

	reqCh := make(chan *http.Request, 1)
	go func() {
		req, err := http.ReadRequest(bufio.NewReader(server))
		if err != nil {
			reqCh <- nil
			return
		}
		reqCh <- req
		server.Write([]byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n"))
	}()

	_, err := upgrade(client, bufio.NewReader(client), &cfg)
	var rejected *HandshakeRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("upgrade() error = %v, want HandshakeRejectedError", err)
	}

	req := <-reqCh
	if req == nil {
		t.Fatal("server could not parse the upgrade request")
	}
	if req.Host != DefaultHost {
		t.Errorf("Host = %q, want %q", req.Host, DefaultHost)
	}
	if req.URL.Path != DefaultPath || req.URL.Query().Get("key") != testKey {
		t.Errorf("request URI = %q", req.URL.String())
	}
	if req.Header.Get("Sec-WebSocket-Version") != "13" || req.Header.Get("Sec-WebSocket-Key") == "" {
		t.Errorf("missing websocket headers: %v", req.Header)
	}
}

func TestCloseWithStalledWrite(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	c := &Conn{
		conn:   local,
		frames: wsframe.NewReader(local, wsframe.DefaultMaxPayload),
		logger: slog.Default(),
	}

	// Nothing reads remote, so this write blocks inside the write lock.
	writeErr := make(chan error, 1)
	go func() { writeErr <- c.WriteText([]byte("stalled")) }()
	time.Sleep(50 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(closeWriteTimeout + 2*time.Second):
		t.Fatal("Close() blocked behind a stalled write")
	}
	select {
	case err := <-writeErr:
		if err == nil {
			t.Error("WriteText() error = nil, want failure after Close")
		}
	case <-time.After(time.Second):
		t.Error("stalled WriteText() did not return")
	}
}

// testContext mirrors testing.T.Context (Go 1.24+) for older toolchains.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
