package transport

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// acceptGUID is the fixed RFC 6455 suffix for Sec-WebSocket-Accept.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// HandshakeResponse is the parsed reply to the upgrade request.
type HandshakeResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
}

// newChallengeKey returns a fresh Sec-WebSocket-Key: 16 random bytes,
// base64 encoded.
func newChallengeKey() string {
	id := uuid.New()
	return base64.StdEncoding.EncodeToString(id[:])
}

// computeAccept returns the Sec-WebSocket-Accept value expected for key.
func computeAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// upgrade sends the HTTP Upgrade request over conn and validates the
// response. Bytes following the response stay buffered in br.
func upgrade(conn net.Conn, br *bufio.Reader, cfg *Config) (HandshakeResponse, error) {
	key := newChallengeKey()

	u, err := url.ParseRequestURI(cfg.requestURI(cfg.APIKey))
	if err != nil {
		return HandshakeResponse{}, err
	}
	req := &http.Request{
		Method:     http.MethodGet,
		URL:        u,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Host:       cfg.Addr(),
		Header: http.Header{
			"Upgrade":               {"websocket"},
			"Connection":            {"Upgrade"},
			"Sec-WebSocket-Key":     {key},
			"Sec-WebSocket-Version": {"13"},
		},
	}
	if cfg.Port == DefaultPort {
		req.Host = cfg.Host
	}
	if err := req.Write(conn); err != nil {
		return HandshakeResponse{}, err
	}

	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return HandshakeResponse{}, err
	}
	hr := HandshakeResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
	}

	if resp.StatusCode != http.StatusSwitchingProtocols {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return hr, &HandshakeRejectedError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	reject := func(reason string) error {
		return &HandshakeRejectedError{StatusCode: resp.StatusCode, Status: resp.Status, Reason: reason}
	}
	if !strings.EqualFold(resp.Header.Get("Upgrade"), "websocket") {
		return hr, reject("missing Upgrade: websocket")
	}
	if !headerContainsToken(resp.Header, "Connection", "upgrade") {
		return hr, reject("missing Connection: Upgrade")
	}
	if resp.Header.Get("Sec-WebSocket-Accept") != computeAccept(key) {
		return hr, reject("bad Sec-WebSocket-Accept")
	}
	return hr, nil
}

// headerContainsToken reports whether a comma-separated header lists token.
func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}
