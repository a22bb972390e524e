// Package wsframe implements the subset of RFC 6455 framing used by the live
// client: unfragmented text frames out, text/binary/control frames in.
package wsframe

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Opcode identifies the frame type.
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// String returns a short name for the opcode.
func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(0x%x)", byte(o))
	}
}

// IsControl reports whether the opcode is a control frame.
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

const (
	finBit  = 0x80
	rsvBits = 0x70
	maskBit = 0x80

	// MaxShortPayload is the largest payload that fits the 7-bit length.
	MaxShortPayload = 125
	// MaxTextPayload is the largest outbound payload (16-bit extended length).
	MaxTextPayload = 65535

	// CloseNormal is the status code sent on a clean shutdown.
	CloseNormal = 1000
)

// MaskKey is the 4-byte client masking key.
type MaskKey [4]byte

// NewMaskKey returns a random masking key.
func NewMaskKey() MaskKey {
	var k MaskKey
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(k[:])
	return k
}

// Frame is one decoded wire frame.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	Key     MaskKey
	Payload []byte
}

// CloseCode returns the status code carried by a close frame, or 0.
func (f Frame) CloseCode() int {
	if f.Opcode != OpClose || len(f.Payload) < 2 {
		return 0
	}
	return int(binary.BigEndian.Uint16(f.Payload[:2]))
}

// CloseReason returns the UTF-8 reason carried by a close frame.
func (f Frame) CloseReason() string {
	if f.Opcode != OpClose || len(f.Payload) <= 2 {
		return ""
	}
	return string(f.Payload[2:])
}

// EncodeText wraps payload in a single final, masked text frame.
func EncodeText(payload []byte, key MaskKey) ([]byte, error) {
	if len(payload) > MaxTextPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	return appendFrame(nil, OpText, payload, key), nil
}

// AppendText is EncodeText appending into dst, so callers can reuse buffers.
func AppendText(dst, payload []byte, key MaskKey) ([]byte, error) {
	if len(payload) > MaxTextPayload {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	return appendFrame(dst, OpText, payload, key), nil
}

// EncodeClose builds a masked close frame with an optional reason.
func EncodeClose(code int, reason string, key MaskKey) ([]byte, error) {
	if 2+len(reason) > MaxShortPayload {
		return nil, fmt.Errorf("%w: close reason is %d bytes", ErrPayloadTooLarge, len(reason))
	}
	payload := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	payload = append(payload, reason...)
	return appendFrame(nil, OpClose, payload, key), nil
}

// EncodePong builds a masked pong echoing a ping payload.
func EncodePong(payload []byte, key MaskKey) ([]byte, error) {
	if len(payload) > MaxShortPayload {
		return nil, fmt.Errorf("%w: pong payload is %d bytes", ErrPayloadTooLarge, len(payload))
	}
	return appendFrame(nil, OpPong, payload, key), nil
}

func appendFrame(dst []byte, op Opcode, payload []byte, key MaskKey) []byte {
	n := len(payload)
	dst = append(dst, finBit|byte(op))
	switch {
	case n <= MaxShortPayload:
		dst = append(dst, maskBit|byte(n))
	default:
		dst = append(dst, maskBit|126, byte(n>>8), byte(n))
	}
	dst = append(dst, key[:]...)
	start := len(dst)
	dst = append(dst, payload...)
	maskBytes(dst[start:], key, 0)
	return dst
}

// maskBytes XORs b with key starting at key offset pos and returns the next
// offset.
func maskBytes(b []byte, key MaskKey, pos int) int {
	for i := range b {
		b[i] ^= key[(pos+i)&3]
	}
	return (pos + len(b)) & 3
}

// header is the fixed part of a frame after length resolution.
type header struct {
	fin     bool
	rsv     byte
	opcode  Opcode
	masked  bool
	length  uint64
	lenSize int // bytes of extended length (0, 2 or 8)
}

func parseFirstTwo(b0, b1 byte) header {
	h := header{
		fin:    b0&finBit != 0,
		rsv:    b0 & rsvBits,
		opcode: Opcode(b0 & 0x0F),
		masked: b1&maskBit != 0,
		length: uint64(b1 & 0x7F),
	}
	switch h.length {
	case 126:
		h.lenSize = 2
	case 127:
		h.lenSize = 8
	}
	return h
}

func (h *header) resolveLength(ext []byte) {
	switch h.lenSize {
	case 2:
		h.length = uint64(binary.BigEndian.Uint16(ext))
	case 8:
		h.length = binary.BigEndian.Uint64(ext)
	}
}

// Decode parses one frame from the front of b. It returns the frame and the
// number of bytes consumed. A masked payload is unmasked into a fresh slice;
// b is never modified. A close frame is returned together with
// ErrConnectionClosed.
func Decode(b []byte) (Frame, int, error) {
	if len(b) < 2 {
		return Frame{}, 0, fmt.Errorf("%w: %d byte header", ErrMalformedFrame, len(b))
	}
	h := parseFirstTwo(b[0], b[1])
	off := 2
	if len(b) < off+h.lenSize {
		return Frame{}, 0, fmt.Errorf("%w: truncated extended length", ErrMalformedFrame)
	}
	h.resolveLength(b[off : off+h.lenSize])
	off += h.lenSize

	f := Frame{Fin: h.fin, Opcode: h.opcode, Masked: h.masked}
	if h.masked {
		if len(b) < off+4 {
			return Frame{}, 0, fmt.Errorf("%w: truncated mask key", ErrMalformedFrame)
		}
		copy(f.Key[:], b[off:off+4])
		off += 4
	}
	if h.length > uint64(len(b)-off) {
		return Frame{}, 0, fmt.Errorf("%w: declared %d bytes, %d available",
			ErrMalformedFrame, h.length, len(b)-off)
	}
	end := off + int(h.length)
	if h.masked {
		f.Payload = make([]byte, h.length)
		copy(f.Payload, b[off:end])
		maskBytes(f.Payload, f.Key, 0)
	} else {
		f.Payload = b[off:end]
	}
	if err := h.validate(); err != nil {
		return f, end, err
	}
	if f.Opcode == OpClose {
		return f, end, ErrConnectionClosed
	}
	return f, end, nil
}

func (h header) validate() error {
	if h.rsv != 0 {
		return fmt.Errorf("%w: reserved bits 0x%02x set", ErrMalformedFrame, h.rsv)
	}
	switch h.opcode {
	case OpText, OpBinary, OpClose, OpPing, OpPong:
	case OpContinuation:
		return fmt.Errorf("%w: fragmented messages are not supported", ErrMalformedFrame)
	default:
		return fmt.Errorf("%w: unknown %s", ErrMalformedFrame, h.opcode)
	}
	if !h.fin {
		return fmt.Errorf("%w: fragmented messages are not supported", ErrMalformedFrame)
	}
	if h.opcode.IsControl() && h.length > MaxShortPayload {
		return fmt.Errorf("%w: %s frame with %d byte payload", ErrMalformedFrame, h.opcode, h.length)
	}
	return nil
}
