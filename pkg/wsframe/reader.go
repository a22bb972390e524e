package wsframe

import (
	"fmt"
	"io"
)

// DefaultMaxPayload bounds inbound payloads.
const DefaultMaxPayload = 16 << 20

// Reader decodes frames from a byte stream. The returned payload aliases an
// internal buffer that is reused by the next call to Next.
type Reader struct {
	r          io.Reader
	maxPayload uint64
	hdr        [14]byte
	buf        []byte
}

// NewReader returns a Reader capping payloads at maxPayload bytes.
// A non-positive maxPayload selects DefaultMaxPayload.
func NewReader(r io.Reader, maxPayload int) *Reader {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Reader{r: r, maxPayload: uint64(maxPayload)}
}

// Next reads one complete frame. Errors wrapping ErrMalformedFrame leave the
// stream positioned at the following frame. A close frame is returned with
// ErrConnectionClosed. I/O errors from the underlying reader are returned
// unchanged (io.EOF on a clean end of stream).
func (r *Reader) Next() (Frame, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:2]); err != nil {
		return Frame{}, err
	}
	h := parseFirstTwo(r.hdr[0], r.hdr[1])
	if h.lenSize > 0 {
		if _, err := io.ReadFull(r.r, r.hdr[2:2+h.lenSize]); err != nil {
			return Frame{}, unexpected(err)
		}
		h.resolveLength(r.hdr[2 : 2+h.lenSize])
	}

	f := Frame{Fin: h.fin, Opcode: h.opcode, Masked: h.masked}
	if h.masked {
		if _, err := io.ReadFull(r.r, f.Key[:]); err != nil {
			return Frame{}, unexpected(err)
		}
	}

	if h.length > r.maxPayload {
		if err := r.discard(h.length); err != nil {
			return Frame{}, err
		}
		return Frame{}, fmt.Errorf("%w: %d byte payload exceeds %d byte limit",
			ErrMalformedFrame, h.length, r.maxPayload)
	}

	if uint64(cap(r.buf)) < h.length {
		r.buf = make([]byte, h.length)
	}
	r.buf = r.buf[:h.length]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return Frame{}, unexpected(err)
	}
	if h.masked {
		maskBytes(r.buf, f.Key, 0)
	}
	f.Payload = r.buf

	if err := h.validate(); err != nil {
		return Frame{}, err
	}
	if f.Opcode == OpClose {
		return f, ErrConnectionClosed
	}
	return f, nil
}

func (r *Reader) discard(n uint64) error {
	for n > 0 {
		chunk := n
		if chunk > 1<<30 {
			chunk = 1 << 30
		}
		if _, err := io.CopyN(io.Discard, r.r, int64(chunk)); err != nil {
			return unexpected(err)
		}
		n -= chunk
	}
	return nil
}

// unexpected turns an EOF in the middle of a frame into ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
