package protocol

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEncoding is returned for text that is not standard base64.
var ErrInvalidEncoding = errors.New("protocol: invalid base64 encoding")

// EncodeBase64 encodes b with the standard alphabet and '=' padding.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// AppendBase64 appends the padded encoding of b to dst.
func AppendBase64(dst, b []byte) []byte {
	n := base64.StdEncoding.EncodedLen(len(b))
	start := len(dst)
	if cap(dst)-start < n {
		grown := make([]byte, start, start+n)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:start+n]
	base64.StdEncoding.Encode(dst[start:], b)
	return dst
}

// DecodeBase64 decodes standard-alphabet text. Trailing '=' padding is
// optional.
func DecodeBase64(s string) ([]byte, error) {
	return AppendDecodeBase64(nil, s)
}

// AppendDecodeBase64 decodes s and appends the bytes to dst.
func AppendDecodeBase64(dst []byte, s string) ([]byte, error) {
	raw := strings.TrimRight(s, "=")
	if len(s)-len(raw) > 2 {
		return dst, fmt.Errorf("%w: too much padding", ErrInvalidEncoding)
	}
	if len(raw)%4 == 1 {
		return dst, fmt.Errorf("%w: length %d cannot be decoded", ErrInvalidEncoding, len(raw))
	}
	n := base64.RawStdEncoding.DecodedLen(len(raw))
	start := len(dst)
	if cap(dst)-start < n {
		grown := make([]byte, start, start+n)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:start+n]
	m, err := base64.RawStdEncoding.Decode(dst[start:], []byte(raw))
	if err != nil {
		return dst[:start], fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return dst[:start+m], nil
}
