package wsframe

import "errors"

var (
	// ErrPayloadTooLarge is returned when an outbound payload does not fit
	// the supported length encodings.
	ErrPayloadTooLarge = errors.New("wsframe: payload too large")

	// ErrMalformedFrame indicates an inbound frame that could not be used.
	// The stream is still aligned on the next frame boundary when a Reader
	// returns it.
	ErrMalformedFrame = errors.New("wsframe: malformed frame")

	// ErrConnectionClosed is returned alongside a close frame.
	ErrConnectionClosed = errors.New("wsframe: connection closed by peer")
)
