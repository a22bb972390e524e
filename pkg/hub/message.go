// Package hub fans JSON events out to websocket subscribers using a single
// goroutine that owns the client set.
package hub

import "encoding/json"

// Message is one pre-encoded JSON event.
type Message struct {
	// Event names the payload, e.g. "transcript".
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewMessage encodes v as the data of an event.
func NewMessage(event string, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: data}, nil
}

// Bytes returns the wire encoding of m.
func (m Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}
