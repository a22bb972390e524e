// Package transcript carries the text side of a live conversation: input
// and output transcription fragments plus turn boundaries.
package transcript

import (
	"sync"
	"time"
)

// Kind classifies a transcript event.
type Kind string

const (
	// KindInput is a fragment of what the user said.
	KindInput Kind = "input"
	// KindOutput is a fragment of what the model said.
	KindOutput Kind = "output"
	// KindTurnComplete marks the end of a model turn.
	KindTurnComplete Kind = "turn_complete"
	// KindInterrupted marks a model turn cut short by the user.
	KindInterrupted Kind = "interrupted"
)

// Entry is one transcript event.
type Entry struct {
	Kind Kind      `json:"kind"`
	Text string    `json:"text,omitempty"`
	Time time.Time `json:"time"`
}

// Handler receives transcript events. Handle is called from the receive
// loop and must not block.
type Handler interface {
	Handle(Entry)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Entry)

// Handle calls f(e).
func (f HandlerFunc) Handle(e Entry) {
	f(e)
}

// Multi fans each entry out to every non-nil handler, in order.
func Multi(handlers ...Handler) Handler {
	var hs []Handler
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return multi(hs)
}

type multi []Handler

func (m multi) Handle(e Entry) {
	for _, h := range m {
		h.Handle(e)
	}
}

// Recorder keeps every entry in memory. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Handle appends e.
func (r *Recorder) Handle(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Text joins the text of all entries of kind k.
func (r *Recorder) Text(k Kind) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, e := range r.entries {
		if e.Kind == k {
			out = append(out, e.Text...)
		}
	}
	return string(out)
}
