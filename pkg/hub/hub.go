package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const (
	// broadcastBuffer bounds events waiting for the hub loop.
	broadcastBuffer = 256

	// clientBuffer bounds events waiting for one slow client.
	clientBuffer = 64
)

// subscriber is the hub side of a client: a bounded outbound channel.
type subscriber struct {
	send chan []byte
}

// Hub maintains the set of active subscribers and broadcasts events to
// them. Only the Run goroutine touches the subscriber set.
type Hub struct {
	name   string
	logger *slog.Logger

	subscribers map[*subscriber]struct{}
	broadcast   chan []byte
	register    chan *subscriber
	unregister  chan *subscriber
	done        chan struct{}

	mu      sync.RWMutex
	count   int
	dropped atomic.Int64
	running atomic.Bool
}

// New creates a Hub. A nil logger uses slog.Default().
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:        name,
		logger:      logger.With("hub", name),
		subscribers: make(map[*subscriber]struct{}),
		broadcast:   make(chan []byte, broadcastBuffer),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		done:        make(chan struct{}),
	}
}

// Run is the hub loop. It returns when ctx is done, closing every
// subscriber.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		for sub := range h.subscribers {
			h.remove(sub)
		}
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case sub := <-h.register:
			h.subscribers[sub] = struct{}{}
			h.setCount()
			h.logger.Info("subscriber connected", "subscribers", len(h.subscribers))

		case sub := <-h.unregister:
			if _, ok := h.subscribers[sub]; ok {
				h.remove(sub)
				h.logger.Info("subscriber disconnected", "subscribers", len(h.subscribers))
			}

		case data := <-h.broadcast:
			for sub := range h.subscribers {
				select {
				case sub.send <- data:
				default:
					// Too slow to keep up; drop it.
					h.remove(sub)
					h.logger.Warn("dropped slow subscriber")
				}
			}
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	delete(h.subscribers, sub)
	h.setCount()
	close(sub.send)
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.subscribers)
	h.mu.Unlock()
}

// subscribe registers a new subscriber. It returns nil once the hub has
// stopped.
func (h *Hub) subscribe() *subscriber {
	sub := &subscriber{send: make(chan []byte, clientBuffer)}
	select {
	case h.register <- sub:
		return sub
	case <-h.done:
		return nil
	}
}

// unsubscribe removes sub. It is a no-op once the hub has stopped.
func (h *Hub) unsubscribe(sub *subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Broadcast queues data for every subscriber without blocking. Events are
// dropped when the hub is backed up.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
		h.logger.Debug("broadcast buffer full, dropping event")
	}
}

// BroadcastJSON wraps v in an event envelope and broadcasts it.
func (h *Hub) BroadcastJSON(event string, v any) error {
	msg, err := NewMessage(event, v)
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Dropped returns the number of events dropped because the hub was backed
// up.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// IsRunning reports whether the hub loop is running.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
