// Package web serves a small status surface for a running session: a JSON
// status snapshot, Prometheus metrics, recent transcript entries and a
// websocket feed of live transcript events.
package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-gemini-live/pkg/hub"
	"github.com/teslashibe/go-gemini-live/pkg/session"
	"github.com/teslashibe/go-gemini-live/pkg/transcript"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8089"

// maxRecent bounds the transcript history kept for /api/transcripts.
const maxRecent = 200

// StatusProvider reports the current session status.
type StatusProvider interface {
	Status() session.Status
}

// StatusFunc adapts a function to StatusProvider.
type StatusFunc func() session.Status

// Status calls f.
func (f StatusFunc) Status() session.Status {
	return f()
}

// Options configures a Server.
type Options struct {
	Addr     string
	Status   StatusProvider
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server is the status server.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	status StatusProvider
	feed   *hub.Hub

	recentMu sync.RWMutex
	recent   []transcript.Entry
}

// NewServer builds the server and its routes. It does not listen.
func NewServer(opts Options) (*Server, error) {
	if opts.Status == nil {
		return nil, errors.New("web: status provider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		addr:   addr,
		logger: logger.With("component", "web"),
		status: opts.Status,
		feed:   hub.New("transcripts", logger),
		recent: make([]transcript.Entry, 0, maxRecent),
	}

	app := fiber.New(fiber.Config{
		AppName:               "gemini-live",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/transcripts", s.handleTranscripts)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/transcripts", websocket.New(s.feed.Serve))

	s.app = app
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the transcript feed and listens until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	go s.feed.Run(ctx)
	s.logger.Info("status server listening", "addr", "http://"+s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync runs Start in a goroutine and logs its failure.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("status server stopped", "err", err)
		}
	}()
}

// Shutdown stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Handle records a transcript entry and pushes it to live subscribers.
func (s *Server) Handle(e transcript.Entry) {
	s.recentMu.Lock()
	if len(s.recent) == maxRecent {
		copy(s.recent, s.recent[1:])
		s.recent = s.recent[:maxRecent-1]
	}
	s.recent = append(s.recent, e)
	s.recentMu.Unlock()

	if err := s.feed.BroadcastJSON("transcript", e); err != nil {
		s.logger.Warn("transcript broadcast failed", "err", err)
	}
}

var _ transcript.Handler = (*Server)(nil)
