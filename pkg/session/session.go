// Package session runs one live audio conversation: it connects, sends
// setup, waits for the acknowledgement, and then drives the capture,
// playback and receive workers until an interrupt or a fatal failure.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-gemini-live/pkg/audioio"
	"github.com/teslashibe/go-gemini-live/pkg/protocol"
	"github.com/teslashibe/go-gemini-live/pkg/transcript"
	"github.com/teslashibe/go-gemini-live/pkg/transport"
	"github.com/teslashibe/go-gemini-live/pkg/wsframe"
)

// Conn is the part of transport.Conn the session uses.
type Conn interface {
	WriteText(payload []byte) error
	WritePong(payload []byte) error
	ReadFrame() (wsframe.Frame, error)
	Close() error
}

// DialFunc opens the upgraded connection.
type DialFunc func(ctx context.Context) (Conn, error)

// Options configures a Session.
type Options struct {
	Config    Config
	Transport transport.Config

	Source audioio.Source
	Sink   audioio.Sink

	// Transcripts receives transcription fragments. Optional.
	Transcripts transcript.Handler

	// Registry receives the session metrics. Nil creates a private registry.
	Registry *prometheus.Registry

	// Dial overrides transport.Dial.
	Dial DialFunc

	Logger *slog.Logger
}

// Session is one conversation. A Session is single use.
type Session struct {
	id     string
	cfg    Config
	logger *slog.Logger

	src         audioio.Source
	sink        audioio.Sink
	queue       *audioio.Queue
	state       *StateMachine
	metrics     *Metrics
	registry    *prometheus.Registry
	transcripts transcript.Handler
	dial        DialFunc

	startedAt   atomic.Int64 // unix nanoseconds
	setupSentAt time.Time

	chunksSent     atomic.Int64
	chunksPlayed   atomic.Int64
	turns          atomic.Int64
	interruptions  atomic.Int64
	upstreamErrors atomic.Int64

	runOnce sync.Once
}

// New validates opts and builds a Session.
func New(opts Options) (*Session, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Source == nil || opts.Sink == nil {
		return nil, fmt.Errorf("session: audio source and sink are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dial := opts.Dial
	if dial == nil {
		tcfg := opts.Transport
		if err := tcfg.Validate(); err != nil {
			return nil, err
		}
		dial = func(ctx context.Context) (Conn, error) {
			return transport.Dial(ctx, tcfg, logger)
		}
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	transcripts := opts.Transcripts
	if transcripts == nil {
		transcripts = transcript.HandlerFunc(func(transcript.Entry) {})
	}

	id := uuid.NewString()
	s := &Session{
		id:          id,
		cfg:         opts.Config,
		logger:      logger.With("session_id", id),
		src:         opts.Source,
		sink:        opts.Sink,
		queue:       audioio.NewQueue(opts.Config.QueueCapacity),
		state:       NewStateMachine(),
		metrics:     NewMetrics(reg),
		registry:    reg,
		transcripts: transcripts,
		dial:        dial,
	}
	s.state.OnChange(func(from, to State) {
		s.metrics.State.Set(float64(to))
		s.logger.Info("session state changed", "from", from.String(), "state", to.String())
	})
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state.State()
}

// Registry returns the registry holding the session metrics.
func (s *Session) Registry() *prometheus.Registry {
	return s.registry
}

// Run executes the session until ctx is cancelled, the server ends the
// conversation, or a fatal error occurs. It returns nil on an operator
// interrupt. Use ExitCode to map the result to a process status.
func (s *Session) Run(ctx context.Context) error {
	err := errors.New("session: already run")
	s.runOnce.Do(func() {
		err = s.run(ctx)
	})
	return err
}

func (s *Session) run(ctx context.Context) error {
	s.startedAt.Store(time.Now().UnixNano())
	s.logger.Info("session starting",
		"model", s.cfg.Model,
		"voice", s.cfg.Voice,
		"capture", s.src.Name(),
		"playback", s.sink.Name(),
	)

	conn, err := s.connect(ctx)
	if err != nil {
		s.logger.Error("session setup failed", "err", err)
		s.state.Transition(StateClosed)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.receive(gctx, conn)
	})

	streaming := s.awaitSetup(gctx)

	var devices sync.WaitGroup
	if streaming {
		s.state.Transition(StateStreaming)
		devices.Add(2)
		g.Go(func() error {
			defer devices.Done()
			return s.capture(gctx, conn)
		})
		g.Go(func() error {
			defer devices.Done()
			return s.playback(gctx)
		})
	}

	<-gctx.Done()
	s.state.Transition(StateShuttingDown)
	s.logger.Info("session shutting down")

	if !waitTimeout(&devices, s.cfg.ShutdownGrace) {
		s.logger.Warn("audio workers did not stop within grace period", "grace", s.cfg.ShutdownGrace)
	}
	if err := conn.Close(); err != nil {
		s.logger.Debug("transport close", "err", err)
	}

	err = g.Wait()
	s.queue.Reset()
	s.metrics.QueueDepth.Set(0)
	s.state.Transition(StateClosed)

	var ue *UpstreamError
	if err != nil && !streaming && ctx.Err() == nil && !errors.As(err, &ue) {
		err = &SetupError{Stage: "await_ack", Err: err}
	}
	s.logResult(ctx, err)
	return err
}

// connect dials and sends the setup envelope.
func (s *Session) connect(ctx context.Context) (Conn, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, &SetupError{Stage: "connect", Err: err}
	}

	data, err := protocol.NewSetupMessage(protocol.SetupOptions{
		Model:             s.cfg.Model,
		Voice:             s.cfg.Voice,
		SystemInstruction: s.cfg.SystemInstruction,
		Transcription:     s.cfg.Transcription,
	}).Bytes()
	if err == nil {
		err = conn.WriteText(data)
	}
	if err != nil {
		conn.Close()
		return nil, &SetupError{Stage: "setup", Err: err}
	}

	s.setupSentAt = time.Now()
	s.state.Transition(StateAwaitingSetupAck)
	s.logger.Debug("setup sent", "bytes", len(data))
	return conn, nil
}

// awaitSetup waits for setupComplete or the setup timeout. It returns
// false if the session ended first.
func (s *Session) awaitSetup(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.SetupTimeout)
	defer timer.Stop()

	select {
	case <-s.state.SetupComplete():
		return true
	case <-timer.C:
		s.metrics.SetupTimeouts.Inc()
		s.logger.Warn("no setupComplete received, streaming anyway", "timeout", s.cfg.SetupTimeout)
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) logResult(ctx context.Context, err error) {
	switch {
	case err == nil && ctx.Err() != nil:
		s.logger.Info("session ended by interrupt")
	case err == nil:
		s.logger.Info("session ended")
	case errors.Is(err, ErrPeerClosed), errors.Is(err, ErrConnectionLost):
		s.logger.Warn("session ended by server", "err", err)
	default:
		s.logger.Error("session failed", "err", err)
	}
}

// waitTimeout waits for wg up to d and reports whether it finished.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// sleepCtx sleeps for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Status is a point-in-time summary of the session.
type Status struct {
	SessionID     string    `json:"session_id"`
	State         string    `json:"state"`
	Model         string    `json:"model"`
	Voice         string    `json:"voice"`
	SetupComplete bool      `json:"setup_complete"`
	StartedAt     time.Time `json:"started_at"`
	Uptime        string    `json:"uptime"`

	QueueDepth     int   `json:"queue_depth"`
	QueueCapacity  int   `json:"queue_capacity"`
	ChunksSent     int64 `json:"chunks_sent"`
	ChunksReceived int64 `json:"chunks_received"`
	ChunksDropped  int64 `json:"chunks_dropped"`
	ChunksPlayed   int64 `json:"chunks_played"`
	Turns          int64 `json:"turns"`
	Interruptions  int64 `json:"interruptions"`
	UpstreamErrors int64 `json:"upstream_errors"`
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	st := Status{
		SessionID:      s.id,
		State:          s.state.State().String(),
		Model:          s.cfg.Model,
		Voice:          s.cfg.Voice,
		SetupComplete:  s.state.IsSetupComplete(),
		QueueDepth:     s.queue.Len(),
		QueueCapacity:  s.queue.Cap(),
		ChunksSent:     s.chunksSent.Load(),
		ChunksReceived: s.queue.Enqueued(),
		ChunksDropped:  s.queue.Dropped(),
		ChunksPlayed:   s.chunksPlayed.Load(),
		Turns:          s.turns.Load(),
		Interruptions:  s.interruptions.Load(),
		UpstreamErrors: s.upstreamErrors.Load(),
	}
	if ns := s.startedAt.Load(); ns != 0 {
		st.StartedAt = time.Unix(0, ns)
		st.Uptime = time.Since(st.StartedAt).Truncate(time.Second).String()
	}
	return st
}
