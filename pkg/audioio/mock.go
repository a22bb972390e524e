package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or sine wave) at the real-time pace
// of its buffer duration, and can inject device faults.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	ctx     context.Context

	// Stats
	chunksRead atomic.Int64
	closeCalls atomic.Int64

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
	unpaced   bool

	// Fault injection
	startErr      error
	readErr       error
	readErrAfter  int64
	overflowEvery int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithUnpaced makes Read return immediately instead of waiting one buffer.
func WithUnpaced() MockSourceOption {
	return func(m *MockSource) {
		m.unpaced = true
	}
}

// WithSourceStartError makes Start fail with err.
func WithSourceStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// WithReadError makes Read fail with err after n successful reads.
func WithReadError(n int64, err error) MockSourceOption {
	return func(m *MockSource) {
		m.readErrAfter = n
		m.readErr = err
	}
}

// WithInputOverflow reports ErrInputOverflowed on every nth read.
func WithInputOverflow(n int64) MockSourceOption {
	return func(m *MockSource) {
		m.overflowEvery = n
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return nil
	}

	m.running = true
	m.ctx = ctx

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
	)

	return nil
}

// Read waits one buffer duration, then fills dst with one buffer of audio.
func (m *MockSource) Read(dst []int16) (int, error) {
	m.mu.Lock()
	running, ctx := m.running, m.ctx
	m.mu.Unlock()
	if !running {
		return 0, io.EOF
	}

	if !m.unpaced {
		select {
		case <-ctx.Done():
			return 0, io.EOF
		case <-time.After(m.cfg.BufferDuration):
		}
	}

	n := m.chunksRead.Load()
	if m.readErr != nil && n >= m.readErrAfter {
		return 0, m.readErr
	}

	count := min(len(dst), m.cfg.BufferSamples())
	m.generate(dst[:count])
	n = m.chunksRead.Add(1)

	if m.overflowEvery > 0 && n%m.overflowEvery == 0 {
		return count, ErrInputOverflowed
	}
	return count, nil
}

func (m *MockSource) generate(samples []int16) {
	if m.frequency <= 0 {
		clear(samples)
		return
	}
	channels := max(m.cfg.Channels, 1)
	for i := 0; i+channels <= len(samples); i += channels {
		sample := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
		v := int16(sample * 32767)
		for ch := 0; ch < channels; ch++ {
			samples[i+ch] = v
		}
		m.phase++
		if m.phase >= float64(m.cfg.SampleRate) {
			m.phase = 0
		}
	}
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.closeCalls.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.running = false
	m.logger.Info("mock audio source closed")
	return nil
}

// ChunksRead returns the number of buffers delivered by Read.
func (m *MockSource) ChunksRead() int64 {
	return m.chunksRead.Load()
}

// Closed reports whether Close has been called.
func (m *MockSource) Closed() bool {
	return m.closeCalls.Load() > 0
}

// MockSink is a mock audio sink for testing.
// It records the samples it is given and can inject device faults.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	written []int16
	writes  int64
	flushes int64

	startErr      error
	writeErr      error
	writeErrAfter int64
	onWrite       func(samples []int16)
}

// MockSinkOption configures a MockSink.
type MockSinkOption func(*MockSink)

// WithSinkStartError makes Start fail with err.
func WithSinkStartError(err error) MockSinkOption {
	return func(m *MockSink) {
		m.startErr = err
	}
}

// WithWriteError makes Write fail with err after n successful writes.
func WithWriteError(n int64, err error) MockSinkOption {
	return func(m *MockSink) {
		m.writeErrAfter = n
		m.writeErr = err
	}
}

// WithOnWrite registers a callback invoked with every written buffer.
func WithOnWrite(fn func(samples []int16)) MockSinkOption {
	return func(m *MockSink) {
		m.onWrite = fn
	}
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger, opts ...MockSinkOption) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSink{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}

	m.running = true
	m.logger.Info("mock audio sink started")

	return nil
}

// Write records samples.
func (m *MockSink) Write(samples []int16) error {
	m.mu.Lock()
	if m.closed || !m.running {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	if m.writeErr != nil && m.writes >= m.writeErrAfter {
		m.mu.Unlock()
		return m.writeErr
	}
	m.written = append(m.written, samples...)
	m.writes++
	fn := m.onWrite
	m.mu.Unlock()

	if fn != nil {
		fn(samples)
	}
	return nil
}

// Flush counts the call.
func (m *MockSink) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.running {
		return io.ErrClosedPipe
	}
	m.flushes++
	return nil
}

// Flushes returns the number of successful Flush calls.
func (m *MockSink) Flushes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Samples returns a copy of everything written so far.
func (m *MockSink) Samples() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int16(nil), m.written...)
}

// Writes returns the number of successful Write calls.
func (m *MockSink) Writes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Closed reports whether Close has been called.
func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.running = false
	m.logger.Info("mock audio sink closed")
	return nil
}

var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)
