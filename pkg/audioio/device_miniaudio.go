//go:build cgo

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"
)

// MiniaudioSource captures audio with miniaudio. The device callback
// appends into a bounded byte buffer that Read drains one frame at a time.
type MiniaudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	cond       *sync.Cond
	buf        []byte
	limit      int
	overflowed bool
	closed     bool
	ctxErr     error
	stopWatch  func() bool

	mctx   *malgo.AllocatedContext
	device *malgo.Device
}

func newMiniaudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	s := &MiniaudioSource{
		cfg:    cfg,
		logger: logger,
		limit:  cfg.SampleRate * cfg.Channels * 2, // one second
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Start initializes the miniaudio context and starts the capture device.
func (s *MiniaudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.device != nil {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{
		ThreadPriority: malgo.ThreadPriorityRealtime,
	}, func(message string) {
		s.logger.Debug("miniaudio", "msg", message)
	})
	if err != nil {
		return fmt.Errorf("miniaudio: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(s.cfg.BufferDuration.Milliseconds())

	if s.cfg.Device != "" {
		infos, err := mctx.Devices(malgo.Capture)
		if err != nil {
			mctx.Uninit()
			mctx.Free()
			return fmt.Errorf("miniaudio: list devices: %w", err)
		}
		found := false
		for _, info := range infos {
			if info.Name() == s.cfg.Device {
				deviceConfig.Capture.DeviceID = info.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			mctx.Uninit()
			mctx.Free()
			return fmt.Errorf("miniaudio: device %q not found", s.cfg.Device)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onData,
	})
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("miniaudio: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("miniaudio: start capture device: %w", err)
	}

	s.mctx = mctx
	s.device = device
	s.watch(ctx)
	s.logger.Info("miniaudio source started",
		"sample_rate", s.cfg.SampleRate,
		"period_ms", deviceConfig.PeriodSizeInMilliseconds,
	)
	return nil
}

// watch wakes a blocked Read when ctx is done, so capture does not hang on
// a device that stopped delivering callbacks.
func (s *MiniaudioSource) watch(ctx context.Context) {
	s.stopWatch = context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.ctxErr = ctx.Err()
		s.mu.Unlock()
		s.cond.Broadcast()
	})
}

func (s *MiniaudioSource) onData(_, input []byte, _ uint32) {
	s.mu.Lock()
	s.buf = append(s.buf, input...)
	if over := len(s.buf) - s.limit; over > 0 {
		s.buf = s.buf[over:]
		s.overflowed = true
	}
	s.mu.Unlock()
	s.cond.Signal()
}

// Read waits until one buffer of samples has been captured, the source is
// closed, or the context passed to Start is done.
func (s *MiniaudioSource) Read(dst []int16) (int, error) {
	want := min(len(dst), s.cfg.BufferSamples()) * 2

	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) < want && !s.closed && s.ctxErr == nil {
		s.cond.Wait()
	}
	if s.closed {
		return 0, io.EOF
	}
	if s.ctxErr != nil {
		return 0, s.ctxErr
	}

	n := len(DecodePCM16LE(dst[:0], s.buf[:want]))
	s.buf = append(s.buf[:0], s.buf[want:]...)

	if s.overflowed {
		s.overflowed = false
		return n, ErrInputOverflowed
	}
	return n, nil
}

// Config returns the audio configuration.
func (s *MiniaudioSource) Config() Config {
	return s.cfg
}

// Name returns "miniaudio".
func (s *MiniaudioSource) Name() string {
	return string(BackendMiniaudio)
}

// Close stops the device and frees the miniaudio context.
func (s *MiniaudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	device, mctx, stopWatch := s.device, s.mctx, s.stopWatch
	s.mu.Unlock()
	s.cond.Broadcast()

	if stopWatch != nil {
		stopWatch()
	}

	if device != nil {
		device.Stop()
		device.Uninit()
	}
	if mctx != nil {
		mctx.Uninit()
		mctx.Free()
	}
	s.logger.Info("miniaudio source closed")
	return nil
}

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

func sharedOtoContext(rate, channels int) (*oto.Context, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		})
		if otoErr == nil {
			<-ready
			otoRate = rate
		}
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != rate {
		return nil, fmt.Errorf("oto: context already running at %d Hz", otoRate)
	}
	return otoCtx, nil
}

// MiniaudioSink plays audio through an oto player. Write blocks while more
// than two device buffers are pending, like a blocking device write.
type MiniaudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	buf      []byte
	highMark int
	closed   bool
	player   *oto.Player
	scratch  []byte
}

func newMiniaudioSink(cfg Config, logger *slog.Logger) (Sink, error) {
	s := &MiniaudioSink{
		cfg:      cfg,
		logger:   logger,
		highMark: 2 * cfg.BufferBytes(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Start creates the player. Playback begins immediately and outputs
// silence until samples arrive.
func (s *MiniaudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.player != nil {
		return nil
	}

	octx, err := sharedOtoContext(s.cfg.SampleRate, s.cfg.Channels)
	if err != nil {
		return fmt.Errorf("oto: new context: %w", err)
	}
	s.player = octx.NewPlayer(s)
	s.player.Play()

	s.logger.Info("oto sink started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// Read implements io.Reader for the oto player. An empty buffer yields
// silence so the device never stalls.
func (s *MiniaudioSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) == 0 {
		clear(p)
		return len(p), nil
	}
	n := copy(p, s.buf)
	s.buf = append(s.buf[:0], s.buf[n:]...)
	s.cond.Broadcast()
	return n, nil
}

// Write appends samples to the pending buffer.
func (s *MiniaudioSink) Write(samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) >= s.highMark && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return io.ErrClosedPipe
	}
	s.scratch = AppendPCM16LE(s.scratch[:0], samples)
	s.buf = append(s.buf, s.scratch...)
	return nil
}

// Flush is a no-op: the player drains the pending buffer on its own.
func (s *MiniaudioSink) Flush() error {
	return nil
}

// Config returns the audio configuration.
func (s *MiniaudioSink) Config() Config {
	return s.cfg
}

// Name returns "miniaudio".
func (s *MiniaudioSink) Name() string {
	return string(BackendMiniaudio)
}

// Close stops the player. The shared oto context stays alive.
func (s *MiniaudioSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	player := s.player
	s.mu.Unlock()
	s.cond.Broadcast()

	if player != nil {
		player.Pause()
		if err := player.Close(); err != nil {
			return fmt.Errorf("oto: close player: %w", err)
		}
	}
	s.logger.Info("oto sink closed")
	return nil
}
