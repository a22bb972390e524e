package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func testCaptureConfig() Config {
	cfg := DefaultCaptureConfig()
	cfg.Backend = BackendMock
	cfg.BufferDuration = 10 * time.Millisecond
	return cfg
}

func TestMockSource_StartClose(t *testing.T) {
	src := NewMockSource(testCaptureConfig(), nil)

	ctx := context.Background()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Starting again should be a no-op
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if err := src.Start(ctx); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Start after Close = %v, want io.ErrClosedPipe", err)
	}
}

func TestMockSource_Read(t *testing.T) {
	cfg := testCaptureConfig()
	src := NewMockSource(cfg, nil)
	defer src.Close()

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	buf := make([]int16, cfg.BufferSamples())
	start := time.Now()
	n, err := src.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != cfg.BufferSamples() {
		t.Errorf("Read() = %d samples, want %d", n, cfg.BufferSamples())
	}
	if elapsed := time.Since(start); elapsed < cfg.BufferDuration {
		t.Errorf("Read() returned after %v, want at least %v", elapsed, cfg.BufferDuration)
	}
}

func TestMockSource_SineWave(t *testing.T) {
	cfg := testCaptureConfig()
	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5), WithUnpaced())
	defer src.Close()
	src.Start(context.Background())

	buf := make([]int16, cfg.BufferSamples())
	if _, err := src.Read(buf); err != nil {
		t.Fatal(err)
	}

	rms := CalculateRMS(buf)
	// A sine of amplitude 0.5 has RMS 0.5/sqrt(2).
	if rms < 0.3 || rms > 0.4 {
		t.Errorf("RMS = %.3f, want about 0.354", rms)
	}
}

func TestMockSource_ReadAfterCancel(t *testing.T) {
	src := NewMockSource(testCaptureConfig(), nil)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	src.Start(ctx)
	cancel()

	if _, err := src.Read(make([]int16, 160)); err != io.EOF {
		t.Errorf("Read() after cancel = %v, want io.EOF", err)
	}
}

func TestMockSource_Faults(t *testing.T) {
	errDevice := errors.New("device unplugged")

	t.Run("start", func(t *testing.T) {
		src := NewMockSource(testCaptureConfig(), nil, WithSourceStartError(errDevice))
		if err := src.Start(context.Background()); !errors.Is(err, errDevice) {
			t.Errorf("Start() = %v, want %v", err, errDevice)
		}
	})

	t.Run("read", func(t *testing.T) {
		src := NewMockSource(testCaptureConfig(), nil, WithUnpaced(), WithReadError(2, errDevice))
		src.Start(context.Background())
		buf := make([]int16, 160)
		for i := 0; i < 2; i++ {
			if _, err := src.Read(buf); err != nil {
				t.Fatalf("Read(%d) = %v", i, err)
			}
		}
		if _, err := src.Read(buf); !errors.Is(err, errDevice) {
			t.Errorf("Read() = %v, want %v", err, errDevice)
		}
	})

	t.Run("overflow", func(t *testing.T) {
		src := NewMockSource(testCaptureConfig(), nil, WithUnpaced(), WithInputOverflow(2))
		src.Start(context.Background())
		buf := make([]int16, 160)
		if _, err := src.Read(buf); err != nil {
			t.Fatalf("first Read() = %v", err)
		}
		n, err := src.Read(buf)
		if !errors.Is(err, ErrInputOverflowed) {
			t.Errorf("second Read() = %v, want ErrInputOverflowed", err)
		}
		if n != 160 {
			t.Errorf("overflowed Read() = %d samples, want 160", n)
		}
	})
}

func TestMockSink_Write(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	defer sink.Close()

	if err := sink.Write([]int16{1}); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Write before Start = %v, want io.ErrClosedPipe", err)
	}

	if err := sink.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	sink.Write([]int16{1, 2})
	sink.Write([]int16{3})

	got := sink.Samples()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("Samples() = %v, want [1 2 3]", got)
	}
	if sink.Writes() != 2 {
		t.Errorf("Writes() = %d, want 2", sink.Writes())
	}

	sink.Close()
	if !sink.Closed() {
		t.Error("Closed() = false after Close")
	}
	if err := sink.Write([]int16{4}); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Write after Close = %v, want io.ErrClosedPipe", err)
	}
}

func TestMockSink_Flush(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	if err := sink.Flush(); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Flush before Start = %v, want io.ErrClosedPipe", err)
	}
	if err := sink.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	sink.Flush()
	sink.Flush()
	if sink.Flushes() != 2 {
		t.Errorf("Flushes() = %d, want 2", sink.Flushes())
	}
	sink.Close()
	if err := sink.Flush(); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Flush after Close = %v, want io.ErrClosedPipe", err)
	}
}

func TestMockSink_WriteError(t *testing.T) {
	errDevice := errors.New("speaker gone")
	sink := NewMockSink(DefaultPlaybackConfig(), nil, WithWriteError(1, errDevice))
	sink.Start(context.Background())

	if err := sink.Write([]int16{1}); err != nil {
		t.Fatalf("first Write() = %v", err)
	}
	if err := sink.Write([]int16{2}); !errors.Is(err, errDevice) {
		t.Errorf("second Write() = %v, want %v", err, errDevice)
	}
}

func TestFactory_Mock(t *testing.T) {
	cfg := testCaptureConfig()
	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if src.Name() != "mock" {
		t.Errorf("Name() = %q, want mock", src.Name())
	}

	sink, err := NewSink(cfg, nil)
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}
	if sink.Name() != "mock" {
		t.Errorf("Name() = %q, want mock", sink.Name())
	}
}

func TestFactory_InvalidConfig(t *testing.T) {
	cfg := testCaptureConfig()
	cfg.SampleRate = 0
	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("NewSource() with zero sample rate succeeded")
	}

	cfg = testCaptureConfig()
	cfg.Backend = "alsa"
	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("NewSink() with unknown backend succeeded")
	}
}

func TestAvailableBackends(t *testing.T) {
	backends := AvailableBackends()
	if len(backends) == 0 || backends[0] != BackendMock {
		t.Errorf("AvailableBackends() = %v, want mock first", backends)
	}
	got, err := resolveBackend(BackendAuto)
	want, wantErr := detectBestBackend()
	if got != want || !errors.Is(err, wantErr) {
		t.Errorf("resolveBackend(auto) = %q, %v, want %q, %v", got, err, want, wantErr)
	}
	if got == BackendMock {
		t.Error("resolveBackend(auto) chose the mock backend")
	}
}
