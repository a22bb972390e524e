package audioio

import (
	"bytes"
	"testing"
	"time"
)

func TestAppendPCM16LE(t *testing.T) {
	got := AppendPCM16LE(nil, []int16{0, 1, -1, 32767, -32768})
	want := []byte{0x00, 0x00, 0x01, 0x00, 0xFF, 0xFF, 0xFF, 0x7F, 0x00, 0x80}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendPCM16LE() = %v, want %v", got, want)
	}
}

func TestDecodePCM16LE(t *testing.T) {
	samples := []int16{0, 1, -1, 1234, -32768, 32767}
	got := DecodePCM16LE(nil, AppendPCM16LE(nil, samples))
	if len(got) != len(samples) {
		t.Fatalf("len = %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}

	if odd := DecodePCM16LE(nil, []byte{1, 0, 7}); len(odd) != 1 {
		t.Errorf("odd input decoded %d samples, want 1", len(odd))
	}
}

func TestFloat32ToInt16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{0.5, 16384},
		{1.7, 32767},
		{-3, -32767},
	}

	src := make([]float32, len(tests))
	for i, tt := range tests {
		src[i] = tt.in
	}
	dst := make([]int16, len(tests))
	if n := Float32ToInt16(dst, src); n != len(tests) {
		t.Fatalf("Float32ToInt16() = %d, want %d", n, len(tests))
	}
	for i, tt := range tests {
		if dst[i] != tt.want {
			t.Errorf("Float32ToInt16(%v) = %d, want %d", tt.in, dst[i], tt.want)
		}
	}
}

func TestCalculateRMS(t *testing.T) {
	if got := CalculateRMS(nil); got != 0 {
		t.Errorf("CalculateRMS(nil) = %v, want 0", got)
	}
	if got := CalculateRMS([]int16{32767, -32767}); got < 0.999 {
		t.Errorf("CalculateRMS(full scale) = %v, want 1", got)
	}
}

func TestConfigBufferSizes(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		samples int
		bytes   int
	}{
		{name: "capture", cfg: DefaultCaptureConfig(), samples: 800, bytes: 1600},
		{name: "playback", cfg: DefaultPlaybackConfig(), samples: 1200, bytes: 2400},
		{name: "stereo 20ms", cfg: Config{SampleRate: 48000, Channels: 2, BufferDuration: 20 * time.Millisecond}, samples: 1920, bytes: 3840},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BufferSamples(); got != tt.samples {
				t.Errorf("BufferSamples() = %d, want %d", got, tt.samples)
			}
			if got := tt.cfg.BufferBytes(); got != tt.bytes {
				t.Errorf("BufferBytes() = %d, want %d", got, tt.bytes)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(c *Config) {}, wantErr: false},
		{name: "zero rate", modify: func(c *Config) { c.SampleRate = 0 }, wantErr: true},
		{name: "zero channels", modify: func(c *Config) { c.Channels = 0 }, wantErr: true},
		{name: "zero buffer", modify: func(c *Config) { c.BufferDuration = 0 }, wantErr: true},
		{name: "unknown backend", modify: func(c *Config) { c.Backend = "coreaudio" }, wantErr: true},
		{name: "empty backend", modify: func(c *Config) { c.Backend = "" }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCaptureConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
