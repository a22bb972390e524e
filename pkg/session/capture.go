package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/teslashibe/go-gemini-live/pkg/audioio"
	"github.com/teslashibe/go-gemini-live/pkg/protocol"
)

// capture reads microphone frames and sends each one upstream as soon as
// it is read. It owns the source and closes it on exit.
func (s *Session) capture(ctx context.Context, conn Conn) error {
	if err := s.src.Start(ctx); err != nil {
		return &DeviceError{Device: "capture", Op: "open", Err: err}
	}
	defer s.src.Close()

	cfg := s.src.Config()
	samples := make([]int16, cfg.BufferSamples())
	pcm := make([]byte, 0, cfg.BufferBytes())
	msg := make([]byte, 0, base64.StdEncoding.EncodedLen(cfg.BufferBytes())+128)

	s.logger.Info("capture started", "sample_rate", cfg.SampleRate, "frame_ms", cfg.BufferDuration.Milliseconds())

	for ctx.Err() == nil {
		n, err := s.src.Read(samples)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, audioio.ErrInputOverflowed):
				s.metrics.InputOverflows.Inc()
				s.logger.Debug("capture overflow", "err", err)
			default:
				return &DeviceError{Device: "capture", Op: "read", Err: err}
			}
		}
		if n == 0 || ctx.Err() != nil {
			continue
		}

		pcm = audioio.AppendPCM16LE(pcm[:0], samples[:n])
		msg = protocol.AppendAudioMessage(msg[:0], pcm, cfg.SampleRate)
		if err := conn.WriteText(msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: send audio: %v", ErrConnectionLost, err)
		}

		s.chunksSent.Add(1)
		s.metrics.ChunksSent.Inc()
		s.metrics.BytesSent.Add(float64(len(pcm)))
		s.metrics.InputLevel.Set(audioio.CalculateRMS(samples[:n]))
	}
	return nil
}
