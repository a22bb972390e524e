package session

import (
	"context"
	"errors"

	"github.com/teslashibe/go-gemini-live/pkg/audioio"
)

// playback drains the inbound queue into the speaker, sleeping for the
// poll interval when the queue is empty. The sink is flushed once each time
// the queue runs dry so the tail of a turn is not held back. It owns the
// sink and closes it on exit.
func (s *Session) playback(ctx context.Context) error {
	if err := s.sink.Start(ctx); err != nil {
		return &DeviceError{Device: "playback", Op: "open", Err: err}
	}
	defer s.sink.Close()

	cfg := s.sink.Config()
	chunk := make([]byte, 0, cfg.BufferBytes())
	samples := make([]int16, 0, cfg.BufferSamples())

	s.logger.Info("playback started", "sample_rate", cfg.SampleRate)

	pending := false
	for ctx.Err() == nil {
		var ok bool
		chunk, ok = s.queue.Dequeue(chunk)
		if !ok {
			if pending {
				pending = false
				if err := s.sink.Flush(); err != nil && !errors.Is(err, audioio.ErrOutputUnderflowed) {
					return &DeviceError{Device: "playback", Op: "write", Err: err}
				}
			}
			sleepCtx(ctx, s.cfg.PollInterval)
			continue
		}
		pending = true
		s.metrics.QueueDepth.Set(float64(s.queue.Len()))

		samples = audioio.DecodePCM16LE(samples[:0], chunk)
		if err := s.sink.Write(samples); err != nil {
			if !errors.Is(err, audioio.ErrOutputUnderflowed) {
				return &DeviceError{Device: "playback", Op: "write", Err: err}
			}
			s.metrics.OutputUnderflows.Inc()
			s.logger.Debug("playback underflow")
		}
		s.chunksPlayed.Add(1)
		s.metrics.ChunksPlayed.Inc()
	}
	return nil
}
