package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/teslashibe/go-gemini-live/pkg/protocol"
	"github.com/teslashibe/go-gemini-live/pkg/transcript"
	"github.com/teslashibe/go-gemini-live/pkg/wsframe"
)

// receive is the only reader of conn and the only producer for the
// playback queue.
func (s *Session) receive(ctx context.Context, conn Conn) error {
	var pcm []byte
	for ctx.Err() == nil {
		frame, err := conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch {
			case errors.Is(err, wsframe.ErrConnectionClosed):
				s.logger.Info("server closed connection", "code", frame.CloseCode(), "reason", frame.CloseReason())
				return fmt.Errorf("%w: code %d %s", ErrPeerClosed, frame.CloseCode(), frame.CloseReason())
			case errors.Is(err, wsframe.ErrMalformedFrame):
				s.metrics.MalformedFrames.Inc()
				s.logger.Warn("dropping malformed frame", "err", err)
				sleepCtx(ctx, s.cfg.RetryDelay)
				continue
			case errors.Is(err, io.EOF):
				return fmt.Errorf("%w: stream ended without close frame", ErrPeerClosed)
			default:
				return fmt.Errorf("%w: %v", ErrConnectionLost, err)
			}
		}

		s.metrics.FramesReceived.WithLabelValues(frame.Opcode.String()).Inc()

		switch frame.Opcode {
		case wsframe.OpText, wsframe.OpBinary:
			var herr error
			pcm, herr = s.handleEnvelope(frame.Payload, pcm)
			if herr != nil {
				return herr
			}
		case wsframe.OpPing:
			if err := conn.WritePong(frame.Payload); err != nil && ctx.Err() == nil {
				s.logger.Warn("pong failed", "err", err)
			}
		case wsframe.OpPong:
		default:
			s.logger.Debug("ignoring frame", "opcode", frame.Opcode.String())
		}
	}
	return nil
}

// handleEnvelope routes one server envelope. pcm is a reusable decode
// buffer; the possibly grown buffer is returned. A non-nil error ends the
// session.
func (s *Session) handleEnvelope(payload, pcm []byte) ([]byte, error) {
	msg, err := protocol.ParseServerMessage(payload)
	if err != nil {
		s.metrics.InvalidEnvelopes.Inc()
		s.logger.Warn("dropping unparseable envelope", "err", err, "bytes", len(payload))
		return pcm, nil
	}

	typ := msg.Type()
	if typ == protocol.TypeUnknown {
		s.metrics.EnvelopesReceived.WithLabelValues("unknown").Inc()
		s.logger.Debug("ignoring unknown envelope", "bytes", len(payload))
		return pcm, nil
	}
	s.metrics.EnvelopesReceived.WithLabelValues(string(typ)).Inc()

	// An envelope may carry more than one field, so each is checked.
	if msg.SetupComplete != nil && s.state.MarkSetupComplete() {
		latency := time.Since(s.setupSentAt)
		s.metrics.SetupLatency.Observe(latency.Seconds())
		s.logger.Info("setup complete", "latency_ms", latency.Milliseconds())
	}

	if msg.Error != nil {
		s.upstreamErrors.Add(1)
		s.metrics.UpstreamErrors.Inc()
		s.logger.Error("server reported error",
			"code", msg.Error.Code,
			"status", msg.Error.Status,
			"message", msg.Error.Message,
		)
		if s.cfg.FatalUpstreamErrors {
			return pcm, &UpstreamError{Err: msg.Error}
		}
	}

	if sc := msg.ServerContent; sc != nil {
		pcm = s.handleServerContent(sc, pcm)
	}

	if msg.GoAway != nil {
		s.logger.Warn("server going away", "time_left", msg.GoAway.TimeLeft)
	}
	if u := msg.UsageMetadata; u != nil {
		s.logger.Debug("usage", "prompt_tokens", u.PromptTokenCount, "response_tokens", u.ResponseTokenCount, "total_tokens", u.TotalTokenCount)
	}
	return pcm, nil
}

func (s *Session) handleServerContent(sc *protocol.ServerContent, pcm []byte) []byte {
	now := time.Now()

	if sc.Interrupted {
		n := s.queue.Clear()
		s.interruptions.Add(1)
		s.metrics.Interruptions.Inc()
		s.metrics.QueueDepth.Set(0)
		s.logger.Info("model interrupted", "discarded_chunks", n)
		s.transcripts.Handle(transcript.Entry{Kind: transcript.KindInterrupted, Time: now})
	}

	for _, data := range sc.AudioParts() {
		var err error
		pcm, err = protocol.AppendDecodeBase64(pcm[:0], data)
		if err != nil {
			s.metrics.InvalidEnvelopes.Inc()
			s.logger.Warn("dropping undecodable audio part", "err", err)
			continue
		}
		if !s.queue.Enqueue(pcm) {
			s.metrics.ChunksDropped.Inc()
			s.logger.Debug("playback queue full, dropping chunk", "bytes", len(pcm))
			continue
		}
		s.metrics.ChunksReceived.Inc()
	}
	s.metrics.QueueDepth.Set(float64(s.queue.Len()))

	if t := sc.InputTranscription; t != nil && t.Text != "" {
		s.transcripts.Handle(transcript.Entry{Kind: transcript.KindInput, Text: t.Text, Time: now})
	}
	if t := sc.OutputTranscription; t != nil && t.Text != "" {
		s.transcripts.Handle(transcript.Entry{Kind: transcript.KindOutput, Text: t.Text, Time: now})
	}

	if sc.TurnComplete {
		s.turns.Add(1)
		s.metrics.TurnsCompleted.Inc()
		s.logger.Debug("turn complete")
		s.transcripts.Handle(transcript.Entry{Kind: transcript.KindTurnComplete, Time: now})
	}
	return pcm
}
