package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for one session.
type Metrics struct {
	// Frames
	FramesReceived  *prometheus.CounterVec
	MalformedFrames prometheus.Counter

	// Envelopes
	EnvelopesReceived *prometheus.CounterVec
	InvalidEnvelopes  prometheus.Counter
	UpstreamErrors   prometheus.Counter
	TurnsCompleted   prometheus.Counter
	Interruptions    prometheus.Counter
	SetupLatency     prometheus.Histogram
	SetupTimeouts    prometheus.Counter

	// Audio
	ChunksSent       prometheus.Counter
	BytesSent        prometheus.Counter
	ChunksReceived   prometheus.Counter
	ChunksDropped    prometheus.Counter
	ChunksPlayed     prometheus.Counter
	InputOverflows   prometheus.Counter
	OutputUnderflows prometheus.Counter
	QueueDepth       prometheus.Gauge
	InputLevel       prometheus.Gauge

	// Lifecycle
	State prometheus.Gauge
}

// NewMetrics creates the session metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gemini_live_frames_received_total",
			Help: "Total number of inbound frames by opcode",
		}, []string{"opcode"}),
		MalformedFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_malformed_frames_total",
			Help: "Total number of inbound frames rejected as malformed",
		}),

		EnvelopesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gemini_live_envelopes_received_total",
			Help: "Total number of parsed inbound envelopes by type",
		}, []string{"type"}),
		InvalidEnvelopes: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_invalid_envelopes_total",
			Help: "Total number of inbound payloads that could not be parsed or decoded",
		}),
		UpstreamErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_upstream_errors_total",
			Help: "Total number of error envelopes sent by the server",
		}),
		TurnsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_turns_completed_total",
			Help: "Total number of completed model turns",
		}),
		Interruptions: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_interruptions_total",
			Help: "Total number of model turns interrupted by the user",
		}),
		SetupLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gemini_live_setup_latency_seconds",
			Help:    "Time from sending setup to receiving setupComplete",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SetupTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_setup_timeouts_total",
			Help: "Total number of sessions that started streaming without setupComplete",
		}),

		ChunksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_audio_chunks_sent_total",
			Help: "Total number of microphone chunks sent upstream",
		}),
		BytesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_audio_bytes_sent_total",
			Help: "Total number of PCM bytes sent upstream",
		}),
		ChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_audio_chunks_received_total",
			Help: "Total number of audio chunks accepted into the playback queue",
		}),
		ChunksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_audio_chunks_dropped_total",
			Help: "Total number of audio chunks dropped because the playback queue was full",
		}),
		ChunksPlayed: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_audio_chunks_played_total",
			Help: "Total number of audio chunks written to the speaker",
		}),
		InputOverflows: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_input_overflows_total",
			Help: "Total number of microphone overflows reported by the device",
		}),
		OutputUnderflows: f.NewCounter(prometheus.CounterOpts{
			Name: "gemini_live_output_underflows_total",
			Help: "Total number of speaker underflows reported by the device",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "gemini_live_playback_queue_depth",
			Help: "Current number of chunks waiting for playback",
		}),
		InputLevel: f.NewGauge(prometheus.GaugeOpts{
			Name: "gemini_live_input_level",
			Help: "RMS level of the last microphone chunk (0-1)",
		}),

		State: f.NewGauge(prometheus.GaugeOpts{
			Name: "gemini_live_session_state",
			Help: "Current session state (0 connecting, 1 awaiting setup ack, 2 streaming, 3 shutting down, 4 closed)",
		}),
	}
}
