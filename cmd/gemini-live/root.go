package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-gemini-live/internal/config"
	"github.com/teslashibe/go-gemini-live/internal/log"
	"github.com/teslashibe/go-gemini-live/pkg/audioio"
	"github.com/teslashibe/go-gemini-live/pkg/session"
	"github.com/teslashibe/go-gemini-live/pkg/transcript"
	"github.com/teslashibe/go-gemini-live/pkg/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath    string
	model         string
	voice         string
	system        string
	backend       string
	setupTimeout  time.Duration
	fatalUpstream bool
	webAddr       string
	logLevel      string
	logFormat     string
	noTranscript  bool
}

// execute runs the CLI and returns the process exit status.
func execute(args []string) int {
	var code int
	root := newRootCmd(&code)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "gemini-live",
		Short: "Real-time voice conversation with a Gemini Live model",
		Long: `Stream microphone audio to a Gemini Live model and play its spoken
replies as they arrive. Transcripts of both sides are printed to stdout.

Configuration is read from --config (YAML), then overridden by flags.
The API key comes from GOOGLE_API_KEY or a .env file.

Example config file (gemini-live.yaml):
  session:
    voice: Puck
    setup_timeout: 10s
  capture:
    backend: portaudio
  web:
    enabled: true
    addr: 127.0.0.1:8089`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				*code = 1
				return err
			}
			*code = run(cmd.Context(), cfg, opts.noTranscript)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML config file")
	f.StringVar(&opts.model, "model", session.DefaultModel, "model resource name")
	f.StringVar(&opts.voice, "voice", session.DefaultVoice, "prebuilt voice name")
	f.StringVar(&opts.system, "system", session.DefaultInstruction, "system instruction")
	f.StringVar(&opts.backend, "backend", string(audioio.BackendAuto), "audio backend: auto, portaudio, miniaudio or mock")
	f.DurationVar(&opts.setupTimeout, "setup-timeout", session.DefaultSetupTimeout, "how long to wait for setup acknowledgement")
	f.BoolVar(&opts.fatalUpstream, "fatal-upstream-errors", false, "end the session on a server error message")
	f.StringVar(&opts.webAddr, "web-addr", "", "serve status, metrics and transcripts on this address")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	f.BoolVar(&opts.noTranscript, "no-transcript", false, "do not print transcripts to stdout")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "gemini-live", version)
		},
	})
	return cmd
}

// loadConfig layers defaults, the config file, .env, the environment and
// explicitly set flags, then installs the logger.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	applyFlags(cmd, opts, &cfg)

	if _, err := log.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return cfg, err
	}
	if err := config.LoadDotEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyFlags copies flags the user set over the file configuration.
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("model") {
		cfg.Session.Model = opts.model
	}
	if f.Changed("voice") {
		cfg.Session.Voice = opts.voice
	}
	if f.Changed("system") {
		cfg.Session.SystemInstruction = opts.system
	}
	if f.Changed("backend") {
		cfg.Capture.Backend = audioio.Backend(opts.backend)
		cfg.Playback.Backend = audioio.Backend(opts.backend)
	}
	if f.Changed("setup-timeout") {
		cfg.Session.SetupTimeout = opts.setupTimeout
	}
	if f.Changed("fatal-upstream-errors") {
		cfg.Session.FatalUpstreamErrors = opts.fatalUpstream
	}
	if f.Changed("web-addr") {
		cfg.Web.Enabled = opts.webAddr != ""
		cfg.Web.Addr = opts.webAddr
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
}

// run holds one conversation and returns the exit status.
func run(parent context.Context, cfg config.Config, noTranscript bool) int {
	logger := log.L()
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := audioio.NewSource(cfg.Capture, logger)
	if err != nil {
		logger.Error("capture device unavailable", "backend", cfg.Capture.Backend, "err", err)
		return 1
	}
	sink, err := audioio.NewSink(cfg.Playback, logger)
	if err != nil {
		src.Close()
		logger.Error("playback device unavailable", "backend", cfg.Playback.Backend, "err", err)
		return 1
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var handlers []transcript.Handler
	if !noTranscript {
		handlers = append(handlers, transcript.NewConsole(os.Stdout, transcript.DefaultTheme))
	}

	// sess is assigned before the status server starts listening.
	var sess *session.Session
	var srv *web.Server
	if cfg.Web.Enabled {
		srv, err = web.NewServer(web.Options{
			Addr:     cfg.Web.Addr,
			Status:   web.StatusFunc(func() session.Status { return sess.Status() }),
			Gatherer: reg,
			Logger:   logger,
		})
		if err != nil {
			src.Close()
			sink.Close()
			logger.Error("status server", "err", err)
			return 1
		}
		handlers = append(handlers, srv)
	}

	sess, err = session.New(session.Options{
		Config:      cfg.Session,
		Transport:   cfg.Transport,
		Source:      src,
		Sink:        sink,
		Transcripts: transcript.Multi(handlers...),
		Registry:    reg,
		Logger:      logger,
	})
	if err != nil {
		src.Close()
		sink.Close()
		logger.Error("invalid session configuration", "err", err)
		return 1
	}

	if srv != nil {
		srv.StartAsync(ctx)
		defer srv.Shutdown()
	}

	logger.Info("connecting", "endpoint", cfg.Transport.Redacted(), "session_id", sess.ID())
	err = sess.Run(ctx)
	code := session.ExitCode(err)
	if code != 0 {
		logger.Error("exiting", "code", code, "err", err)
	}
	return code
}
