package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-gemini-live/internal/config"
	"github.com/teslashibe/go-gemini-live/pkg/audioio"
)

func TestVersionCommand(t *testing.T) {
	var code int
	cmd := newRootCmd(&code)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "gemini-live ") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	os.WriteFile(path, []byte("session:\n  voice: Kore\n  model: models/file\n"), 0o600)

	var code int
	cmd := newRootCmd(&code)
	if err := cmd.ParseFlags([]string{"--config", path, "--voice", "Puck", "--backend", "mock", "--setup-timeout", "3s", "--web-addr", ":9001"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	var opts options
	opts.voice, _ = cmd.Flags().GetString("voice")
	opts.backend, _ = cmd.Flags().GetString("backend")
	opts.setupTimeout, _ = cmd.Flags().GetDuration("setup-timeout")
	opts.webAddr, _ = cmd.Flags().GetString("web-addr")
	applyFlags(cmd, &opts, &cfg)

	if cfg.Session.Voice != "Puck" {
		t.Errorf("Voice = %q, want flag value", cfg.Session.Voice)
	}
	if cfg.Session.Model != "models/file" {
		t.Errorf("Model = %q, want file value", cfg.Session.Model)
	}
	if cfg.Capture.Backend != audioio.BackendMock || cfg.Playback.Backend != audioio.BackendMock {
		t.Errorf("backends = %q/%q", cfg.Capture.Backend, cfg.Playback.Backend)
	}
	if cfg.Session.SetupTimeout != 3*time.Second {
		t.Errorf("SetupTimeout = %v", cfg.Session.SetupTimeout)
	}
	if !cfg.Web.Enabled || cfg.Web.Addr != ":9001" {
		t.Errorf("Web = %+v", cfg.Web)
	}
}

func TestMissingAPIKeyExitsOne(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv(config.EnvAPIKey, "")

	var code int
	cmd := newRootCmd(&code)
	cmd.SetArgs([]string{"--backend", "mock"})
	err := cmd.Execute()
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Errorf("Execute() error = %v, want ErrMissingAPIKey", err)
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

// testChdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
