package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"simloop/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CaptureDir = filepath.Join(base, "captures")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Transcode.OutputDir = filepath.Join(base, "archive")
	cfgVal.Worker.FPS = 240
	cfgVal.Worker.Width = 32
	cfgVal.Worker.Height = 18
	cfgVal.Capture.Enabled = false
	cfgVal.Capture.Format = "gif"
	cfgVal.Capture.Width = 32
	cfgVal.Capture.Height = 18
	cfgVal.Capture.FPS = 30

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCapture enables capture in the given format.
func WithCapture(format string, frames int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.Enabled = true
		b.cfg.Capture.Format = format
		b.cfg.Capture.FrameCount = frames
	}
}

// WithSimulation selects the simulation started by the worker.
func WithSimulation(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.Simulation = name
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed with a script
// that copies stdin to its last argument.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nfor last; do :; done\ncat > \"$last\"\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CaptureDir)
}
