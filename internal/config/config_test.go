package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"simloop/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCaptures := filepath.Join(tempHome, ".local", "share", "simloop", "captures")
	if cfg.Paths.CaptureDir != wantCaptures {
		t.Fatalf("unexpected capture dir: got %q want %q", cfg.Paths.CaptureDir, wantCaptures)
	}
	if cfg.Worker.FPS != 60 {
		t.Fatalf("unexpected worker fps: %d", cfg.Worker.FPS)
	}
	if cfg.Capture.Width != cfg.Worker.Width || cfg.Capture.Height != cfg.Worker.Height {
		t.Fatalf("expected capture size to default to canvas size, got %dx%d", cfg.Capture.Width, cfg.Capture.Height)
	}
	if cfg.Capture.FPS != cfg.Worker.FPS {
		t.Fatalf("expected capture fps to follow worker fps, got %d", cfg.Capture.FPS)
	}
	if cfg.Capture.Format != "h264" {
		t.Fatalf("unexpected default capture format %q", cfg.Capture.Format)
	}
	if cfg.FFmpegBinary() != "ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary %q", cfg.FFmpegBinary())
	}
	if !strings.HasSuffix(cfg.SessionsDBPath(), filepath.Join("state", "sessions.db")) {
		t.Fatalf("unexpected sessions db path %q", cfg.SessionsDBPath())
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "custom.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"capture_dir": "~/clips",
		},
		"worker": map[string]any{
			"simulation": " Ripple ",
			"fps":        30,
		},
		"capture": map[string]any{
			"format":      "PNG",
			"width":       64,
			"height":      64,
			"frame_count": 1,
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.CaptureDir != filepath.Join(tempHome, "clips") {
		t.Fatalf("unexpected capture dir %q", cfg.Paths.CaptureDir)
	}
	if cfg.Worker.Simulation != "ripple" {
		t.Fatalf("expected normalized simulation name, got %q", cfg.Worker.Simulation)
	}
	if cfg.Capture.Format != "png" || cfg.Capture.FPS != 30 {
		t.Fatalf("unexpected capture settings: %+v", cfg.Capture)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging settings: %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(configPath, []byte("[worker]\nspeed = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"format", func(c *config.Config) { c.Capture.Format = "webm" }, "capture.format"},
		{"supersample", func(c *config.Config) { c.Capture.Supersample = 0 }, "capture.supersample"},
		{"sharpen", func(c *config.Config) { c.Capture.Sharpen = 1.5 }, "capture.sharpen"},
		{"quality", func(c *config.Config) { c.Capture.Quality = 101 }, "capture.quality"},
		{"frame count", func(c *config.Config) { c.Capture.FrameCount = -1 }, "capture.frame_count"},
		{"fps", func(c *config.Config) { c.Worker.FPS = 0 }, "worker.fps"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Capture.Width = 64
			cfg.Capture.Height = 64
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Worker.Simulation != "orbit" {
		t.Fatalf("unexpected sample simulation %q", cfg.Worker.Simulation)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CaptureDir = filepath.Join(base, "captures")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CaptureDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
