package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CaptureDir string `toml:"capture_dir"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
}

// Worker contains configuration for the simulation worker loop.
type Worker struct {
	// Simulation is selected when the worker starts. Empty selects nothing.
	Simulation string `toml:"simulation"`
	FPS        int    `toml:"fps"`
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	AutoStart  bool   `toml:"auto_start"`
	// Frames stops the run after this many presented frames. Zero runs until interrupted.
	Frames int `toml:"frames"`
}

// Capture contains the defaults applied to new capture sessions.
type Capture struct {
	Enabled      bool    `toml:"enabled"`
	Format       string  `toml:"format"`
	Width        int     `toml:"width"`
	Height       int     `toml:"height"`
	Supersample  int     `toml:"supersample"`
	Sharpen      float64 `toml:"sharpen"`
	Quality      int     `toml:"quality"`
	Lossless     bool    `toml:"lossless"`
	NearLossless int     `toml:"near_lossless"`
	FPS          int     `toml:"fps"`
	FrameCount   int     `toml:"frame_count"`
	BitrateMbps  float64 `toml:"bitrate_mbps"`
	TenBit       bool    `toml:"ten_bit"`
	FlipVertical bool    `toml:"flip_vertical"`
	FFmpegBinary string  `toml:"ffmpeg_binary"`
}

// Transcode contains configuration for the optional AV1 archive pass.
type Transcode struct {
	Enabled   bool   `toml:"enabled"`
	OutputDir string `toml:"output_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for simloop.
//
// Configuration sections by subsystem:
//   - Paths: capture output, logs, and state database directories
//   - Worker: simulation selection, frame rate, and canvas size
//   - Capture: defaults for new capture sessions
//   - Transcode: AV1 archive copies of finished video captures
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Worker    Worker    `toml:"worker"`
	Capture   Capture   `toml:"capture"`
	Transcode Transcode `toml:"transcode"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("simloop.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for a run.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CaptureDir, c.Paths.LogDir, c.Paths.StateDir}
	if c.Transcode.Enabled {
		dirs = append(dirs, c.Transcode.OutputDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionsDBPath returns the location of the capture history database.
func (c *Config) SessionsDBPath() string {
	return filepath.Join(c.Paths.StateDir, "sessions.db")
}

// LockPath returns the path of the single-instance lock guarding the capture directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.CaptureDir, ".simloop.lock")
}

// FFmpegBinary returns the ffmpeg executable used by the video backends.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Capture.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
