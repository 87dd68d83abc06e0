package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorker()
	c.normalizeCapture()
	if err := c.normalizeTranscode(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CaptureDir) == "" {
		c.Paths.CaptureDir = defaultCaptureDir
	}
	if c.Paths.CaptureDir, err = expandPath(c.Paths.CaptureDir); err != nil {
		return fmt.Errorf("paths.capture_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorker() {
	c.Worker.Simulation = strings.ToLower(strings.TrimSpace(c.Worker.Simulation))
	if c.Worker.FPS == 0 {
		c.Worker.FPS = defaultWorkerFPS
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.Format = strings.ToLower(strings.TrimSpace(c.Capture.Format))
	if c.Capture.Format == "" {
		c.Capture.Format = defaultCaptureFormat
	}
	if c.Capture.Supersample == 0 {
		c.Capture.Supersample = defaultSupersample
	}
	if c.Capture.FPS == 0 {
		c.Capture.FPS = c.Worker.FPS
	}
	if c.Capture.Width == 0 {
		c.Capture.Width = c.Worker.Width
	}
	if c.Capture.Height == 0 {
		c.Capture.Height = c.Worker.Height
	}
	c.Capture.FFmpegBinary = strings.TrimSpace(c.Capture.FFmpegBinary)
}

func (c *Config) normalizeTranscode() error {
	var err error
	if strings.TrimSpace(c.Transcode.OutputDir) == "" {
		c.Transcode.OutputDir = defaultTranscodeOutputDir
	}
	if c.Transcode.OutputDir, err = expandPath(c.Transcode.OutputDir); err != nil {
		return fmt.Errorf("transcode.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
