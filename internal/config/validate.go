package config

import (
	"errors"
	"fmt"
)

var captureFormats = map[string]struct{}{
	"h264": {},
	"h265": {},
	"gif":  {},
	"png":  {},
	"jpeg": {},
	"tiff": {},
	"bmp":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.FPS <= 0 || c.Worker.FPS > 1000 {
		return errors.New("worker.fps must be between 1 and 1000")
	}
	if c.Worker.Width <= 0 || c.Worker.Height <= 0 {
		return errors.New("worker.width and worker.height must be positive")
	}
	if c.Worker.Frames < 0 {
		return errors.New("worker.frames must be >= 0")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if _, ok := captureFormats[c.Capture.Format]; !ok {
		return fmt.Errorf("capture.format %q is not supported", c.Capture.Format)
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return errors.New("capture.width and capture.height must be positive")
	}
	if c.Capture.Supersample < 1 || c.Capture.Supersample > MaxSupersample {
		return fmt.Errorf("capture.supersample must be between 1 and %d", MaxSupersample)
	}
	if c.Capture.Sharpen < 0 || c.Capture.Sharpen > 1 {
		return errors.New("capture.sharpen must be between 0 and 1")
	}
	if c.Capture.Quality < 0 || c.Capture.Quality > 100 {
		return errors.New("capture.quality must be between 0 and 100")
	}
	if c.Capture.NearLossless < 0 || c.Capture.NearLossless > MaxNearLossless {
		return fmt.Errorf("capture.near_lossless must be between 0 and %d", MaxNearLossless)
	}
	if c.Capture.FPS <= 0 {
		return errors.New("capture.fps must be positive")
	}
	if c.Capture.FrameCount < 0 {
		return errors.New("capture.frame_count must be >= 0")
	}
	if c.Capture.BitrateMbps < 0 {
		return errors.New("capture.bitrate_mbps must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
