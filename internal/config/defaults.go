package config

const (
	defaultConfigPath         = "~/.config/simloop/config.toml"
	defaultCaptureDir         = "~/.local/share/simloop/captures"
	defaultLogDir             = "~/.local/share/simloop/logs"
	defaultStateDir           = "~/.local/share/simloop/state"
	defaultTranscodeOutputDir = "~/.local/share/simloop/archive"
	defaultWorkerFPS          = 60
	defaultWorkerWidth        = 640
	defaultWorkerHeight       = 360
	defaultSimulation         = "orbit"
	defaultCaptureFormat      = "h264"
	defaultCaptureFPS         = 60
	defaultCaptureQuality     = 80
	defaultSupersample        = 1
	defaultFFmpegBinary       = "ffmpeg"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"

	// MaxSupersample bounds the capture supersample factor.
	MaxSupersample = 8
	// MaxNearLossless is the highest near-lossless level accepted.
	MaxNearLossless = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CaptureDir: defaultCaptureDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Worker: Worker{
			Simulation: defaultSimulation,
			FPS:        defaultWorkerFPS,
			Width:      defaultWorkerWidth,
			Height:     defaultWorkerHeight,
			AutoStart:  true,
		},
		Capture: Capture{
			Enabled:     true,
			Format:      defaultCaptureFormat,
			Supersample: defaultSupersample,
			Quality:     defaultCaptureQuality,
			FPS:         defaultCaptureFPS,
		},
		Transcode: Transcode{
			OutputDir: defaultTranscodeOutputDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
