package capture

import (
	"errors"
	"fmt"
	"strings"
)

// Format names an output codec.
type Format string

const (
	FormatH264 Format = "h264"
	FormatH265 Format = "h265"
	FormatGIF  Format = "gif"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
)

// Kind groups formats by how the session behaves.
type Kind int

const (
	// KindVideo streams every frame into a muxed file on disk.
	KindVideo Kind = iota
	// KindAnimation streams every frame into an in-memory still-image animation.
	KindAnimation
	// KindSnapshot encodes exactly one frame into memory.
	KindSnapshot
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatH264, FormatH265, FormatGIF, FormatPNG, FormatJPEG, FormatTIFF, FormatBMP:
		return f, nil
	case "jpg":
		return FormatJPEG, nil
	case "hevc", "x265":
		return FormatH265, nil
	case "x264", "avc":
		return FormatH264, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Kind reports the session behaviour of f.
func (f Format) Kind() Kind {
	switch f {
	case FormatH264, FormatH265:
		return KindVideo
	case FormatGIF:
		return KindAnimation
	default:
		return KindSnapshot
	}
}

// Extension returns the file extension used when persisting f.
func (f Format) Extension() string {
	switch f {
	case FormatH264, FormatH265:
		return "mp4"
	case FormatJPEG:
		return "jpg"
	default:
		return string(f)
	}
}

// Config describes one capture session. It is validated and frozen by
// StartCapture.
type Config struct {
	Format Format
	// Path is the output file for video formats. Memory-backed formats ignore it.
	Path string
	// Width and Height are the encoded resolution.
	Width  int
	Height int
	// Supersample multiplies the resolution frames are rendered at before
	// being scaled down to Width x Height.
	Supersample int
	// Sharpen is applied after downsampling, 0..1.
	Sharpen      float64
	Quality      int
	Lossless     bool
	NearLossless int
	FPS          int
	// FrameCount finalizes the session after this many frames. Zero is unbounded.
	FrameCount  int
	BitrateMbps float64
	TenBit      bool
	// FlipVertical corrects sources whose rows are stored bottom-up.
	FlipVertical bool
	// Payload is embedded as text metadata in PNG snapshots.
	Payload string
}

// SourceSize returns the render resolution frames are expected at.
func (c Config) SourceSize() (int, int) {
	return c.Width * c.Supersample, c.Height * c.Supersample
}

// FrameLimit returns the number of frames after which the session finalizes
// itself, or zero when unbounded.
func (c Config) FrameLimit() int {
	if c.Format.Kind() == KindSnapshot {
		return 1
	}
	return c.FrameCount
}

const (
	maxSupersample  = 8
	maxNearLossless = 100
	// h264MaxMacroblocks is the level 5.2 frame size bound.
	h264MaxMacroblocks = 36864
)

// normalize validates c and fills derived values. Video resolutions are
// trimmed to even dimensions and a zero bitrate is replaced by the
// recommendation for the resolution, frame rate, and quality.
func (c Config) normalize() (Config, error) {
	if _, err := ParseFormat(string(c.Format)); err != nil {
		return c, err
	}
	if c.Supersample == 0 {
		c.Supersample = 1
	}
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("resolution %dx%d must be positive", c.Width, c.Height))
	}
	if c.Supersample < 1 || c.Supersample > maxSupersample {
		errs = append(errs, fmt.Errorf("supersample %d must be between 1 and %d", c.Supersample, maxSupersample))
	}
	if c.Sharpen < 0 || c.Sharpen > 1 {
		errs = append(errs, fmt.Errorf("sharpen %.2f must be between 0 and 1", c.Sharpen))
	}
	if c.Quality < 0 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality %d must be between 0 and 100", c.Quality))
	}
	if c.NearLossless < 0 || c.NearLossless > maxNearLossless {
		errs = append(errs, fmt.Errorf("near-lossless %d must be between 0 and %d", c.NearLossless, maxNearLossless))
	}
	if c.FrameCount < 0 {
		errs = append(errs, fmt.Errorf("frame count %d must be >= 0", c.FrameCount))
	}
	if c.BitrateMbps < 0 {
		errs = append(errs, fmt.Errorf("bitrate %.2f must be >= 0", c.BitrateMbps))
	}
	if c.Format.Kind() != KindSnapshot && c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps %d must be positive", c.FPS))
	}
	if err := errors.Join(errs...); err != nil {
		return c, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Format.Kind() == KindVideo {
		c.Width &^= 1
		c.Height &^= 1
		if c.Width == 0 || c.Height == 0 {
			return c, fmt.Errorf("%w: resolution too small for %s", ErrInvalidConfig, c.Format)
		}
		if strings.TrimSpace(c.Path) == "" {
			return c, fmt.Errorf("%w: %s capture requires an output path", ErrInvalidConfig, c.Format)
		}
		if c.Format == FormatH264 && macroblocks(c.Width, c.Height) > h264MaxMacroblocks {
			return c, fmt.Errorf("%w: %dx%d exceeds the h264 level 5.2 frame size", ErrUnsupportedResolution, c.Width, c.Height)
		}
		if c.BitrateMbps == 0 {
			c.BitrateMbps = RecommendedBitrate(c.Width, c.Height, c.FPS, c.Format, c.Quality)
		}
	}
	return c, nil
}

func macroblocks(w, h int) int {
	return ((w + 15) / 16) * ((h + 15) / 16)
}
