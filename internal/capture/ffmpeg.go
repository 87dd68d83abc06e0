package capture

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"simloop/internal/logging"
)

// ffmpegBackend pipes raw RGBA frames into an ffmpeg process that encodes and
// muxes the video file.
type ffmpegBackend struct {
	binary string
	logger *slog.Logger

	cfg    Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	frames int
}

func newFFmpegBackend(binary string, logger *slog.Logger) *ffmpegBackend {
	return &ffmpegBackend{binary: binary, logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

func (b *ffmpegBackend) Start(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	b.cfg = cfg
	b.stderr = &tailBuffer{limit: 4096}
	b.cmd = exec.Command(b.binary, ffmpegArgs(cfg)...)
	b.cmd.Stderr = b.stderr
	stdin, err := b.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	b.stdin = stdin
	if err := b.cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	b.logger.Debug("ffmpeg started",
		logging.String("binary", b.binary),
		logging.String(logging.FieldOutput, cfg.Path),
	)
	return nil
}

func (b *ffmpegBackend) EncodeFrame(f *Frame) error {
	img := f.Image
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w < b.cfg.Width || h < b.cfg.Height {
		return fmt.Errorf("frame %d is %dx%d, want %dx%d", f.Seq, w, h, b.cfg.Width, b.cfg.Height)
	}
	rowBytes := b.cfg.Width * 4
	for y := 0; y < b.cfg.Height; y++ {
		off := img.PixOffset(img.Bounds().Min.X, img.Bounds().Min.Y+y)
		if _, err := b.stdin.Write(img.Pix[off : off+rowBytes]); err != nil {
			return fmt.Errorf("%w: write frame %d to ffmpeg: %v: %s", ErrUnrecoverable, f.Seq, err, b.stderr.String())
		}
	}
	b.frames++
	return nil
}

func (b *ffmpegBackend) Finalize() (Output, error) {
	closeErr := b.stdin.Close()
	waitErr := b.cmd.Wait()
	out := Output{Path: b.cfg.Path, Frames: b.frames}
	if waitErr != nil {
		return out, fmt.Errorf("ffmpeg exited: %w: %s", waitErr, b.stderr.String())
	}
	if closeErr != nil {
		return out, fmt.Errorf("close ffmpeg stdin: %w", closeErr)
	}
	return out, nil
}

// ffmpegArgs builds the command line for cfg. The resolution is already
// trimmed to even dimensions.
func ffmpegArgs(cfg Config) []string {
	size := fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	fps := strconv.Itoa(cfg.FPS)
	gop := strconv.Itoa(cfg.FPS * 2)
	kbps := int(cfg.BitrateMbps * 1000)

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", size,
		"-r", fps,
		"-i", "-",
	}

	switch cfg.Format {
	case FormatH265:
		args = append(args, "-c:v", "libx265", "-preset", "medium")
		params := "bframes=6:keyint=" + gop
		if cfg.Lossless {
			params += ":lossless=1"
		}
		args = append(args, "-x265-params", params, "-tag:v", "hvc1")
		if cfg.TenBit {
			args = append(args, "-profile:v", "main10", "-pix_fmt", "yuv420p10le")
		} else {
			args = append(args, "-profile:v", "main", "-pix_fmt", "yuv420p")
		}
	default:
		args = append(args, "-c:v", "libx264", "-preset", "veryslow", "-bf", "3", "-g", gop)
		if cfg.Lossless {
			args = append(args, "-qp", "0", "-profile:v", "high444", "-pix_fmt", "yuv444p")
		} else {
			args = append(args, "-profile:v", "high", "-pix_fmt", "yuv420p")
		}
	}

	if !cfg.Lossless && kbps > 0 {
		args = append(args,
			"-b:v", fmt.Sprintf("%dk", kbps),
			"-maxrate", fmt.Sprintf("%dk", kbps),
			"-bufsize", fmt.Sprintf("%dk", max(kbps/2, 1)),
		)
	}
	return append(args, "-movflags", "+faststart", cfg.Path)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
