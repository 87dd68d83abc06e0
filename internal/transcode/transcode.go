package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"simloop/internal/logging"
)

// Progress is a simplified Drapto progress event.
type Progress struct {
	Stage   string
	Percent float64
	Message string
}

// Encoder turns inputPath into an archive file inside outputDir and returns
// the file it wrote.
type Encoder interface {
	Encode(ctx context.Context, inputPath, outputDir string, progress func(Progress)) (string, error)
}

// ErrNotVideo is returned for captures that are not muxed video files.
var ErrNotVideo = errors.New("capture is not a video file")

// Transcoder archives finished captures.
type Transcoder struct {
	encoder   Encoder
	outputDir string
	logger    *slog.Logger
}

// New builds a Transcoder writing into outputDir. A nil encoder uses the
// Drapto library.
func New(encoder Encoder, outputDir string, logger *slog.Logger) *Transcoder {
	if encoder == nil {
		encoder = NewLibrary()
	}
	return &Transcoder{
		encoder:   encoder,
		outputDir: outputDir,
		logger:    logging.NewComponentLogger(logger, "transcode"),
	}
}

// Eligible reports whether path is a capture the archive pass handles.
func Eligible(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mkv", ".mov":
		return true
	default:
		return false
	}
}

// Archive encodes the capture at inputPath and returns the archive path.
func (t *Transcoder) Archive(ctx context.Context, inputPath string) (string, error) {
	if !Eligible(inputPath) {
		return "", fmt.Errorf("%w: %s", ErrNotVideo, inputPath)
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("stat capture: %w", err)
	}
	if err := os.MkdirAll(t.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	logger := t.logger.With(logging.String("input", inputPath))
	logger.Info("archive encode started")
	lastStage := ""
	out, err := t.encoder.Encode(ctx, inputPath, t.outputDir, func(p Progress) {
		if p.Stage != lastStage {
			lastStage = p.Stage
			logger.Debug("archive encode stage", logging.String("stage", p.Stage), logging.Float64("percent", p.Percent))
		}
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", filepath.Base(inputPath), err)
	}
	logger.Info("archive encode finished", logging.String("output", out))
	return out, nil
}

// Library implements Encoder with the Drapto Go library.
type Library struct{}

// NewLibrary constructs a Library encoder.
func NewLibrary() *Library {
	return &Library{}
}

// Encode encodes inputPath with Drapto's responsive preset.
func (l *Library) Encode(ctx context.Context, inputPath, outputDir string, progress func(Progress)) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return "", errors.New("output directory required")
	}

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", err
	}

	var rep draptolib.Reporter
	if progress != nil {
		rep = &reporter{callback: progress}
	}
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		return "", err
	}
	return ArchivePath(inputPath, outputDir), nil
}

// ArchivePath is the file Drapto writes for inputPath inside outputDir.
func ArchivePath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(strings.TrimSpace(outputDir), stem+".mkv")
}

var _ Encoder = (*Library)(nil)
