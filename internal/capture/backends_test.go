package capture

import (
	"bytes"
	"errors"
	"image/color"
	"image/gif"
	"image/jpeg"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"simloop/internal/logging"
)

func TestParseFormatAliases(t *testing.T) {
	cases := map[string]Format{
		"h264":  FormatH264,
		"AVC":   FormatH264,
		"hevc":  FormatH265,
		"jpg":   FormatJPEG,
		" GIF ": FormatGIF,
		"tiff":  FormatTIFF,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("webm"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("unknown format err = %v", err)
	}
}

func TestNormalizeVideoConfig(t *testing.T) {
	cfg, err := Config{Format: FormatH264, Path: "out.mp4", Width: 641, Height: 361, FPS: 30, Quality: 50}.normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 360 {
		t.Fatalf("size = %dx%d, want 640x360", cfg.Width, cfg.Height)
	}
	if cfg.Supersample != 1 {
		t.Fatalf("supersample = %d", cfg.Supersample)
	}
	if cfg.BitrateMbps <= 0 {
		t.Fatal("bitrate not filled in")
	}
}

func TestNormalizeRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"zero size", Config{Format: FormatGIF, FPS: 10}, ErrInvalidConfig},
		{"supersample", Config{Format: FormatPNG, Width: 4, Height: 4, Supersample: 9}, ErrInvalidConfig},
		{"sharpen", Config{Format: FormatPNG, Width: 4, Height: 4, Sharpen: 2}, ErrInvalidConfig},
		{"no fps", Config{Format: FormatGIF, Width: 4, Height: 4}, ErrInvalidConfig},
		{"no path", Config{Format: FormatH265, Width: 64, Height: 64, FPS: 30}, ErrInvalidConfig},
		{"tiny video", Config{Format: FormatH264, Path: "x.mp4", Width: 1, Height: 1, FPS: 30}, ErrInvalidConfig},
		{"h264 too large", Config{Format: FormatH264, Path: "x.mp4", Width: 8192, Height: 4320, FPS: 30}, ErrUnsupportedResolution},
		{"unknown", Config{Format: "webm", Width: 4, Height: 4}, ErrUnknownFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.normalize(); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFrameLimitForSnapshots(t *testing.T) {
	if got := (Config{Format: FormatJPEG, FrameCount: 10}).FrameLimit(); got != 1 {
		t.Fatalf("snapshot frame limit = %d", got)
	}
	if got := (Config{Format: FormatGIF, FrameCount: 10}).FrameLimit(); got != 10 {
		t.Fatalf("gif frame limit = %d", got)
	}
}

func TestRecommendedRange(t *testing.T) {
	r := RecommendedRange(1920, 1080, 60, FormatH264)
	if r.MinMbps >= r.MaxMbps {
		t.Fatalf("range inverted: %+v", r)
	}
	hevc := RecommendedRange(1920, 1080, 60, FormatH265)
	if hevc.MaxMbps >= r.MaxMbps {
		t.Fatalf("h265 max %.2f should be below h264 max %.2f", hevc.MaxMbps, r.MaxMbps)
	}
	tiny := RecommendedRange(1, 1, 0, FormatH264)
	if tiny.MinMbps != minBitrateMbps {
		t.Fatalf("tiny min = %v", tiny.MinMbps)
	}
	huge := RecommendedRange(16384, 16384, 500, FormatH264)
	if huge.MaxMbps != maxBitrateMbps {
		t.Fatalf("huge max = %v", huge.MaxMbps)
	}
}

func TestChooseBitrateIsMonotonic(t *testing.T) {
	r := RecommendedRange(1280, 720, 30, FormatH264)
	if got := ChooseBitrate(r, 0); got < r.MinMbps*0.999 || got > r.MinMbps*1.001 {
		t.Fatalf("quality 0 = %v, want %v", got, r.MinMbps)
	}
	if got := ChooseBitrate(r, 100); got < r.MaxMbps*0.999 || got > r.MaxMbps*1.001 {
		t.Fatalf("quality 100 = %v, want %v", got, r.MaxMbps)
	}
	prev := 0.0
	for q := 0; q <= 100; q += 10 {
		got := ChooseBitrate(r, q)
		if got <= prev {
			t.Fatalf("bitrate not increasing at quality %d", q)
		}
		prev = got
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs(Config{Format: FormatH264, Path: "/tmp/out.mp4", Width: 640, Height: 360, FPS: 30, BitrateMbps: 4})
	joined := strings.Join(args, " ")
	for _, want := range []string{"-s 640x360", "-r 30", "-c:v libx264", "-g 60", "-b:v 4000k", "-bufsize 2000k", "-pix_fmt yuv420p"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "/tmp/out.mp4" {
		t.Fatalf("output path must be last, got %q", args[len(args)-1])
	}

	lossless := ffmpegArgs(Config{Format: FormatH265, Path: "o.mp4", Width: 64, Height: 64, FPS: 24, Lossless: true, TenBit: true, BitrateMbps: 4})
	joined = strings.Join(lossless, " ")
	if !strings.Contains(joined, "lossless=1") || !strings.Contains(joined, "yuv420p10le") {
		t.Fatalf("h265 lossless args = %q", joined)
	}
	if slices.Contains(lossless, "-b:v") {
		t.Fatal("lossless encode should not set a bitrate")
	}
}

func TestFFmpegBackendWritesRawFrames(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffmpeg")
	// The stub copies stdin into its last argument.
	script := "#!/bin/sh\nfor last; do :; done\ncat > \"$last\"\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	m := NewManager(DefaultRegistry(BackendOptions{FFmpegBinary: stub}), nil, logging.NewNop())
	t.Cleanup(m.Close)
	out := filepath.Join(dir, "clips", "clip1.mp4")
	if err := m.StartCapture(Config{Format: FormatH264, Path: out, Width: 16, Height: 16, FPS: 10}); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	for i := 0; i < 2; i++ {
		m.EncodeFrame(solid(16, 16, color.RGBA{B: 255, A: 255}), nil)
		if !m.WaitUntilReadyForNewFrame() {
			t.Fatalf("frame %d: encoder stopped", i)
		}
	}
	m.FinalizeCapture()
	c := waitCompletion(t, m)
	if c.Err != nil {
		t.Fatalf("completion err = %v", c.Err)
	}
	if c.Path != out || c.InMemory || c.Frames != 2 {
		t.Fatalf("completion = %+v", c)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() != 2*16*16*4 {
		t.Fatalf("output size = %d", info.Size())
	}
}

func TestDefaultRegistryWithoutFFmpeg(t *testing.T) {
	formats := DefaultRegistry(BackendOptions{}).Formats()
	if slices.Contains(formats, FormatH264) {
		t.Fatal("h264 registered without an ffmpeg binary")
	}
	for _, f := range []Format{FormatGIF, FormatPNG, FormatJPEG, FormatTIFF, FormatBMP} {
		if !slices.Contains(formats, f) {
			t.Fatalf("missing %s in %v", f, formats)
		}
	}
}

func TestGIFBackendAnimates(t *testing.T) {
	b := &gifBackend{}
	if err := b.Start(Config{Format: FormatGIF, Width: 4, Height: 4, FPS: 25, Quality: 80}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := uint64(1); i <= 3; i++ {
		if err := b.EncodeFrame(&Frame{Seq: i, Image: solid(4, 4, color.RGBA{R: uint8(i * 60), A: 255})}); err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
	}
	out, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	anim, err := gif.DecodeAll(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(anim.Image) != 3 || out.Frames != 3 {
		t.Fatalf("frames = %d/%d", len(anim.Image), out.Frames)
	}
	if anim.Delay[0] != 4 {
		t.Fatalf("delay = %d, want 4", anim.Delay[0])
	}

	empty := &gifBackend{}
	_ = empty.Start(Config{Format: FormatGIF, Width: 4, Height: 4, FPS: 25})
	if _, err := empty.Finalize(); err == nil {
		t.Fatal("empty gif should fail to finalize")
	}
}

func TestSnapshotFormatsDecode(t *testing.T) {
	img := solid(8, 8, color.RGBA{R: 10, G: 200, B: 30, A: 255})
	decoders := map[Format]func([]byte) error{
		FormatJPEG: func(b []byte) error { _, err := jpeg.Decode(bytes.NewReader(b)); return err },
		FormatTIFF: func(b []byte) error { _, err := tiff.Decode(bytes.NewReader(b)); return err },
		FormatBMP:  func(b []byte) error { _, err := bmp.Decode(bytes.NewReader(b)); return err },
	}
	for format, decode := range decoders {
		b := &snapshotBackend{}
		_ = b.Start(Config{Format: format, Width: 8, Height: 8, Quality: 90, NearLossless: 50})
		if err := b.EncodeFrame(&Frame{Seq: 1, Image: img}); err != nil {
			t.Fatalf("%s encode: %v", format, err)
		}
		if err := b.EncodeFrame(&Frame{Seq: 2, Image: img}); err == nil {
			t.Fatalf("%s accepted a second frame", format)
		}
		out, err := b.Finalize()
		if err != nil {
			t.Fatalf("%s finalize: %v", format, err)
		}
		if err := decode(out.Data); err != nil {
			t.Fatalf("%s decode: %v", format, err)
		}
	}
}

func TestReducePrecision(t *testing.T) {
	img := solid(2, 2, color.RGBA{R: 13, G: 250, B: 3, A: 255})
	out := reducePrecision(img, 2)
	got := out.RGBAAt(1, 1)
	if got.R%4 != 0 || got.G%4 != 0 || got.B%4 != 0 || got.A != 255 {
		t.Fatalf("reduced pixel = %v", got)
	}
	if nearLosslessBits(1) != 1 || nearLosslessBits(100) != 4 {
		t.Fatalf("near-lossless mapping = %d..%d", nearLosslessBits(1), nearLosslessBits(100))
	}
}

func TestPayloadRejectsNonPNG(t *testing.T) {
	if _, err := embedPayload([]byte("GIF89a"), "x"); err == nil {
		t.Fatal("expected error for non-png input")
	}
	if _, ok := ExtractPayload([]byte("nope")); ok {
		t.Fatal("extracted payload from non-png input")
	}
}

func TestNextClipPath(t *testing.T) {
	dir := t.TempDir()
	got, err := NextClipPath(filepath.Join(dir, "missing"), "mp4")
	if err != nil || filepath.Base(got) != "clip1.mp4" {
		t.Fatalf("empty dir = %q, %v", got, err)
	}
	for _, name := range []string{"clip1.mp4", "clip7.gif", "clipx.png", "other3.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err = NextClipPath(dir, ".png")
	if err != nil {
		t.Fatalf("NextClipPath: %v", err)
	}
	if filepath.Base(got) != "clip8.png" {
		t.Fatalf("next clip = %q, want clip8.png", got)
	}
}
