package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"

	xdraw "golang.org/x/image/draw"
)

// gifBackend collects frames into an animated GIF held in memory.
type gifBackend struct {
	cfg   Config
	anim  gif.GIF
	delay int
}

func (b *gifBackend) Start(cfg Config) error {
	b.cfg = cfg
	// GIF delays are in hundredths of a second.
	b.delay = max(1, (100+cfg.FPS/2)/cfg.FPS)
	b.anim = gif.GIF{LoopCount: 0}
	return nil
}

func (b *gifBackend) EncodeFrame(f *Frame) error {
	src := f.Image
	if src == nil {
		return fmt.Errorf("frame %d has no image", f.Seq)
	}
	bounds := image.Rect(0, 0, b.cfg.Width, b.cfg.Height)
	dst := image.NewPaletted(bounds, palette.Plan9)
	// Dithering trades file size for smoother gradients.
	var drawer xdraw.Drawer = xdraw.Src
	if b.cfg.Quality >= 50 || b.cfg.Lossless {
		drawer = xdraw.FloydSteinberg
	}
	drawer.Draw(dst, bounds, src, src.Bounds().Min)
	b.anim.Image = append(b.anim.Image, dst)
	b.anim.Delay = append(b.anim.Delay, b.delay)
	return nil
}

func (b *gifBackend) Finalize() (Output, error) {
	frames := len(b.anim.Image)
	if frames == 0 {
		return Output{}, fmt.Errorf("gif: no frames captured")
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, &b.anim); err != nil {
		return Output{Frames: frames}, fmt.Errorf("encode gif: %w", err)
	}
	return Output{Data: buf.Bytes(), Frames: frames}, nil
}
