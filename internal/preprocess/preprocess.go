package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Options describe the destination of one frame.
type Options struct {
	Width  int
	Height int
	// Sharpen is the unsharp-mask amount applied after scaling, 0..1.
	Sharpen float64
	// FlipVertical reverses row order before scaling.
	FlipVertical bool
}

// ErrEmptySource is returned for nil or zero-sized sources.
var ErrEmptySource = errors.New("empty source image")

// CPU prepares frames for encoding on the calling goroutine.
type CPU struct {
	// Scaler resamples supersampled sources. Defaults to Catmull-Rom.
	Scaler xdraw.Scaler
}

// New returns a CPU preprocessor with the default scaler.
func New() *CPU {
	return &CPU{Scaler: xdraw.CatmullRom}
}

// Process returns a new RGBA image of opts.Width x opts.Height holding src
// flipped, scaled, and sharpened as requested. src is never modified.
func (p *CPU) Process(src *image.RGBA, opts Options) (*image.RGBA, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, ErrEmptySource
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid destination %dx%d", opts.Width, opts.Height)
	}

	img := src
	if opts.FlipVertical {
		img = FlipVertical(src)
	}

	dstRect := image.Rect(0, 0, opts.Width, opts.Height)
	var out *image.RGBA
	if img.Bounds().Dx() == opts.Width && img.Bounds().Dy() == opts.Height {
		out = image.NewRGBA(dstRect)
		draw.Draw(out, dstRect, img, img.Bounds().Min, draw.Src)
	} else {
		scaler := p.Scaler
		if scaler == nil {
			scaler = xdraw.CatmullRom
		}
		out = image.NewRGBA(dstRect)
		scaler.Scale(out, dstRect, img, img.Bounds(), xdraw.Src, nil)
	}

	if opts.Sharpen > 0 {
		out = Sharpen(out, opts.Sharpen)
	}
	return out, nil
}

// FlipVertical returns a copy of src with its rows reversed.
func FlipVertical(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	rowBytes := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		srcOff := src.PixOffset(b.Min.X, b.Max.Y-1-y)
		copy(out.Pix[y*out.Stride:y*out.Stride+rowBytes], src.Pix[srcOff:srcOff+rowBytes])
	}
	return out
}

// Sharpen applies an unsharp mask with a 3x3 box blur. amount is clamped to 0..1
// and alpha is preserved; colour channels stay within alpha.
func Sharpen(src *image.RGBA, amount float64) *image.RGBA {
	amount = min(max(amount, 0), 1)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [3]int
			n := 0
			for dy := -1; dy <= 1; dy++ {
				yy := min(max(y+dy, 0), h-1)
				for dx := -1; dx <= 1; dx++ {
					xx := min(max(x+dx, 0), w-1)
					off := src.PixOffset(b.Min.X+xx, b.Min.Y+yy)
					sum[0] += int(src.Pix[off])
					sum[1] += int(src.Pix[off+1])
					sum[2] += int(src.Pix[off+2])
					n++
				}
			}
			so := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			do := out.PixOffset(x, y)
			alpha := src.Pix[so+3]
			for c := 0; c < 3; c++ {
				orig := float64(src.Pix[so+c])
				blur := float64(sum[c]) / float64(n)
				// Premultiplied colour never exceeds alpha.
				out.Pix[do+c] = min(clampByte(orig+amount*(orig-blur)), alpha)
			}
			out.Pix[do+3] = alpha
		}
	}
	return out
}

// Black returns an opaque black frame, used when preprocessing fails.
func Black(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{A: 0xff}), image.Point{}, draw.Src)
	return img
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
