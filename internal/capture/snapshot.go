package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// snapshotBackend encodes a single still image into memory.
type snapshotBackend struct {
	cfg  Config
	data []byte
}

func (b *snapshotBackend) Start(cfg Config) error {
	b.cfg = cfg
	return nil
}

func (b *snapshotBackend) EncodeFrame(f *Frame) error {
	if b.data != nil {
		return errors.New("snapshot already encoded")
	}
	img := f.Image
	if img == nil {
		return fmt.Errorf("frame %d has no image", f.Seq)
	}
	if b.cfg.Format != FormatJPEG && !b.cfg.Lossless && b.cfg.NearLossless > 0 {
		img = reducePrecision(img, nearLosslessBits(b.cfg.NearLossless))
	}

	var buf bytes.Buffer
	switch b.cfg.Format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		if b.cfg.Payload != "" {
			withText, err := embedPayload(buf.Bytes(), b.cfg.Payload)
			if err != nil {
				return err
			}
			b.data = withText
			return nil
		}
	case FormatJPEG:
		quality := max(1, b.cfg.Quality)
		if b.cfg.Lossless {
			quality = 100
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatTIFF:
		if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
			return fmt.Errorf("encode tiff: %w", err)
		}
	case FormatBMP:
		if err := bmp.Encode(&buf, img); err != nil {
			return fmt.Errorf("encode bmp: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s is not a snapshot format", ErrUnrecoverable, b.cfg.Format)
	}
	b.data = buf.Bytes()
	return nil
}

func (b *snapshotBackend) Finalize() (Output, error) {
	if b.data == nil {
		return Output{}, errors.New("snapshot: no frame captured")
	}
	return Output{Data: b.data, Frames: 1}, nil
}

// nearLosslessBits maps a near-lossless level of 1..100 to the number of low
// bits dropped per channel, 1..4.
func nearLosslessBits(level int) uint {
	return uint(min(4, max(1, (level+24)/25)))
}

// reducePrecision rounds color channels to multiples of 1<<bits so lossless
// encoders compress better. Alpha is kept exact.
func reducePrecision(src *image.RGBA, bits uint) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	step := 1 << bits
	half := step / 2
	for y := 0; y < b.Dy(); y++ {
		so := src.PixOffset(b.Min.X, b.Min.Y+y)
		do := out.PixOffset(0, y)
		for x := 0; x < b.Dx(); x++ {
			s, d := so+x*4, do+x*4
			alpha := int(src.Pix[s+3])
			for c := 0; c < 3; c++ {
				v := (int(src.Pix[s+c]) + half) &^ (step - 1)
				// Stay a valid premultiplied color.
				out.Pix[d+c] = uint8(min(v, alpha))
			}
			out.Pix[d+3] = uint8(alpha)
		}
	}
	return out
}
