package preprocess_test

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"simloop/internal/preprocess"
)

func striped(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(y * 10), G: 0, B: 0, A: 255})
		}
	}
	return img
}

func TestProcessFlipsRows(t *testing.T) {
	src := striped(4, 4)
	out, err := preprocess.New().Process(src, preprocess.Options{Width: 4, Height: 4, FlipVertical: true})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := out.RGBAAt(0, 0).R; got != 30 {
		t.Fatalf("expected last row first, got %d", got)
	}
	if got := out.RGBAAt(0, 3).R; got != 0 {
		t.Fatalf("expected first row last, got %d", got)
	}
	if src.RGBAAt(0, 0).R != 0 {
		t.Fatal("source must not be modified")
	}
}

func TestProcessDownsamples(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	out, err := preprocess.New().Process(src, preprocess.Options{Width: 64, Height: 32})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Fatalf("unexpected bounds %v", b)
	}
	c := out.RGBAAt(10, 10)
	if c.R < 199 || c.R > 201 || c.A < 199 || c.A > 201 {
		t.Fatalf("uniform source should stay uniform, got %+v", c)
	}
}

func TestSharpenKeepsFlatAreasAndAlpha(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 100
	}
	out := preprocess.Sharpen(src, 1)
	if c := out.RGBAAt(4, 4); c.R != 100 || c.A != 100 {
		t.Fatalf("flat area changed: %+v", c)
	}

	edge := striped(8, 8)
	sharp := preprocess.Sharpen(edge, 1)
	if sharp.RGBAAt(0, 7).R <= edge.RGBAAt(0, 7).R {
		t.Fatalf("expected bright edge to get brighter, got %d", sharp.RGBAAt(0, 7).R)
	}
}

func TestProcessRejectsEmptySource(t *testing.T) {
	_, err := preprocess.New().Process(nil, preprocess.Options{Width: 1, Height: 1})
	if !errors.Is(err, preprocess.ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
	if _, err := preprocess.New().Process(striped(2, 2), preprocess.Options{}); err == nil {
		t.Fatal("expected error for zero destination")
	}
}

func TestBlackIsOpaque(t *testing.T) {
	img := preprocess.Black(3, 2)
	if c := img.RGBAAt(2, 1); c != (color.RGBA{A: 255}) {
		t.Fatalf("unexpected pixel %+v", c)
	}
}

func TestSharpenKeepsTranslucentPixelsPremultiplied(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			src.SetRGBA(x, y, color.RGBA{A: 255})
		}
	}
	// A bright half-transparent pixel surrounded by black overshoots when
	// sharpened.
	src.SetRGBA(1, 1, color.RGBA{R: 120, G: 120, B: 120, A: 128})

	out := preprocess.Sharpen(src, 1)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			c := out.RGBAAt(x, y)
			if c.R > c.A || c.G > c.A || c.B > c.A {
				t.Fatalf("pixel (%d,%d) = %+v exceeds alpha", x, y, c)
			}
		}
	}
	if c := out.RGBAAt(1, 1); c.A != 128 || c.R != 128 {
		t.Fatalf("centre pixel = %+v, want colour capped at alpha 128", c)
	}
}
