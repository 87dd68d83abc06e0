package app

import (
	"image"
	"image/draw"

	"github.com/gogpu/gg"

	"simloop/internal/capture"
	"simloop/internal/shared"
	"simloop/internal/worker"
)

// presenter draws handed-over frames into an offscreen gg canvas and passes
// capture-marked ones to the capture manager. It runs on the UI goroutine.
type presenter struct {
	worker  *worker.Worker
	manager *capture.Manager
	dc      *gg.Context
	width   int
	height  int
	// hook sees each captured frame after preprocessing.
	hook capture.PostProcessHook

	presented uint64
	submitted uint64
}

func newPresenter(w *worker.Worker, m *capture.Manager) *presenter {
	return &presenter{worker: w, manager: m}
}

// resize sets the canvas size used from the next frame on.
func (p *presenter) resize(width, height int) {
	p.width, p.height = width, height
}

func (p *presenter) canvas() *gg.Context {
	if p.dc != nil && p.dc.Width() == p.width && p.dc.Height() == p.height {
		return p.dc
	}
	p.close()
	p.dc = gg.NewContext(p.width, p.height)
	return p.dc
}

func (p *presenter) present(ticket shared.FrameTicket) {
	dc := p.canvas()
	p.worker.Draw(dc)
	p.presented++
	if !ticket.Encode || !p.manager.IsCapturing() {
		return
	}
	if p.manager.EncodeFrame(toRGBA(dc.Image()), p.hook) {
		p.submitted++
	}
}

func (p *presenter) close() {
	if p.dc != nil {
		_ = p.dc.Close()
		p.dc = nil
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
