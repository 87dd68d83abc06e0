package capture

import (
	"image"
	"log/slog"
	"sort"
	"sync"
)

// Frame is one preprocessed RGBA8 frame. Ownership moves from the producer to
// the pending slot to the encoder; nothing else keeps a reference.
type Frame struct {
	Seq   uint64
	Image *image.RGBA
}

// Output is what a backend produced once finalized.
type Output struct {
	// Path is set for file-backed output.
	Path string
	// Data holds memory-backed output.
	Data []byte
	// Frames is the number of frames the backend encoded.
	Frames int
}

// Backend encodes the frames of one session. A backend instance is used by a
// single encoder goroutine and is discarded after Finalize.
type Backend interface {
	// Start prepares the codec. Errors are reported synchronously from
	// StartCapture and no encoder goroutine is spawned.
	Start(cfg Config) error
	// EncodeFrame encodes one frame. Errors wrapping ErrUnrecoverable end the
	// session; other errors drop the frame.
	EncodeFrame(f *Frame) error
	// Finalize flushes and closes the codec.
	Finalize() (Output, error)
}

// Factory constructs a fresh backend for a session.
type Factory func() Backend

// Registry maps formats to backend factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[Format]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Format]Factory)}
}

// Register installs factory for format, replacing any previous one.
func (r *Registry) Register(format Format, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[format] = factory
}

// Lookup returns the factory registered for format.
func (r *Registry) Lookup(format Format) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[format]
	return f, ok
}

// Formats lists registered formats in sorted order.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, 0, len(r.factories))
	for f := range r.factories {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BackendOptions configure the built-in backends.
type BackendOptions struct {
	// FFmpegBinary is the executable used for h264 and h265. Empty skips
	// registering the video formats.
	FFmpegBinary string
	Logger       *slog.Logger
}

// DefaultRegistry registers every built-in backend.
func DefaultRegistry(opts BackendOptions) *Registry {
	r := NewRegistry()
	if opts.FFmpegBinary != "" {
		for _, f := range []Format{FormatH264, FormatH265} {
			r.Register(f, func() Backend { return newFFmpegBackend(opts.FFmpegBinary, opts.Logger) })
		}
	}
	r.Register(FormatGIF, func() Backend { return &gifBackend{} })
	for _, f := range []Format{FormatPNG, FormatJPEG, FormatTIFF, FormatBMP} {
		r.Register(f, func() Backend { return &snapshotBackend{} })
	}
	return r
}
