package logging

import (
	"context"
	"log/slog"
)

// FieldSessionID is the standardized structured logging key for capture session identifiers.
const FieldSessionID = "session_id"

// TeeHandler sends each record to every handler that accepts its level.
// Nil handlers are ignored.
func TeeHandler(handlers ...slog.Handler) slog.Handler {
	var live []slog.Handler
	for _, h := range handlers {
		if h != nil {
			live = append(live, h)
		}
	}
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0]
	}
	return teeHandler(live)
}

type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) derive(fn func(slog.Handler) slog.Handler) teeHandler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = fn(h)
	}
	return next
}

// WithSession returns a logger whose records all carry session_id, including
// records from loggers derived from it later.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return slog.New(pinnedHandler{next: logger.Handler(), pinned: slog.String(FieldSessionID, sessionID)})
}

// pinnedHandler adds one attribute to every record it handles.
type pinnedHandler struct {
	next   slog.Handler
	pinned slog.Attr
}

func (h pinnedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h pinnedHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(h.pinned)
	return h.next.Handle(ctx, record)
}

func (h pinnedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return pinnedHandler{next: h.next.WithAttrs(attrs), pinned: h.pinned}
}

func (h pinnedHandler) WithGroup(name string) slog.Handler {
	return pinnedHandler{next: h.next.WithGroup(name), pinned: h.pinned}
}
