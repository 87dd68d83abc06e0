package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSimulation is the standardized key for the active simulation name.
	FieldSimulation = "simulation"
	// FieldFrame is the standardized key for worker frame sequence numbers.
	FieldFrame = "frame"
	// FieldFormat is the standardized key for capture formats.
	FieldFormat = "format"
	// FieldOutput is the standardized key for capture output paths.
	FieldOutput = "output"
	// FieldEventType classifies log lines for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the next step a user should take after a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	simulationKey contextKey = iota
	sessionKey
)

// WithSimulation stores the simulation name on ctx for ContextFields.
func WithSimulation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, simulationKey, name)
}

// WithSessionID stores a capture session identifier on ctx for ContextFields.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if name, ok := ctx.Value(simulationKey).(string); ok && name != "" {
		fields = append(fields, slog.String(FieldSimulation, name))
	}
	if id, ok := ctx.Value(sessionKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
