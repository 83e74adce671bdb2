package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTimelineID is the standardized structured logging key for timeline lineage identifiers.
	FieldTimelineID = "timeline_id"
	// FieldPhase is the standardized structured logging key for reassembly phases.
	FieldPhase = "phase"
	// FieldSubmissionID is the standardized structured logging key for stored submissions.
	FieldSubmissionID = "submission_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType names the event a warning or error describes.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldProgressPhase, FieldProgressPercent and FieldProgressMessage describe flatten progress.
	FieldProgressPhase   = "progress_phase"
	FieldProgressPercent = "progress_percent"
	FieldProgressMessage = "progress_message"
)

type contextKey int

const (
	timelineKey contextKey = iota
	phaseKey
	correlationKey
)

// WithTimelineID returns a context tagged with a timeline lineage ID.
func WithTimelineID(ctx context.Context, id string) context.Context {
	return withValue(ctx, timelineKey, id)
}

// WithPhase returns a context tagged with a reassembly phase.
func WithPhase(ctx context.Context, phase string) context.Context {
	return withValue(ctx, phaseKey, phase)
}

// WithCorrelationID returns a context tagged with a correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return withValue(ctx, correlationKey, id)
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := stringFromContext(ctx, timelineKey); ok {
		fields = append(fields, slog.String(FieldTimelineID, id))
	}
	if phase, ok := stringFromContext(ctx, phaseKey); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if rid, ok := stringFromContext(ctx, correlationKey); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
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
	return logger.With(attrsToArgs(fields)...)
}
