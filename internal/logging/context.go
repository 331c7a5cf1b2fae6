package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldReloadID correlates every line emitted by a single reload cycle.
	FieldReloadID = "reload_id"
	// FieldTrigger records what started a reload (watch, poll, manual, startup).
	FieldTrigger = "trigger"
	// FieldFeedPath is the subtitle feed location.
	FieldFeedPath = "feed_path"
	// FieldOutcome is the result of a reload cycle.
	FieldOutcome = "outcome"
	// FieldEntryCount is the number of entries involved in an operation.
	FieldEntryCount = "entry_count"
	// FieldCorrelationID is the standardized key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType names the kind of event being logged.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

type contextKey int

const (
	reloadIDKey contextKey = iota
	triggerKey
	requestIDKey
)

// WithReloadID attaches a reload correlation identifier to ctx.
func WithReloadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, reloadIDKey, id)
}

// ReloadIDFromContext returns the reload identifier stored in ctx.
func ReloadIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(reloadIDKey).(string)
	return id, ok && id != ""
}

// WithTrigger records what caused the current reload.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey, trigger)
}

// TriggerFromContext returns the reload trigger stored in ctx.
func TriggerFromContext(ctx context.Context) (string, bool) {
	trigger, ok := ctx.Value(triggerKey).(string)
	return trigger, ok && trigger != ""
}

// WithRequestID attaches an API request identifier to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the API request identifier stored in ctx.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := ReloadIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldReloadID, id))
	}
	if trigger, ok := TriggerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTrigger, trigger))
	}
	if rid, ok := RequestIDFromContext(ctx); ok {
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
