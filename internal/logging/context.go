package logging

import (
	"context"
	"log/slog"

	"screener/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTaskID is the standardized structured logging key for run (task) identifiers.
	FieldTaskID = "task_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldRecordID identifies one resume record inside a run.
	FieldRecordID = "record_id"
	// FieldWorkerURL is the endpoint a worker call was sent to.
	FieldWorkerURL = "worker_url"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering (stage_start, stage_complete, ...).
	FieldEventType = "event_type"
	// FieldErrorKind carries the failure classification (timeout, remote_rejected, ...).
	FieldErrorKind = "error_kind"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTaskID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
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
	return logger.With(Args(fields...)...)
}
