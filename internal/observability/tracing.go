package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"screener/internal/config"
)

// Instrumentation scope names.
const (
	ScopeWorkflow   = "screener/workflow"
	ScopeTaskClient = "screener/taskclient"
	ScopeGateway    = "screener/gateway"
)

// Span attribute keys.
const (
	AttrTaskID    = "screener.task_id"
	AttrStage     = "screener.stage"
	AttrPhase     = "screener.phase"
	AttrErrorKind = "screener.error_kind"
	AttrRecords   = "screener.records"
)

// TracerProvider owns the installed provider so it can be flushed on shutdown.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracerProvider installs a global tracer provider according to cfg.
func NewTracerProvider(ctx context.Context, cfg config.Tracing) (*TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		provider := noop.NewTracerProvider()
		otel.SetTracerProvider(provider)
		return &TracerProvider{tracer: provider.Tracer(ScopeWorkflow)}, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "screener"
	}
	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	)
	otel.SetTracerProvider(provider)
	return &TracerProvider{provider: provider, tracer: provider.Tracer(ScopeWorkflow)}, nil
}

// Tracer returns the workflow tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	if tp == nil || tp.tracer == nil {
		return noop.NewTracerProvider().Tracer(ScopeWorkflow)
	}
	return tp.tracer
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// RunAttrs describes a run span.
func RunAttrs(taskID string, records int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTaskID, taskID),
		attribute.Int(AttrRecords, records),
	}
}

// StageAttrs describes a stage span.
func StageAttrs(taskID, stage string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTaskID, taskID),
		attribute.String(AttrStage, stage),
	}
}

// ErrorAttrs marks a span as failed with the given classification.
func ErrorAttrs(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(AttrErrorKind, kind)}
}
