package services_test

import (
	"context"
	"testing"

	"screener/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskID(ctx, "workflow_1700000000000")
	ctx = services.WithStage(ctx, "match")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != "workflow_1700000000000" {
		t.Fatalf("unexpected task id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "match" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithTaskID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.TaskIDFromContext(ctx); ok {
		t.Fatal("expected no task id value")
	}
}
