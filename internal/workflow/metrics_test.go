package workflow

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	first.RunStarted()
	first.RunFinished("completed")
	second.RunStarted()
	second.RunFinished("failed")

	if got := testutil.ToFloat64(first.runsTotal.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed run, got %v", got)
	}
	if got := testutil.ToFloat64(first.runsTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected shared collector to see the failed run, got %v", got)
	}
	if got := testutil.ToFloat64(first.runsActive); got != 0 {
		t.Fatalf("expected no active runs, got %v", got)
	}
}

func TestMetricsRecordStageAndWorkerActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)
	m.ObserveStage("match", "failed", time.Second)
	m.IncStageFailure("match", "timeout")
	m.AddDropped("parse", 2)
	m.AddDropped("parse", 0)
	m.ObserveCall("http://localhost:8002/match", "ok", 50*time.Millisecond)

	if got := testutil.ToFloat64(m.stageFailures.WithLabelValues("match", "timeout")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.recordsDropped.WithLabelValues("parse")); got != 2 {
		t.Fatalf("expected 2 dropped, got %v", got)
	}
	if count := testutil.CollectAndCount(m.workerCalls); count != 1 {
		t.Fatalf("expected one worker call series, got %d", count)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RunStarted()
	m.RunFinished("completed")
	m.ObserveStage("parse", "completed", time.Millisecond)
	m.ObserveCall("u", "ok", time.Millisecond)
}
