package workflow

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report pipeline activity.
type Metrics struct {
	stageDuration  *prometheus.HistogramVec
	stageFailures  *prometheus.CounterVec
	recordsDropped *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	runsActive     prometheus.Gauge
	workerCalls    *prometheus.HistogramVec
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Collectors that are already registered are reused, so constructing the
// executor twice against one registry does not panic. Any other registration
// error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		stageDuration: mustRegister(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "screener",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration spent in each pipeline stage.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage", "outcome"},
		)),
		stageFailures: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "screener",
				Subsystem: "pipeline",
				Name:      "stage_failures_total",
				Help:      "Stage executions that ended a run.",
			},
			[]string{"stage", "kind"},
		)),
		recordsDropped: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "screener",
				Subsystem: "pipeline",
				Name:      "records_dropped_total",
				Help:      "Records dropped by a stage without failing the run.",
			},
			[]string{"stage"},
		)),
		runsTotal: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "screener",
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Finished runs by outcome.",
			},
			[]string{"outcome"},
		)),
		runsActive: mustRegister(reg, prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "screener",
				Subsystem: "pipeline",
				Name:      "runs_active",
				Help:      "Runs currently executing.",
			},
		)),
		workerCalls: mustRegister(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "screener",
				Subsystem: "worker",
				Name:      "call_duration_seconds",
				Help:      "Worker task calls by endpoint and outcome, including retries.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"url", "outcome"},
		)),
	}
}

func mustRegister[C prometheus.Collector](reg prometheus.Registerer, collector C) C {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}

// ObserveStage records the time spent in a stage.
func (m *Metrics) ObserveStage(stage, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// IncStageFailure counts a stage failure by kind.
func (m *Metrics) IncStageFailure(stage, kind string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage, kind).Inc()
}

// AddDropped counts records a stage dropped.
func (m *Metrics) AddDropped(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsDropped.WithLabelValues(stage).Add(float64(n))
}

// RunStarted marks a run as active.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

// RunFinished marks a run as done with the given outcome.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runsActive.Dec()
	m.runsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCall implements taskclient.Observer.
func (m *Metrics) ObserveCall(url, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.workerCalls.WithLabelValues(url, outcome).Observe(elapsed.Seconds())
}
