package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"screener/internal/logging"
	"screener/internal/notifications"
	"screener/internal/observability"
	"screener/internal/progress"
	"screener/internal/runstate"
	"screener/internal/services"
	"screener/internal/stage"
)

// Executor runs the registered stages against one run state at a time. It
// holds no per-run data and is safe to share between concurrent runs.
type Executor struct {
	stages     []stage.Handler
	logger     *slog.Logger
	notifier   notifications.Service
	metrics    *Metrics
	tracer     trace.Tracer
	runTimeout time.Duration
	now        func() time.Time
}

// Option configures optional Executor behavior.
type Option func(*Executor)

// WithNotifier sets the notification service used on completion and failure.
func WithNotifier(notifier notifications.Service) Option {
	return func(e *Executor) {
		if notifier != nil {
			e.notifier = notifier
		}
	}
}

// WithMetrics records stage and run metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(e *Executor) { e.metrics = metrics }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithRunTimeout bounds the whole run. Zero disables the deadline.
func WithRunTimeout(timeout time.Duration) Option {
	return func(e *Executor) { e.runTimeout = timeout }
}

// NewExecutor constructs an executor for the stages in execution order.
func NewExecutor(stages []stage.Handler, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		stages:   stages,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		notifier: notifications.NewService(nil),
		tracer:   otel.Tracer(observability.ScopeWorkflow),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stages returns the registered handlers.
func (e *Executor) Stages() []stage.Handler {
	return e.stages
}

// HealthCheck reports readiness for every stage.
func (e *Executor) HealthCheck(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(e.stages))
	for _, handler := range e.stages {
		out = append(out, handler.HealthCheck(ctx))
	}
	return out
}

// Run executes every stage in order. It returns nil when the run completed
// and the *runstate.StageError that ended it otherwise. Progress labels go to
// pub; a nil pub discards them.
func (e *Executor) Run(ctx context.Context, st *runstate.State, pub progress.Publisher) error {
	if pub == nil {
		pub = progress.Discard
	}
	ctx = services.WithTaskID(ctx, st.ID())
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	if e.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.runTimeout)
		defer cancel()
	}
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(observability.RunAttrs(st.ID(), len(st.Inputs()))...))
	defer span.End()

	logger := logging.WithContext(ctx, e.logger)
	started := e.now()
	e.metrics.RunStarted()
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("job_title", st.JobTitle()),
		logging.Int("records", len(st.Inputs())),
	)

	for _, handler := range e.stages {
		if serr := e.runStage(ctx, st, handler, pub); serr != nil {
			e.metrics.RunFinished("failed")
			span.SetStatus(codes.Error, serr.Kind)
			span.SetAttributes(observability.ErrorAttrs(serr.Kind)...)
			e.fail(ctx, st, pub, serr)
			return serr
		}
	}

	if err := st.Transition(runstate.PhaseCompleted, StatusCompleted); err != nil {
		serr := stage.Failure(runstate.StageSchedule, err)
		e.metrics.RunFinished("failed")
		span.SetStatus(codes.Error, serr.Kind)
		logger.Error("run could not complete", logging.Error(err))
		return serr
	}
	pub.Publish(StatusCompleted)
	e.metrics.RunFinished("completed")

	elapsed := e.now().Sub(started)
	scheduled := len(st.Scheduled())
	warnings := len(st.Warnings())
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("scheduled", scheduled),
		logging.Int("warnings", warnings),
		logging.Duration("run_duration", elapsed),
	)
	e.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
		"taskID":    st.ID(),
		"jobTitle":  st.JobTitle(),
		"scheduled": scheduled,
		"warnings":  warnings,
		"duration":  elapsed,
	})
	return nil
}

func (e *Executor) runStage(ctx context.Context, st *runstate.State, handler stage.Handler, pub progress.Publisher) *runstate.StageError {
	name := handler.Name()
	status := StatusLabel(name)
	if err := st.Transition(name.Phase(), status); err != nil {
		return stage.Failure(name, err)
	}
	pub.Publish(status)

	ctx = services.WithStage(ctx, string(name))
	ctx, span := e.tracer.Start(ctx, "workflow.stage."+string(name), trace.WithAttributes(observability.StageAttrs(st.ID(), string(name))...))
	defer span.End()

	logger := logging.WithContext(ctx, e.logger)
	warningsBefore := len(st.Warnings())
	started := e.now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("status", status),
	)

	err := handler.Execute(ctx, st)
	elapsed := e.now().Sub(started)
	dropped := len(st.Warnings()) - warningsBefore
	e.metrics.AddDropped(string(name), dropped)

	if err != nil {
		serr := stage.Failure(name, err)
		if !st.Phase().CanTransition(runstate.PhaseFailed) {
			// Stages that cannot end a run record the failure and continue.
			logging.WarnWithContext(logger, "stage error absorbed", "stage_error_absorbed",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, serr.Kind),
				logging.String(logging.FieldImpact, "stage output may be empty"),
			)
			_ = st.AddWarnings(runstate.Warning{Stage: name, Detail: serr.Detail})
			e.metrics.ObserveStage(string(name), "degraded", elapsed)
			return nil
		}
		e.metrics.ObserveStage(string(name), "failed", elapsed)
		e.metrics.IncStageFailure(string(name), serr.Kind)
		span.SetStatus(codes.Error, serr.Detail)
		return serr
	}

	e.metrics.ObserveStage(string(name), "completed", elapsed)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("dropped", dropped),
		logging.Duration("stage_duration", elapsed),
	)
	return nil
}

func (e *Executor) fail(ctx context.Context, st *runstate.State, pub progress.Publisher, serr *runstate.StageError) {
	ctx = services.WithStage(ctx, string(serr.Stage))
	logger := logging.WithContext(ctx, e.logger)
	status := FailureStatus(serr)
	if err := st.Fail(serr, status); err != nil {
		logger.Error("failed to record run failure", logging.Error(err))
	}
	pub.Publish(status)

	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String(logging.FieldErrorKind, serr.Kind),
		logging.String(logging.FieldErrorHint, failureHint(serr)),
		logging.String(logging.FieldImpact, "run ended without interview schedule"),
		logging.String("detail", serr.Detail),
	)
	e.notify(ctx, notifications.EventRunFailed, notifications.Payload{
		"taskID": st.ID(),
		"stage":  string(serr.Stage),
		"detail": serr.Detail,
	})
}

func (e *Executor) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	// The run deadline may already have passed; delivery has its own timeout.
	if err := e.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WithContext(ctx, e.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

func failureHint(serr *runstate.StageError) string {
	switch serr.Kind {
	case runstate.KindCanceled:
		return "the request was canceled before the run finished"
	case runstate.KindInternal:
		return "internal error; inspect the daemon log"
	}
	return services.Hint(serr.Err)
}
