package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"screener/internal/candidates"
	"screener/internal/logging"
	"screener/internal/observability"
	"screener/internal/progress"
	"screener/internal/runstate"
	"screener/internal/services"
)

// Runner executes one run to a terminal state.
type Runner interface {
	Run(ctx context.Context, st *runstate.State, pub progress.Publisher) error
}

// Request is the inbound task envelope.
type Request struct {
	TaskID string      `json:"task_id"`
	Data   RequestData `json:"data"`
}

// RequestData carries the screening inputs. Fields stay raw so presence and
// type can be checked precisely.
type RequestData struct {
	Resumes  json.RawMessage `json:"resumes"`
	JobTitle json.RawMessage `json:"job_title"`
}

// Response is returned for a completed run.
type Response struct {
	TaskID   string             `json:"task_id"`
	Result   Result             `json:"result"`
	Warnings []runstate.Warning `json:"warnings,omitempty"`
}

// Result holds the scheduled interviews.
type Result struct {
	Schedules []candidates.Interview `json:"schedules"`
}

// Gateway owns the live and recently finished runs.
type Gateway struct {
	runner Runner
	hub    *progress.Hub
	logger *slog.Logger
	tracer trace.Tracer
	newID  func() string

	mu       sync.Mutex
	live     map[string]*runstate.State
	finished *expirable.LRU[string, *runstate.State]
}

// Option configures optional Gateway behavior.
type Option func(*gatewayOptions)

type gatewayOptions struct {
	retain int
	ttl    time.Duration
	newID  func() string
}

// WithRetention keeps up to size finished runs for ttl.
func WithRetention(size int, ttl time.Duration) Option {
	return func(o *gatewayOptions) {
		o.retain = size
		o.ttl = ttl
	}
}

// WithIDGenerator replaces the uuid generator used for requests without a task id.
func WithIDGenerator(fn func() string) Option {
	return func(o *gatewayOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// New constructs a gateway. A nil hub gets a private one.
func New(runner Runner, hub *progress.Hub, logger *slog.Logger, opts ...Option) *Gateway {
	options := gatewayOptions{retain: 128, ttl: 30 * time.Minute, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&options)
	}
	if options.retain <= 0 {
		options.retain = 128
	}
	if hub == nil {
		hub = progress.NewHub(options.retain, options.ttl)
	}
	return &Gateway{
		runner:   runner,
		hub:      hub,
		logger:   logging.NewComponentLogger(logger, "gateway"),
		tracer:   otel.Tracer(observability.ScopeGateway),
		newID:    options.newID,
		live:     make(map[string]*runstate.State),
		finished: expirable.NewLRU[string, *runstate.State](options.retain, nil, options.ttl),
	}
}

// Hub returns the progress hub runs publish to.
func (g *Gateway) Hub() *progress.Hub {
	return g.hub
}

// Decode validates a raw task body and returns the run inputs.
func Decode(body []byte) (taskID, jobTitle string, resumes []candidates.Resume, err error) {
	var req Request
	if uerr := json.Unmarshal(body, &req); uerr != nil {
		return "", "", nil, invalid("Invalid task format: body is not a JSON task envelope")
	}
	if absent(req.Data.Resumes) {
		return "", "", nil, invalid("Invalid task format: data.resumes is required")
	}
	resumes, rerr := candidates.DecodeResumes(req.Data.Resumes)
	if rerr != nil {
		return "", "", nil, invalid("Invalid task format: data.resumes must be an array")
	}
	if absent(req.Data.JobTitle) {
		return "", "", nil, invalid("Invalid task format: data.job_title is required")
	}
	if jerr := json.Unmarshal(req.Data.JobTitle, &jobTitle); jerr != nil {
		return "", "", nil, invalid("Invalid task format: data.job_title must be a string")
	}
	jobTitle = strings.TrimSpace(jobTitle)
	if jobTitle == "" {
		return "", "", nil, invalid("Invalid task format: data.job_title must not be empty")
	}
	return strings.TrimSpace(req.TaskID), jobTitle, resumes, nil
}

func absent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Submit validates body, runs the pipeline, and returns the schedules. Every
// error is a *Error.
func (g *Gateway) Submit(ctx context.Context, body []byte) (*Response, error) {
	taskID, jobTitle, resumes, err := Decode(body)
	if err != nil {
		g.logger.Info("task rejected", logging.String("reason", err.Error()))
		return nil, err
	}
	if taskID == "" {
		taskID = g.newID()
	}
	ctx = services.WithTaskID(ctx, taskID)
	logger := logging.WithContext(ctx, g.logger)

	st := runstate.New(taskID, jobTitle, resumes)
	pub, err := g.begin(st)
	if err != nil {
		logger.Warn("task rejected; id already running",
			logging.String(logging.FieldEventType, "task_conflict"),
			logging.String(logging.FieldErrorHint, "wait for the running task or submit with a new task_id"),
			logging.String(logging.FieldImpact, "submission ignored"),
		)
		return nil, err
	}
	defer g.finish(taskID, st)

	ctx, span := g.tracer.Start(ctx, "gateway.submit", trace.WithAttributes(
		attribute.String(observability.AttrTaskID, taskID),
		attribute.Int(observability.AttrRecords, len(resumes)),
	))
	defer span.End()

	logger.Info("task accepted",
		logging.String(logging.FieldEventType, "task_accepted"),
		logging.String("job_title", jobTitle),
		logging.Int("records", len(resumes)),
	)

	if runErr := g.runner.Run(ctx, st, pub); runErr != nil {
		gerr := &Error{Kind: KindPipelineFailed, TaskID: taskID, Detail: runErr.Error()}
		var serr *runstate.StageError
		if errors.As(runErr, &serr) {
			gerr.Stage = serr.Stage
			gerr.Detail = serr.Detail
			gerr.Failure = serr.Kind
		}
		span.SetStatus(codes.Error, string(gerr.Kind))
		return nil, gerr
	}

	return &Response{
		TaskID:   taskID,
		Result:   Result{Schedules: st.Scheduled()},
		Warnings: st.Warnings(),
	}, nil
}

func (g *Gateway) begin(st *runstate.State) (progress.Publisher, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, running := g.live[st.ID()]; running {
		return nil, &Error{Kind: KindConflict, TaskID: st.ID(), Detail: "task already running"}
	}
	pub, err := g.hub.Open(st.ID())
	if err != nil {
		return nil, &Error{Kind: KindConflict, TaskID: st.ID(), Detail: err.Error()}
	}
	g.live[st.ID()] = st
	return pub, nil
}

func (g *Gateway) finish(taskID string, st *runstate.State) {
	g.mu.Lock()
	delete(g.live, taskID)
	g.finished.Add(taskID, st)
	g.mu.Unlock()
	g.hub.Finish(taskID)
}

// Lookup returns a snapshot of a live or recently finished run.
func (g *Gateway) Lookup(taskID string) (runstate.Snapshot, bool) {
	g.mu.Lock()
	st, ok := g.live[taskID]
	g.mu.Unlock()
	if !ok {
		st, ok = g.finished.Get(taskID)
	}
	if !ok {
		return runstate.Snapshot{}, false
	}
	return st.Snapshot(), true
}

// Active returns how many runs are executing.
func (g *Gateway) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.live)
}
