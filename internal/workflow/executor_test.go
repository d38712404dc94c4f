package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"screener/internal/candidates"
	"screener/internal/logging"
	"screener/internal/notifications"
	"screener/internal/progress"
	"screener/internal/runstate"
	"screener/internal/stage"
	"screener/internal/testsupport"
	"screener/internal/workflow"
)

type stubStage struct {
	name     runstate.StageName
	execute  func(*runstate.State) error
	statuses *[]string
	ran      bool
}

func (s *stubStage) Name() runstate.StageName { return s.name }

func (s *stubStage) Execute(_ context.Context, st *runstate.State) error {
	s.ran = true
	if s.statuses != nil {
		*s.statuses = append(*s.statuses, st.Status())
	}
	if s.execute != nil {
		return s.execute(st)
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(string(s.name))
}

type recordingPublisher struct {
	mu     sync.Mutex
	labels []string
}

func (p *recordingPublisher) Publish(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labels = append(p.labels, status)
}

func (p *recordingPublisher) Labels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.labels)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.last = payload
	return nil
}

func happyStages(statuses *[]string) []stage.Handler {
	return []stage.Handler{
		&stubStage{name: runstate.StageParse, statuses: statuses, execute: func(st *runstate.State) error {
			return st.SetParsed([]candidates.Profile{{Name: "Ann"}})
		}},
		&stubStage{name: runstate.StageMatch, statuses: statuses, execute: func(st *runstate.State) error {
			return st.SetRanked([]candidates.Ranked{{CandidateID: "Ann", Score: 91}})
		}},
		&stubStage{name: runstate.StageSchedule, statuses: statuses, execute: func(st *runstate.State) error {
			return st.SetScheduled([]candidates.Interview{{CandidateID: "Ann", Score: 91, InterviewTime: "2026-03-02 09:00", Duration: "30 minutes"}})
		}},
	}
}

func TestRunPublishesEachLabelBeforeTheStage(t *testing.T) {
	var seen []string
	notifier := &recordingNotifier{}
	exec := workflow.NewExecutor(happyStages(&seen), logging.NewNop(), workflow.WithNotifier(notifier))
	pub := &recordingPublisher{}
	st := runstate.New("workflow_1", "Engineer", nil)

	if err := exec.Run(context.Background(), st, pub); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	wantStage := []string{"Parsing resumes", "Matching candidates", "Scheduling interviews"}
	if !slices.Equal(seen, wantStage) {
		t.Fatalf("stages observed statuses %v, want %v", seen, wantStage)
	}
	wantPublished := append(slices.Clone(wantStage), workflow.StatusCompleted)
	if got := pub.Labels(); !slices.Equal(got, wantPublished) {
		t.Fatalf("published %v, want %v", got, wantPublished)
	}
	if st.Phase() != runstate.PhaseCompleted || !st.Terminal() || st.Status() != workflow.StatusCompleted {
		t.Fatalf("unexpected final state %s %q", st.Phase(), st.Status())
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventRunCompleted {
		t.Fatalf("expected completion notification, got %v", notifier.events)
	}
	if notifier.last["scheduled"] != 1 {
		t.Fatalf("unexpected notification payload %v", notifier.last)
	}
}

func TestRunStopsAtMatchFailure(t *testing.T) {
	stages := happyStages(nil)
	stages[1] = &stubStage{name: runstate.StageMatch, execute: func(*runstate.State) error {
		return &runstate.StageError{Stage: runstate.StageMatch, Kind: runstate.KindRemoteRejected, Detail: "worker returned http 500: boom"}
	}}
	notifier := &recordingNotifier{}
	exec := workflow.NewExecutor(stages, nil, workflow.WithNotifier(notifier))
	pub := &recordingPublisher{}
	st := runstate.New("workflow_2", "Engineer", nil)

	err := exec.Run(context.Background(), st, pub)
	var serr *runstate.StageError
	if !errors.As(err, &serr) || serr.Stage != runstate.StageMatch {
		t.Fatalf("expected match StageError, got %v", err)
	}
	if stages[2].(*stubStage).ran {
		t.Fatal("schedule stage must not run after match failure")
	}
	want := "Workflow failed at match: worker returned http 500: boom"
	if st.Status() != want || st.Phase() != runstate.PhaseFailed {
		t.Fatalf("unexpected final state %s %q", st.Phase(), st.Status())
	}
	labels := pub.Labels()
	if labels[len(labels)-1] != want {
		t.Fatalf("expected failure label published last, got %v", labels)
	}
	if len(st.Parsed()) != 1 {
		t.Fatal("parse output must survive the failure")
	}
	if st.Failure() == nil || st.Failure().Kind != runstate.KindRemoteRejected {
		t.Fatalf("unexpected failure %+v", st.Failure())
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventRunFailed || notifier.last["stage"] != "match" {
		t.Fatalf("expected failure notification, got %v %v", notifier.events, notifier.last)
	}
}

func TestRunAbsorbsParseErrors(t *testing.T) {
	stages := happyStages(nil)
	stages[0] = &stubStage{name: runstate.StageParse, execute: func(*runstate.State) error {
		return errors.New("fan-out exploded")
	}}
	stages[1] = &stubStage{name: runstate.StageMatch, execute: func(st *runstate.State) error {
		return st.SetRanked(nil)
	}}
	stages[2] = &stubStage{name: runstate.StageSchedule, execute: func(st *runstate.State) error {
		return st.SetScheduled(nil)
	}}
	exec := workflow.NewExecutor(stages, nil)
	st := runstate.New("workflow_3", "Engineer", nil)

	if err := exec.Run(context.Background(), st, nil); err != nil {
		t.Fatalf("parse errors must not fail the run: %v", err)
	}
	warnings := st.Warnings()
	if len(warnings) != 1 || warnings[0].Stage != runstate.StageParse || !strings.Contains(warnings[0].Detail, "fan-out exploded") {
		t.Fatalf("expected absorbed parse warning, got %+v", warnings)
	}
}

func TestRunAgainstWorkers(t *testing.T) {
	pipeline := testsupport.NewPipeline(t)
	cfg := pipeline.Config(t)
	client := workflow.NewTaskClient(cfg, nil, nil)
	exec := workflow.NewExecutor(workflow.BuildStages(cfg, client, nil), nil, workflow.WithRunTimeout(cfg.RunTimeout()))

	resumes, err := candidates.DecodeResumes(testsupport.Resumes("Ann", "Bo", "Cy", "Di"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	st := runstate.New("workflow_4", "Engineer", resumes)
	hub := progress.NewHub(4, time.Minute)
	pub, err := hub.Open(st.ID())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := exec.Run(context.Background(), st, pub); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	hub.Finish(st.ID())

	scheduled := st.Scheduled()
	// Scores are 95, 90, 85, 80; all clear the default threshold of 80.
	if len(scheduled) != 4 {
		t.Fatalf("expected 4 interviews, got %+v", scheduled)
	}
	if scheduled[0].CandidateID != "Ann" || scheduled[3].CandidateID != "Di" {
		t.Fatalf("unexpected order %+v", scheduled)
	}
	ch, _ := hub.Channel(st.ID())
	if value, _ := ch.Latest(); value != workflow.StatusCompleted {
		t.Fatalf("expected final label on run channel, got %q", value)
	}
	if pipeline.Parse.Calls() != 4 || pipeline.Match.Calls() != 1 || pipeline.Schedule.Calls() != 1 {
		t.Fatalf("unexpected worker calls %d/%d/%d", pipeline.Parse.Calls(), pipeline.Match.Calls(), pipeline.Schedule.Calls())
	}
}

func TestRunDeadlineFailsSlowMatch(t *testing.T) {
	pipeline := testsupport.NewPipeline(t, testsupport.WithMatchFunc(func(env testsupport.Envelope) (int, any) {
		time.Sleep(300 * time.Millisecond)
		return testsupport.DescendingMatch(env)
	}))
	cfg := pipeline.Config(t)
	client := workflow.NewTaskClient(cfg, nil, nil)
	exec := workflow.NewExecutor(workflow.BuildStages(cfg, client, nil), nil, workflow.WithRunTimeout(100*time.Millisecond))

	resumes, _ := candidates.DecodeResumes(testsupport.Resumes("Ann"))
	st := runstate.New("workflow_5", "Engineer", resumes)
	err := exec.Run(context.Background(), st, nil)
	var serr *runstate.StageError
	if !errors.As(err, &serr) || serr.Stage != runstate.StageMatch || serr.Kind != runstate.KindTimeout {
		t.Fatalf("expected match timeout, got %v", err)
	}
	if pipeline.Schedule.Calls() != 0 {
		t.Fatal("schedule worker must not be called after a timeout")
	}
}

func TestRunWithMatchWorkerDown(t *testing.T) {
	pipeline := testsupport.NewPipeline(t, testsupport.WithMatchFunc(func(testsupport.Envelope) (int, any) {
		return http.StatusInternalServerError, testsupport.Failure("model offline")
	}))
	cfg := pipeline.Config(t)
	exec := workflow.NewExecutor(workflow.BuildStages(cfg, workflow.NewTaskClient(cfg, nil, nil), nil), nil)

	resumes, _ := candidates.DecodeResumes(testsupport.Resumes("Ann", "Bo"))
	st := runstate.New("workflow_6", "Engineer", resumes)
	if err := exec.Run(context.Background(), st, nil); err == nil {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(st.Status(), "Workflow failed at match:") || !strings.Contains(st.Status(), "model offline") {
		t.Fatalf("unexpected status %q", st.Status())
	}
	if len(st.Parsed()) != 2 {
		t.Fatalf("expected parse output retained, got %+v", st.Parsed())
	}
}

func TestHealthCheckCoversEveryStage(t *testing.T) {
	exec := workflow.NewExecutor(happyStages(nil), nil)
	health := exec.HealthCheck(context.Background())
	if len(health) != 3 || !health[0].Ready || health[2].Name != "schedule" {
		t.Fatalf("unexpected health %+v", health)
	}
}
