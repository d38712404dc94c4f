package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"screener/internal/config"
)

// Pipeline is a set of fake parse, match, and schedule workers.
type Pipeline struct {
	Parse    *Worker
	Match    *Worker
	Schedule *Worker
}

// PipelineOption replaces one of the default worker behaviors.
type PipelineOption func(*pipelineFuncs)

type pipelineFuncs struct {
	parse, match, schedule WorkerFunc
}

// WithParseFunc overrides the parse worker.
func WithParseFunc(fn WorkerFunc) PipelineOption {
	return func(p *pipelineFuncs) { p.parse = fn }
}

// WithMatchFunc overrides the match worker.
func WithMatchFunc(fn WorkerFunc) PipelineOption {
	return func(p *pipelineFuncs) { p.match = fn }
}

// WithScheduleFunc overrides the schedule worker.
func WithScheduleFunc(fn WorkerFunc) PipelineOption {
	return func(p *pipelineFuncs) { p.schedule = fn }
}

// NewPipeline starts three workers that behave like healthy production
// workers: parse echoes the resume name, match scores candidates 95, 90, 85
// and so on in input order, and schedule books every ranked candidate two
// hours apart starting 2026-03-02 09:00.
func NewPipeline(t testing.TB, opts ...PipelineOption) *Pipeline {
	t.Helper()
	funcs := pipelineFuncs{parse: EchoParse, match: DescendingMatch, schedule: SpacedSchedule}
	for _, opt := range opts {
		opt(&funcs)
	}
	return &Pipeline{
		Parse:    NewWorker(t, "resume-parsing-agent", "/resume", funcs.parse),
		Match:    NewWorker(t, "matching-agent", "/match", funcs.match),
		Schedule: NewWorker(t, "scheduling-agent", "/schedule", funcs.schedule),
	}
}

// Config returns a test configuration pointing at the pipeline's workers.
func (p *Pipeline) Config(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	all := append([]ConfigOption{WithWorkers(
		p.Parse.Endpoint("/resume"),
		p.Match.Endpoint("/match"),
		p.Schedule.Endpoint("/schedule"),
	)}, opts...)
	return NewConfig(t, all...)
}

// EchoParse returns a profile named after the resume's "name" field.
func EchoParse(env Envelope) (int, any) {
	var resume struct {
		Name   string   `json:"name"`
		Skills []string `json:"skills"`
	}
	if err := json.Unmarshal(env.Data["resume"], &resume); err != nil || resume.Name == "" {
		return http.StatusUnprocessableEntity, Failure("resume has no name")
	}
	return http.StatusOK, Result(env.TaskID, map[string]any{
		"name":             resume.Name,
		"skills":           resume.Skills,
		"experience_years": 5,
		"education":        "BSc",
	})
}

// DescendingMatch scores candidates 95, 90, 85, ... in the order received.
func DescendingMatch(env Envelope) (int, any) {
	var profiles []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(env.Data["candidates"], &profiles); err != nil {
		return http.StatusBadRequest, Failure("candidates unreadable")
	}
	ranked := make([]map[string]any, 0, len(profiles))
	for i, p := range profiles {
		ranked = append(ranked, map[string]any{
			"candidate_id": p.Name,
			"score":        95 - 5*i,
			"skill_score":  95 - 5*i,
			"rag_score":    90,
			"reason":       "fixture",
		})
	}
	return http.StatusOK, Result(env.TaskID, map[string]any{"ranked_candidates": ranked})
}

// SpacedSchedule books every ranked candidate two hours apart.
func SpacedSchedule(env Envelope) (int, any) {
	var ranked []struct {
		CandidateID string `json:"candidate_id"`
		Score       int    `json:"score"`
	}
	if err := json.Unmarshal(env.Data["ranked_candidates"], &ranked); err != nil {
		return http.StatusBadRequest, Failure("ranked candidates unreadable")
	}
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	schedules := make([]map[string]any, 0, len(ranked))
	for i, r := range ranked {
		schedules = append(schedules, map[string]any{
			"candidate_id":   r.CandidateID,
			"score":          r.Score,
			"interview_time": start.Add(time.Duration(2*i) * time.Hour).Format("2006-01-02 15:04"),
			"duration":       "30 minutes",
		})
	}
	return http.StatusOK, Result(env.TaskID, map[string]any{"schedules": schedules})
}

// Resumes builds a JSON array of minimal resumes with the given names.
func Resumes(names ...string) json.RawMessage {
	items := make([]map[string]any, 0, len(names))
	for i, name := range names {
		items = append(items, map[string]any{
			"id":     fmt.Sprintf("r%d", i+1),
			"name":   name,
			"skills": []string{"go"},
		})
	}
	raw, _ := json.Marshal(items)
	return raw
}
