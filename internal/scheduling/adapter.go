package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"screener/internal/candidates"
	"screener/internal/logging"
	"screener/internal/runstate"
	"screener/internal/stage"
	"screener/internal/taskclient"
)

// DefaultDuration is assumed when the worker omits a slot length.
const DefaultDuration = "30 minutes"

// Config carries the schedule worker settings and slot filters.
type Config struct {
	URL      string
	Timeout  time.Duration
	MinScore int
	MinGap   time.Duration
}

// Adapter runs the schedule stage.
type Adapter struct {
	client stage.Caller
	cfg    Config
	logger *slog.Logger
}

// NewAdapter constructs the schedule stage adapter.
func NewAdapter(client stage.Caller, cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{client: client, cfg: cfg, logger: logging.NewComponentLogger(logger, "scheduling")}
}

func (a *Adapter) Name() runstate.StageName { return runstate.StageSchedule }

// Execute asks the worker for interview slots and keeps the acceptable ones.
func (a *Adapter) Execute(ctx context.Context, st *runstate.State) error {
	logger := logging.WithContext(ctx, a.logger)
	ranked := st.Ranked()
	if len(ranked) == 0 {
		logger.Info("no ranked candidates; skipping schedule worker")
		if err := st.SetScheduled(nil); err != nil {
			return stage.Failure(runstate.StageSchedule, err)
		}
		return nil
	}

	raw, err := a.client.Send(ctx, a.cfg.URL, taskclient.Envelope{
		TaskID: TaskID(st.ID()),
		Data: map[string]any{
			"job_title":         st.JobTitle(),
			"ranked_candidates": ranked,
		},
	}, a.cfg.Timeout)
	if err != nil {
		return stage.Failure(runstate.StageSchedule, err)
	}

	slots, err := decodeSlots(raw)
	if err != nil {
		return stage.InvalidResult(runstate.StageSchedule, "%v", err)
	}

	interviews, warnings := a.filter(slots, ranked)
	for _, w := range warnings {
		logging.WarnWithContext(logger, "interview slot dropped", "schedule_slot_dropped",
			logging.String(logging.FieldRecordID, w.Record),
			logging.String("detail", w.Detail),
			logging.String(logging.FieldImpact, "candidate will not be interviewed"),
		)
	}
	if err := st.AddWarnings(warnings...); err != nil {
		return stage.Failure(runstate.StageSchedule, err)
	}
	if err := st.SetScheduled(interviews); err != nil {
		return stage.Failure(runstate.StageSchedule, err)
	}
	logger.Info("interviews scheduled",
		logging.Int("proposed", len(slots)),
		logging.Int("scheduled", len(interviews)),
	)
	return nil
}

// filter keeps slots for known candidates that clear the score threshold and
// are spaced at least MinGap from every slot already accepted. Worker order
// is preserved.
func (a *Adapter) filter(slots []slotWire, ranked []candidates.Ranked) ([]candidates.Interview, []runstate.Warning) {
	scores := make(map[string]int, len(ranked))
	for _, r := range ranked {
		if _, seen := scores[r.CandidateID]; !seen {
			scores[r.CandidateID] = r.Score
		}
	}

	var (
		accepted  []candidates.Interview
		times     []time.Time
		warnings  []runstate.Warning
		scheduled = make(map[string]bool, len(slots))
	)
	drop := func(id, format string, args ...any) {
		warnings = append(warnings, runstate.Warning{
			Stage:  runstate.StageSchedule,
			Record: id,
			Detail: fmt.Sprintf(format, args...),
		})
	}

	for i, slot := range slots {
		id := strings.TrimSpace(slot.CandidateID)
		if id == "" {
			drop("", "slot %d has no candidate_id", i)
			continue
		}
		score, known := scores[id]
		if !known {
			drop(id, "candidate was not ranked")
			continue
		}
		if scheduled[id] {
			drop(id, "candidate already scheduled")
			continue
		}
		if score < a.cfg.MinScore {
			drop(id, "score %d below threshold %d", score, a.cfg.MinScore)
			continue
		}
		interview := candidates.Interview{
			CandidateID:   id,
			Score:         score,
			InterviewTime: strings.TrimSpace(slot.InterviewTime),
			Duration:      strings.TrimSpace(slot.Duration),
		}
		if interview.Duration == "" {
			interview.Duration = DefaultDuration
		}
		at, err := interview.Time()
		if err != nil {
			drop(id, "unparsable %v", err)
			continue
		}
		if clash, ok := conflict(at, times, a.cfg.MinGap); ok {
			drop(id, "slot %s within %s of %s", interview.InterviewTime, a.cfg.MinGap, clash.Format(candidates.SlotLayout))
			continue
		}
		scheduled[id] = true
		times = append(times, at)
		accepted = append(accepted, interview)
	}
	return accepted, warnings
}

func conflict(at time.Time, taken []time.Time, gap time.Duration) (time.Time, bool) {
	for _, other := range taken {
		delta := at.Sub(other)
		if delta < 0 {
			delta = -delta
		}
		if delta < gap {
			return other, true
		}
	}
	return time.Time{}, false
}

// TaskID builds the worker task id for a run.
func TaskID(runID string) string {
	return runID + "_schedule"
}

// HealthCheck probes the schedule worker's capability card.
func (a *Adapter) HealthCheck(ctx context.Context) stage.Health {
	return stage.ProbeWorker(ctx, a.client, runstate.StageSchedule, a.cfg.URL)
}
