package matching

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"screener/internal/candidates"
	"screener/internal/logging"
	"screener/internal/runstate"
	"screener/internal/stage"
	"screener/internal/taskclient"
)

// Config carries the match worker settings.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Adapter runs the match stage.
type Adapter struct {
	client stage.Caller
	cfg    Config
	logger *slog.Logger
}

// NewAdapter constructs the match stage adapter.
func NewAdapter(client stage.Caller, cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{client: client, cfg: cfg, logger: logging.NewComponentLogger(logger, "matching")}
}

func (a *Adapter) Name() runstate.StageName { return runstate.StageMatch }

type rankedWire struct {
	CandidateID string           `json:"candidate_id"`
	Score       candidates.Score `json:"score"`
	SkillScore  candidates.Score `json:"skill_score"`
	RAGScore    candidates.Score `json:"rag_score"`
	Reason      string           `json:"reason"`
}

type resultWire struct {
	RankedCandidates *[]rankedWire `json:"ranked_candidates"`
}

// Execute ranks the parsed profiles. With no profiles the worker is not
// called and the ranked output is empty.
func (a *Adapter) Execute(ctx context.Context, st *runstate.State) error {
	logger := logging.WithContext(ctx, a.logger)
	parsed := st.Parsed()
	if len(parsed) == 0 {
		logger.Info("no parsed candidates; skipping match worker")
		if err := st.SetRanked(nil); err != nil {
			return stage.Failure(runstate.StageMatch, err)
		}
		return nil
	}

	raw, err := a.client.Send(ctx, a.cfg.URL, taskclient.Envelope{
		TaskID: TaskID(st.ID()),
		Data:   map[string]any{"candidates": parsed},
	}, a.cfg.Timeout)
	if err != nil {
		return stage.Failure(runstate.StageMatch, err)
	}

	var result resultWire
	if err := json.Unmarshal(raw, &result); err != nil {
		return stage.InvalidResult(runstate.StageMatch, "match result unreadable: %v", err)
	}
	if result.RankedCandidates == nil {
		return stage.InvalidResult(runstate.StageMatch, "match result missing ranked_candidates")
	}

	ranked := make([]candidates.Ranked, 0, len(*result.RankedCandidates))
	var warnings []runstate.Warning
	for i, entry := range *result.RankedCandidates {
		id := strings.TrimSpace(entry.CandidateID)
		if id == "" {
			warnings = append(warnings, runstate.Warning{
				Stage:  runstate.StageMatch,
				Detail: "ranked entry " + strconv.Itoa(i) + " has no candidate_id",
			})
			continue
		}
		ranked = append(ranked, candidates.Ranked{
			CandidateID: id,
			Score:       candidates.ClampScore(int(entry.Score)),
			SkillScore:  candidates.ClampScore(int(entry.SkillScore)),
			RAGScore:    candidates.ClampScore(int(entry.RAGScore)),
			Reason:      strings.TrimSpace(entry.Reason),
		})
	}
	SortRanked(ranked)

	for _, w := range warnings {
		logging.WarnWithContext(logger, "ranked entry dropped", "match_entry_dropped",
			logging.String("detail", w.Detail),
			logging.String(logging.FieldImpact, "candidate cannot be scheduled"),
		)
	}
	if err := st.AddWarnings(warnings...); err != nil {
		return stage.Failure(runstate.StageMatch, err)
	}
	if err := st.SetRanked(ranked); err != nil {
		return stage.Failure(runstate.StageMatch, err)
	}
	logger.Info("candidates ranked", logging.Int("candidates", len(parsed)), logging.Int("ranked", len(ranked)))
	return nil
}

// SortRanked orders candidates by score descending. Equal scores keep the
// worker's order.
func SortRanked(ranked []candidates.Ranked) {
	slices.SortStableFunc(ranked, func(a, b candidates.Ranked) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// TaskID builds the worker task id for a run.
func TaskID(runID string) string {
	return runID + "_match"
}

// HealthCheck probes the match worker's capability card.
func (a *Adapter) HealthCheck(ctx context.Context) stage.Health {
	return stage.ProbeWorker(ctx, a.client, runstate.StageMatch, a.cfg.URL)
}
