package parsing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"screener/internal/candidates"
	"screener/internal/logging"
	"screener/internal/runstate"
	"screener/internal/stage"
	"screener/internal/taskclient"
)

// Config carries the parse worker settings.
type Config struct {
	URL         string
	Timeout     time.Duration
	Concurrency int
}

// Adapter runs the parse stage.
type Adapter struct {
	client stage.Caller
	cfg    Config
	logger *slog.Logger
}

// NewAdapter constructs the parse stage adapter.
func NewAdapter(client stage.Caller, cfg Config, logger *slog.Logger) *Adapter {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Adapter{
		client: client,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "parsing"),
	}
}

func (a *Adapter) Name() runstate.StageName { return runstate.StageParse }

type outcome struct {
	recordID string
	profile  candidates.Profile
	err      error
}

// Execute parses every input record. Only a failure to store the output (a
// frozen or out-of-phase state) is returned.
func (a *Adapter) Execute(ctx context.Context, st *runstate.State) error {
	logger := logging.WithContext(ctx, a.logger)
	inputs := st.Inputs()
	results := make([]outcome, len(inputs))

	var group errgroup.Group
	group.SetLimit(a.cfg.Concurrency)
	for i, resume := range inputs {
		group.Go(func() error {
			results[i] = a.parseOne(ctx, st.ID(), i, resume)
			return nil
		})
	}
	_ = group.Wait()

	parsed := make([]candidates.Profile, 0, len(inputs))
	var warnings []runstate.Warning
	for _, res := range results {
		if res.err != nil {
			warnings = append(warnings, runstate.Warning{
				Stage:  runstate.StageParse,
				Record: res.recordID,
				Detail: res.err.Error(),
			})
			logging.WarnWithContext(logger, "resume dropped", "parse_record_dropped",
				logging.String(logging.FieldRecordID, res.recordID),
				logging.Error(res.err),
				logging.String(logging.FieldImpact, "candidate excluded from matching"),
				logging.String(logging.FieldErrorHint, "check the parse worker logs for this record"),
			)
			continue
		}
		parsed = append(parsed, res.profile)
	}

	logger.Info("resumes parsed",
		logging.Int("submitted", len(inputs)),
		logging.Int("parsed", len(parsed)),
		logging.Int("dropped", len(warnings)),
	)

	if err := st.AddWarnings(warnings...); err != nil {
		return stage.Failure(runstate.StageParse, err)
	}
	if err := st.SetParsed(parsed); err != nil {
		return stage.Failure(runstate.StageParse, err)
	}
	return nil
}

func (a *Adapter) parseOne(ctx context.Context, runID string, index int, resume candidates.Resume) outcome {
	recordID := resume.RecordID(index)
	env := taskclient.Envelope{
		TaskID: TaskID(runID, recordID),
		Data:   map[string]any{"resume": resume},
	}
	raw, err := a.client.Send(ctx, a.cfg.URL, env, a.cfg.Timeout)
	if err != nil {
		return outcome{recordID: recordID, err: err}
	}
	var profile candidates.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return outcome{recordID: recordID, err: fmt.Errorf("parse result is not a profile: %w", err)}
	}
	if err := profile.Validate(); err != nil {
		return outcome{recordID: recordID, err: err}
	}
	if profile.Skills == nil {
		profile.Skills = []string{}
	}
	return outcome{recordID: recordID, profile: profile}
}

// TaskID builds the per-record worker task id.
func TaskID(runID, recordID string) string {
	return runID + "_resume_" + recordID
}

// HealthCheck probes the parse worker's capability card.
func (a *Adapter) HealthCheck(ctx context.Context) stage.Health {
	return stage.ProbeWorker(ctx, a.client, runstate.StageParse, a.cfg.URL)
}
