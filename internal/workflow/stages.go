package workflow

import (
	"log/slog"

	"screener/internal/config"
	"screener/internal/matching"
	"screener/internal/parsing"
	"screener/internal/scheduling"
	"screener/internal/stage"
	"screener/internal/taskclient"
)

// NewTaskClient builds the worker client from configuration. A nil metrics
// recorder disables call observation.
func NewTaskClient(cfg *config.Config, metrics *Metrics, logger *slog.Logger) *taskclient.Client {
	opts := []taskclient.Option{
		taskclient.WithTimeout(cfg.WorkerTimeout()),
		taskclient.WithPolicy(taskclient.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay(),
			MaxDelay:    cfg.RetryMaxDelay(),
		}),
		taskclient.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, taskclient.WithObserver(metrics))
	}
	return taskclient.New(opts...)
}

// BuildStages wires the parse, match, and schedule adapters in execution order.
func BuildStages(cfg *config.Config, client stage.Caller, logger *slog.Logger) []stage.Handler {
	timeout := cfg.WorkerTimeout()
	return []stage.Handler{
		parsing.NewAdapter(client, parsing.Config{
			URL:         cfg.Workers.ParseURL,
			Timeout:     timeout,
			Concurrency: cfg.Pipeline.ParseConcurrency,
		}, logger),
		matching.NewAdapter(client, matching.Config{
			URL:     cfg.Workers.MatchURL,
			Timeout: timeout,
		}, logger),
		scheduling.NewAdapter(client, scheduling.Config{
			URL:      cfg.Workers.ScheduleURL,
			Timeout:  timeout,
			MinScore: cfg.Pipeline.ScheduleMinScore,
			MinGap:   cfg.ScheduleMinGap(),
		}, logger),
	}
}
