package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"screener/internal/config"
	"screener/internal/daemon"
	"screener/internal/gateway"
	"screener/internal/logging"
	"screener/internal/notifications"
	"screener/internal/observability"
	"screener/internal/progress"
	"screener/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the screener daemon and blocks until the context is cancelled or
// the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "screener.log")},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	tracing, err := observability.NewTracerProvider(signalCtx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", logging.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := workflow.MustNewMetrics(registry)

	pidPath := filepath.Join(cfg.Paths.LogDir, "screenerd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	notifier := notifications.NewService(cfg)
	client := workflow.NewTaskClient(cfg, metrics, logger)
	executor := workflow.NewExecutor(workflow.BuildStages(cfg, client, logger), logger,
		workflow.WithNotifier(notifier),
		workflow.WithMetrics(metrics),
		workflow.WithTracer(tracing.Tracer()),
		workflow.WithRunTimeout(cfg.RunTimeout()),
	)
	hub := progress.NewHub(cfg.Pipeline.RetainRuns, cfg.RetainWindow())
	gw := gateway.New(executor, hub, logger, gateway.WithRetention(cfg.Pipeline.RetainRuns, cfg.RetainWindow()))

	var daemonOpts []daemon.Option
	daemonOpts = append(daemonOpts, daemon.WithNotifier(notifier))
	if cfg.Metrics.Enabled {
		daemonOpts = append(daemonOpts, daemon.WithGatherer(registry))
	}
	d, err := daemon.New(cfg, gw, executor, logger, daemonOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	logWorkerSnapshot(signalCtx, logger, cfg, executor)

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.bind and that no other screenerd is running"),
		)
		return err
	}
	defer d.Stop()

	<-signalCtx.Done()
	logger.Info("screener daemon shutting down",
		logging.Int("active_runs", gw.Active()),
	)
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logWorkerSnapshot records which workers answered discovery at startup. A
// worker that is down is only a warning; runs fail per stage when it is used.
func logWorkerSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config, checker daemon.HealthChecker) {
	probeCtx, cancel := context.WithTimeout(ctx, cfg.WorkerTimeout())
	defer cancel()
	for _, health := range checker.HealthCheck(probeCtx) {
		if health.Ready {
			logger.Info("worker ready",
				logging.String(logging.FieldEventType, "worker_snapshot"),
				logging.String(logging.FieldStage, health.Name),
			)
			continue
		}
		logger.Warn("worker unavailable",
			logging.String(logging.FieldEventType, "worker_snapshot"),
			logging.String(logging.FieldStage, health.Name),
			logging.String("detail", health.Detail),
			logging.String(logging.FieldErrorHint, "start the worker or fix its URL in [workers]"),
			logging.String(logging.FieldImpact, "runs fail at this stage until the worker is reachable"),
		)
	}
}
