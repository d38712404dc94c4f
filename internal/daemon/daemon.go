package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"screener/internal/config"
	"screener/internal/gateway"
	"screener/internal/logging"
	"screener/internal/notifications"
	"screener/internal/stage"
)

// HealthChecker reports per-stage readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) []stage.Health
}

// Option configures optional Daemon behavior.
type Option func(*Daemon)

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(d *Daemon) { d.gatherer = gatherer }
}

// WithNotifier sets the notification service used for test notifications and
// API error alerts.
func WithNotifier(notifier notifications.Service) Option {
	return func(d *Daemon) {
		if notifier != nil {
			d.notifier = notifier
		}
	}
}

// Daemon coordinates the API server and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	gateway  *gateway.Gateway
	health   HealthChecker
	notifier notifications.Service
	gatherer prometheus.Gatherer

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool           `json:"running"`
	Endpoint     string         `json:"endpoint"`
	ActiveRuns   int            `json:"active_runs"`
	Stages       []stage.Health `json:"stages"`
	LockFilePath string         `json:"lock_file"`
}

// Ready reports whether every stage is healthy.
func (s Status) Ready() bool {
	for _, h := range s.Stages {
		if !h.Ready {
			return false
		}
	}
	return true
}

// New constructs a daemon around an existing gateway.
func New(cfg *config.Config, gw *gateway.Gateway, health HealthChecker, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || gw == nil {
		return nil, errors.New("daemon requires config and gateway")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "screenerd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		gateway:  gw,
		health:   health,
		notifier: notifications.NewService(nil),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and starts serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another screener daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("screener daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.Address()),
	)
	return nil
}

// Stop stops serving and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("screener daemon stopped")
}

// Address returns the bound API address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Handler returns the HTTP handler, for in-process tests and embedding.
func (d *Daemon) Handler() http.Handler {
	return d.api.engine
}

// Status returns the current daemon status including worker readiness.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Endpoint:     d.cfg.AdvertisedEndpoint(),
		ActiveRuns:   d.gateway.Active(),
		LockFilePath: d.lockPath,
	}
	if d.health != nil {
		status.Stages = d.health.HealthCheck(ctx)
	}
	return status
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
