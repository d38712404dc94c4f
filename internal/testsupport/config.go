package testsupport

import (
	"path/filepath"
	"testing"

	"screener/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp log directory per test,
// an ephemeral API bind, short timeouts, and metrics/tracing off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Workers.RequestTimeout = 2
	cfgVal.Pipeline.RunTimeout = 10
	cfgVal.Progress.StreamIntervalMS = 20
	cfgVal.Metrics.Enabled = false
	cfgVal.Tracing.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithWorkers points the three stage endpoints at the supplied URLs.
func WithWorkers(parseURL, matchURL, scheduleURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.ParseURL = parseURL
		b.cfg.Workers.MatchURL = matchURL
		b.cfg.Workers.ScheduleURL = scheduleURL
	}
}

// WithNtfyTopic enables push notifications against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithMetrics toggles the Prometheus endpoint.
func WithMetrics(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.Enabled = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
