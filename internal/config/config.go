package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// API contains the orchestrator's inbound HTTP surface settings.
type API struct {
	Bind         string   `toml:"bind"`
	PublicURL    string   `toml:"public_url"`
	AllowOrigins []string `toml:"allow_origins"`
}

// Workers lists the remote worker endpoints the pipeline delegates to.
type Workers struct {
	ParseURL       string `toml:"parse_url"`
	MatchURL       string `toml:"match_url"`
	ScheduleURL    string `toml:"schedule_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Retry configures the worker call retry policy. One attempt disables retries.
type Retry struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxDelayMS  int `toml:"max_delay_ms"`
}

// Pipeline contains configuration for a single screening run.
type Pipeline struct {
	RunTimeout            int `toml:"run_timeout"`
	ParseConcurrency      int `toml:"parse_concurrency"`
	ScheduleMinScore      int `toml:"schedule_min_score"`
	ScheduleMinGapMinutes int `toml:"schedule_min_gap_minutes"`
	RetainRuns            int `toml:"retain_runs"`
	RetainMinutes         int `toml:"retain_minutes"`
}

// Progress contains configuration for status streaming.
type Progress struct {
	StreamIntervalMS int `toml:"stream_interval_ms"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunCompleted   bool   `toml:"run_completed"`
	RunFailed      bool   `toml:"run_failed"`
	Errors         bool   `toml:"errors"`
}

// Tracing contains OpenTelemetry export settings.
type Tracing struct {
	Enabled      bool    `toml:"enabled"`
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	Insecure     bool    `toml:"insecure"`
	SampleRate   float64 `toml:"sample_rate"`
	ServiceName  string  `toml:"service_name"`
}

// Metrics toggles the Prometheus exposition endpoint.
type Metrics struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for screener.
//
// Configuration sections by subsystem:
//   - Paths: log directory
//   - API: bind address, advertised endpoint, and browser origins
//   - Workers: parse/match/schedule endpoints and per-call timeout
//   - Retry: worker call retry policy
//   - Pipeline: run deadline, parse fan-out, schedule filtering, run retention
//   - Progress: status stream cadence
//   - Notifications: ntfy push notification settings
//   - Tracing: OpenTelemetry span export
//   - Metrics: Prometheus endpoint
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Workers       Workers       `toml:"workers"`
	Retry         Retry         `toml:"retry"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Progress      Progress      `toml:"progress"`
	Notifications Notifications `toml:"notifications"`
	Tracing       Tracing       `toml:"tracing"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("screener.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// WorkerTimeout returns the per-call worker request timeout.
func (c *Config) WorkerTimeout() time.Duration {
	return time.Duration(c.Workers.RequestTimeout) * time.Second
}

// RunTimeout returns the cumulative deadline applied to a single run.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Pipeline.RunTimeout) * time.Second
}

// RetryBaseDelay returns the first retry backoff delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMS) * time.Millisecond
}

// ScheduleMinGap returns the minimum spacing between two scheduled interviews.
func (c *Config) ScheduleMinGap() time.Duration {
	return time.Duration(c.Pipeline.ScheduleMinGapMinutes) * time.Minute
}

// RetainWindow returns how long finished runs stay available for inspection.
func (c *Config) RetainWindow() time.Duration {
	return time.Duration(c.Pipeline.RetainMinutes) * time.Minute
}

// StreamInterval returns the status stream re-emit interval.
func (c *Config) StreamInterval() time.Duration {
	return time.Duration(c.Progress.StreamIntervalMS) * time.Millisecond
}

// AdvertisedEndpoint returns the task endpoint published in the agent card.
func (c *Config) AdvertisedEndpoint() string {
	base := strings.TrimRight(strings.TrimSpace(c.API.PublicURL), "/")
	if base == "" {
		base = "http://" + c.API.Bind
	}
	return base + "/task"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
