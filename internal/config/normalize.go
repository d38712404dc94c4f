package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	if err := c.normalizeWorkers(); err != nil {
		return err
	}
	c.normalizeRetry()
	c.normalizePipeline()
	c.normalizeNotifications()
	c.normalizeTracing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.PublicURL = strings.TrimRight(strings.TrimSpace(c.API.PublicURL), "/")
	origins := c.API.AllowOrigins[:0]
	for _, origin := range c.API.AllowOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.API.AllowOrigins = origins
}

func (c *Config) normalizeWorkers() error {
	for _, entry := range []struct {
		key   string
		env   string
		value *string
	}{
		{"workers.parse_url", envParseURL, &c.Workers.ParseURL},
		{"workers.match_url", envMatchURL, &c.Workers.MatchURL},
		{"workers.schedule_url", envScheduleURL, &c.Workers.ScheduleURL},
	} {
		if value, ok := os.LookupEnv(entry.env); ok && strings.TrimSpace(value) != "" {
			*entry.value = value
		}
		*entry.value = strings.TrimSpace(*entry.value)
		if *entry.value == "" {
			continue
		}
		parsed, err := url.Parse(*entry.value)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
		*entry.value = parsed.String()
	}
	return nil
}

func (c *Config) normalizeRetry() {
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if c.Retry.BaseDelayMS < 0 {
		c.Retry.BaseDelayMS = 0
	}
	if c.Retry.MaxDelayMS > 0 && c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		c.Retry.MaxDelayMS = c.Retry.BaseDelayMS
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ParseConcurrency <= 0 {
		c.Pipeline.ParseConcurrency = 1
	}
	if c.Pipeline.RetainRuns <= 0 {
		c.Pipeline.RetainRuns = defaultRetainRuns
	}
	if c.Pipeline.RetainMinutes <= 0 {
		c.Pipeline.RetainMinutes = defaultRetainMinutes
	}
	if c.Progress.StreamIntervalMS <= 0 {
		c.Progress.StreamIntervalMS = defaultStreamIntervalMS
	}
}

func (c *Config) normalizeNotifications() {
	if topic, ok := os.LookupEnv(envNtfyTopic); ok && strings.TrimSpace(topic) != "" && strings.TrimSpace(c.Notifications.NtfyTopic) == "" {
		c.Notifications.NtfyTopic = topic
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeTracing() {
	c.Tracing.OTLPEndpoint = strings.TrimSpace(c.Tracing.OTLPEndpoint)
	c.Tracing.ServiceName = strings.TrimSpace(c.Tracing.ServiceName)
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaultTracingServiceName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
