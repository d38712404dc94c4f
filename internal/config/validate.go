package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateTracing(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkers() error {
	for key, value := range map[string]string{
		"workers.parse_url":    c.Workers.ParseURL,
		"workers.match_url":    c.Workers.MatchURL,
		"workers.schedule_url": c.Workers.ScheduleURL,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
		parsed, err := url.Parse(value)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s must use http or https, got %q", key, parsed.Scheme)
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"workers.request_timeout":       c.Workers.RequestTimeout,
		"pipeline.run_timeout":          c.Pipeline.RunTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ScheduleMinScore < 0 || c.Pipeline.ScheduleMinScore > 100 {
		return errors.New("pipeline.schedule_min_score must be between 0 and 100")
	}
	if c.Pipeline.ScheduleMinGapMinutes < 0 {
		return errors.New("pipeline.schedule_min_gap_minutes must not be negative")
	}
	if c.Pipeline.RunTimeout < c.Workers.RequestTimeout {
		return errors.New("pipeline.run_timeout must be at least workers.request_timeout")
	}
	return nil
}

func (c *Config) validateTracing() error {
	if !c.Tracing.Enabled {
		return nil
	}
	if c.Tracing.OTLPEndpoint == "" {
		return errors.New("tracing.otlp_endpoint must be set when tracing.enabled is true")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.New("tracing.sample_rate must be between 0 and 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
