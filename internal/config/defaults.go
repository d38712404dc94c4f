package config

const (
	defaultConfigPath            = "~/.config/screener/config.toml"
	defaultLogDir                = "~/.local/share/screener/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultAPIBind               = "127.0.0.1:8080"
	defaultParseURL              = "http://localhost:8001/resume"
	defaultMatchURL              = "http://localhost:8002/match"
	defaultScheduleURL           = "http://localhost:8004/schedule"
	defaultWorkerRequestTimeout  = 30
	defaultRetryMaxAttempts      = 1
	defaultRetryBaseDelayMS      = 500
	defaultRetryMaxDelayMS       = 5000
	defaultRunTimeout            = 300
	defaultParseConcurrency      = 4
	defaultScheduleMinScore      = 80
	defaultScheduleMinGapMinutes = 60
	defaultRetainRuns            = 128
	defaultRetainMinutes         = 30
	defaultStreamIntervalMS      = 1000
	defaultNotifyRequestTimeout  = 10
	defaultTracingServiceName    = "screener"
	defaultTracingSampleRate     = 1.0
	defaultTracingOTLPEndpoint   = "localhost:4318"
	defaultAllowOrigin           = "*"
	envParseURL                  = "SCREENER_PARSE_URL"
	envMatchURL                  = "SCREENER_MATCH_URL"
	envScheduleURL               = "SCREENER_SCHEDULE_URL"
	envNtfyTopic                 = "SCREENER_NTFY_TOPIC"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		API: API{
			Bind:         defaultAPIBind,
			AllowOrigins: []string{defaultAllowOrigin},
		},
		Workers: Workers{
			ParseURL:       defaultParseURL,
			MatchURL:       defaultMatchURL,
			ScheduleURL:    defaultScheduleURL,
			RequestTimeout: defaultWorkerRequestTimeout,
		},
		Retry: Retry{
			MaxAttempts: defaultRetryMaxAttempts,
			BaseDelayMS: defaultRetryBaseDelayMS,
			MaxDelayMS:  defaultRetryMaxDelayMS,
		},
		Pipeline: Pipeline{
			RunTimeout:            defaultRunTimeout,
			ParseConcurrency:      defaultParseConcurrency,
			ScheduleMinScore:      defaultScheduleMinScore,
			ScheduleMinGapMinutes: defaultScheduleMinGapMinutes,
			RetainRuns:            defaultRetainRuns,
			RetainMinutes:         defaultRetainMinutes,
		},
		Progress: Progress{
			StreamIntervalMS: defaultStreamIntervalMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunCompleted:   true,
			RunFailed:      true,
			Errors:         true,
		},
		Tracing: Tracing{
			OTLPEndpoint: defaultTracingOTLPEndpoint,
			Insecure:     true,
			SampleRate:   defaultTracingSampleRate,
			ServiceName:  defaultTracingServiceName,
		},
		Metrics: Metrics{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
