package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"screener/internal/config"
)

const userAgent = "Screener-Go/0.1.0"

// Event names a notification type.
type Event string

const (
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event-specific values. Keys are documented per event in
// format.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventRunCompleted: cfg.Notifications.RunCompleted,
			EventRunFailed:    cfg.Notifications.RunFailed,
			EventError:        cfg.Notifications.Errors,
			EventTest:         true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	message, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, message)
}

func format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventRunCompleted:
		title := stringValue(data, "jobTitle")
		scheduled := intValue(data, "scheduled")
		message := fmt.Sprintf("✅ %s: %d interview(s) scheduled", labelOr(title, "Screening run"), scheduled)
		if warnings := intValue(data, "warnings"); warnings > 0 {
			message += fmt.Sprintf(" (%d warning(s))", warnings)
		}
		if d, ok := data["duration"].(time.Duration); ok && d > 0 {
			message += fmt.Sprintf(" in %s", d.Round(time.Second))
		}
		return payload{
			title:   "Screener - Run Complete",
			message: message,
			tags:    []string{"screener", "run", "completed"},
		}, true
	case EventRunFailed:
		stage := labelOr(stringValue(data, "stage"), "unknown stage")
		detail := labelOr(stringValue(data, "detail"), "no detail")
		subject := "Run"
		if id := stringValue(data, "taskID"); id != "" {
			subject = "Run " + id
		}
		return payload{
			title:    "Screener - Run Failed",
			message:  fmt.Sprintf("❌ %s failed at %s: %s", subject, stage, detail),
			tags:     []string{"screener", "run", "failed"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := stringValue(data, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(labelOr(stringValue(data, "error"), "unknown"))
		return payload{
			title:    "Screener - Error",
			message:  builder.String(),
			tags:     []string{"screener", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Screener - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"screener", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func stringValue(data Payload, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intValue(data Payload, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func labelOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
