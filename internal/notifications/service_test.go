package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"screener/internal/config"
	"screener/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRunCompleted, notifications.Payload{"jobTitle": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "run completed",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"jobTitle":  "Backend Engineer",
				"scheduled": 3,
				"warnings":  1,
				"duration":  1500 * time.Millisecond,
			},
			expectTitle:   "Screener - Run Complete",
			expectMessage: "✅ Backend Engineer: 3 interview(s) scheduled (1 warning(s)) in 2s",
			expectTags:    "screener,run,completed",
		},
		{
			name:  "run failed",
			event: notifications.EventRunFailed,
			payload: notifications.Payload{
				"taskID": "workflow_1",
				"stage":  "match",
				"detail": "worker returned http 500: boom",
			},
			expectTitle:    "Screener - Run Failed",
			expectMessage:  "❌ Run workflow_1 failed at match: worker returned http 500: boom",
			expectTags:     "screener,run,failed",
			expectPriority: "high",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "api",
				"error":   errors.New("handler panic"),
			},
			expectTitle:    "Screener - Error",
			expectMessage:  "❌ Error with api: handler panic",
			expectTags:     "screener,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Screener - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "screener,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RunCompleted = false
	cfg.Notifications.RunFailed = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{
		notifications.EventRunCompleted,
		notifications.EventRunFailed,
		notifications.EventError,
		notifications.Event("unknown"),
	} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
