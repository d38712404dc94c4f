package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"screener/internal/config"
	"screener/internal/logging"
	"screener/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon starting")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "screener.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon starting") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerPromotesScopeFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "workflow")
	logger.Info("stage completed",
		logging.String(logging.FieldTaskID, "workflow_1"),
		logging.String(logging.FieldStage, "parse"),
		logging.Int("records", 3),
		logging.String("note", "two words"),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO workflow [workflow_1 parse]: stage completed") {
		t.Fatalf("unexpected console prefix: %q", line)
	}
	if !strings.Contains(line, "records=3") || !strings.Contains(line, `note="two words"`) {
		t.Fatalf("expected trailing fields, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller at info level, got %q", line)
	}
}

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithTaskID(context.Background(), "task-42")
	ctx = services.WithStage(ctx, "match")
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, logger).Error("worker failed", logging.Error(errors.New("boom")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	assertField := func(key string, want any) {
		t.Helper()
		if entry[key] != want {
			t.Fatalf("field %s = %v, want %v", key, entry[key], want)
		}
	}
	assertField("level", "error")
	assertField("msg", "worker failed")
	assertField(logging.FieldTaskID, "task-42")
	assertField(logging.FieldStage, "match")
	assertField(logging.FieldCorrelationID, "req-1")
	assertField("error", "boom")
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts field")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "record dropped", "parse_record_dropped", logging.String(logging.FieldImpact, "candidate skipped"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry[logging.FieldEventType] != "parse_record_dropped" {
		t.Fatalf("unexpected event type: %v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldImpact] != "candidate skipped" {
		t.Fatalf("explicit impact should be preserved, got %v", entry[logging.FieldImpact])
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should never be enabled")
	}
	logging.WithContext(context.Background(), nil).Info("ignored")
}
