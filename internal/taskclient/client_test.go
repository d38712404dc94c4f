package taskclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"screener/internal/services"
)

func TestSendReturnsResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var env struct {
			TaskID string         `json:"task_id"`
			Data   map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if env.TaskID != "run_resume_r1" || env.Data["resume"] == nil {
			t.Errorf("unexpected envelope: %+v", env)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"task_id": env.TaskID,
			"result":  map[string]any{"name": "Ada"},
		})
	}))
	defer server.Close()

	client := New()
	result, err := client.Send(context.Background(), server.URL, Envelope{
		TaskID: "run_resume_r1",
		Data:   map[string]any{"resume": map[string]string{"id": "r1"}},
	}, time.Second)
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if !strings.Contains(string(result), `"Ada"`) {
		t.Fatalf("unexpected result %s", result)
	}
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := New().Send(context.Background(), server.URL, Envelope{TaskID: "t"}, 50*time.Millisecond)
	terr := requireTransportError(t, err, KindTimeout)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if !strings.Contains(terr.Detail, "50ms") {
		t.Fatalf("expected timeout detail, got %q", terr.Detail)
	}
}

func TestSendRemoteRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "model unavailable"})
	}))
	defer server.Close()

	_, err := New().Send(context.Background(), server.URL, Envelope{TaskID: "t"}, time.Second)
	terr := requireTransportError(t, err, KindRemoteRejected)
	if terr.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", terr.Status)
	}
	if terr.Detail != "model unavailable" || !strings.Contains(terr.Body, "model unavailable") {
		t.Fatalf("expected worker error carried through, got %+v", terr)
	}
	if !errors.Is(err, services.ErrRemote) {
		t.Fatalf("expected remote marker, got %v", err)
	}
	if terr.Message() != "worker returned http 500: model unavailable" {
		t.Fatalf("unexpected message %q", terr.Message())
	}
}

func TestSendMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"array", `[1,2,3]`},
		{"missing result", `{"task_id":"t"}`},
		{"null result", `{"task_id":"t","result":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New().Send(context.Background(), server.URL, Envelope{TaskID: "t"}, time.Second)
			terr := requireTransportError(t, err, KindMalformedResponse)
			if terr.Raw == "" {
				t.Fatal("expected raw snippet")
			}
		})
	}
}

func TestSendErrorFieldWithSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Invalid task format"}`))
	}))
	defer server.Close()

	_, err := New().Send(context.Background(), server.URL, Envelope{TaskID: "t"}, time.Second)
	terr := requireTransportError(t, err, KindRemoteRejected)
	if terr.Detail != "Invalid task format" {
		t.Fatalf("unexpected detail %q", terr.Detail)
	}
}

func TestSendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New().Send(context.Background(), url, Envelope{TaskID: "t"}, time.Second)
	requireTransportError(t, err, KindUnreachable)
}

func TestSendHonoursExpiredRunDeadline(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := New().Send(ctx, server.URL, Envelope{TaskID: "t"}, time.Second)
	terr := requireTransportError(t, err, KindTimeout)
	if terr.Detail != "run deadline exceeded" {
		t.Fatalf("unexpected detail %q", terr.Detail)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request after deadline, got %d", calls.Load())
	}

	canceled, stop := context.WithCancel(context.Background())
	stop()
	_, err = New().Send(canceled, server.URL, Envelope{TaskID: "t"}, time.Second)
	requireTransportError(t, err, KindCanceled)
}

func TestSendDoesNotRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New().Send(context.Background(), server.URL, Envelope{TaskID: "t"}, time.Second)
	requireTransportError(t, err, KindRemoteRejected)
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls.Load())
	}
}

func TestSendRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"task_id":"t","result":{"ok":true}}`))
	}))
	defer server.Close()

	var delays []time.Duration
	client := New(
		WithPolicy(Policy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 500 * time.Millisecond}),
		WithSleeper(func(d time.Duration) { delays = append(delays, d) }),
	)
	result, err := client.Send(context.Background(), server.URL, Envelope{TaskID: "t"}, time.Second)
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if string(result) != `{"ok":true}` {
		t.Fatalf("unexpected result %s", result)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if len(delays) != 2 || delays[0] != 500*time.Millisecond {
		t.Fatalf("expected Retry-After capped to max delay, got %v", delays)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(WithPolicy(Policy{MaxAttempts: 4}), WithSleeper(func(time.Duration) {}))
	_, err := client.Send(context.Background(), server.URL, Envelope{TaskID: "t"}, time.Second)
	requireTransportError(t, err, KindRemoteRejected)
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt for 400, got %d", calls.Load())
	}
}

func TestSendReportsAttemptsAfterExhaustingRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(WithPolicy(Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}), WithSleeper(func(time.Duration) {}))
	_, err := client.Send(context.Background(), server.URL, Envelope{TaskID: "t"}, time.Second)
	terr := requireTransportError(t, err, KindRemoteRejected)
	if terr.Attempts != 2 || !strings.Contains(terr.Error(), "after 2 attempts") {
		t.Fatalf("unexpected attempts reporting: %v", terr)
	}
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveCall(_ string, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func TestSendNotifiesObserver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	observer := &recordingObserver{}
	_, _ = New(WithObserver(observer)).Send(context.Background(), server.URL, Envelope{TaskID: "t"}, time.Second)
	if len(observer.outcomes) != 1 || observer.outcomes[0] != string(KindRemoteRejected) {
		t.Fatalf("unexpected outcomes %v", observer.outcomes)
	}
}

func TestBackoffDelay(t *testing.T) {
	client := New(WithPolicy(Policy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}))
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, expected := range want {
		if got := client.backoffDelay(i + 1); got != expected {
			t.Fatalf("backoffDelay(%d) = %s, want %s", i+1, got, expected)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("unexpected seconds parse: %s %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("negative retry-after should be ignored")
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("garbage retry-after should be ignored")
	}
}

func TestDiscover(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != WellKnownPath {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(AgentCard{AgentID: "matching-agent", Capabilities: []string{"candidate_matching"}})
	}))
	defer server.Close()

	card, err := New().Discover(context.Background(), server.URL+"/match")
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if card.AgentID != "matching-agent" {
		t.Fatalf("unexpected card %+v", card)
	}
	if _, err := CardURL("/relative"); err == nil {
		t.Fatal("expected error for relative endpoint")
	}
}

func requireTransportError(t *testing.T, err error, kind Kind) *TransportError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if terr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, terr.Kind, err)
	}
	return terr
}
