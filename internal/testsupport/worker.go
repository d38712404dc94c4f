package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Envelope is a task request as received by a fake worker.
type Envelope struct {
	TaskID string                     `json:"task_id"`
	Data   map[string]json.RawMessage `json:"data"`
}

// WorkerFunc answers one task. It returns the HTTP status and the body to encode.
type WorkerFunc func(env Envelope) (int, any)

// Worker is an in-process stand-in for a remote stage worker. It also serves
// a capability card so readiness probes succeed.
type Worker struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Envelope
}

// NewWorker starts a fake worker that serves POST /task-style calls on
// path and the capability card on /.well-known/agent.json.
func NewWorker(t testing.TB, agentID, path string, fn WorkerFunc) *Worker {
	t.Helper()
	w := &Worker{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/agent.json", func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]any{"agent_id": agentID, "endpoint": path})
	})
	mux.HandleFunc("POST "+path, func(rw http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "Invalid task format"})
			return
		}
		w.mu.Lock()
		w.requests = append(w.requests, env)
		w.mu.Unlock()
		status, payload := fn(env)
		writeJSON(rw, status, payload)
	})
	w.Server = httptest.NewServer(mux)
	t.Cleanup(w.Close)
	return w
}

// Endpoint returns the task URL of the worker.
func (w *Worker) Endpoint(path string) string {
	return w.URL + path
}

// Requests returns a copy of every task received so far.
func (w *Worker) Requests() []Envelope {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Envelope, len(w.requests))
	copy(out, w.requests)
	return out
}

// Calls returns how many tasks the worker received.
func (w *Worker) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.requests)
}

// Result wraps payload in the success envelope.
func Result(taskID string, payload any) map[string]any {
	return map[string]any{"task_id": taskID, "result": payload}
}

// Failure builds the worker error body.
func Failure(message string) map[string]string {
	return map[string]string{"error": message}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if raw, ok := payload.(json.RawMessage); ok {
		_, _ = w.Write(raw)
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
