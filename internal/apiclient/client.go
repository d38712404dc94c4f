package apiclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"screener/internal/daemon"
	"screener/internal/gateway"
	"screener/internal/runstate"
)

// ErrNotFound is returned when the daemon does not know the requested run.
var ErrNotFound = errors.New("run not found")

// APIError is a non-2xx daemon response.
type APIError struct {
	StatusCode int
	Message    string
	TaskID     string
	Stage      string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Client is a daemon API client.
type Client struct {
	base *url.URL
	http *http.Client
}

// New builds a client from a bind address or base URL.
func New(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("daemon address is empty")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		// No timeout: task submission and event streams run as long as the
		// caller's context allows.
		http: &http.Client{},
	}, nil
}

// Submit posts a task envelope and waits for the run to finish.
func (c *Client) Submit(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	var resp gateway.Response
	if err := c.do(ctx, http.MethodPost, "/task", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Run fetches the snapshot of a live or recently finished run.
func (c *Client) Run(ctx context.Context, taskID string) (runstate.Snapshot, error) {
	var snap runstate.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(taskID), nil, &snap)
	return snap, err
}

// Status fetches daemon status and stage readiness.
func (c *Client) Status(ctx context.Context) (daemon.Status, error) {
	var status daemon.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (daemon.NotificationResult, error) {
	var result daemon.NotificationResult
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, &result)
	return result, err
}

// Events follows a status stream. An empty taskID follows the global stream.
// fn is called for every status line; returning an error stops the stream.
// Events returns nil when the daemon closes the stream.
func (c *Client) Events(ctx context.Context, taskID string, fn func(status string) error) error {
	path := "/events"
	if taskID != "" {
		path += "/" + url.PathEscape(taskID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		status, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if err := fn(status); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}

func (c *Client) resolve(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/api/runs/") {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Error   string `json:"error"`
		TaskID  string `json:"task_id"`
		Stage   string `json:"stage"`
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err == nil {
		apiErr.Message = payload.Error
		if apiErr.Message == "" {
			apiErr.Message = payload.Message
		}
		apiErr.TaskID = payload.TaskID
		apiErr.Stage = payload.Stage
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
