package taskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"screener/internal/logging"
	"screener/internal/services"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second
	maxResponseBytes      = 8 << 20
	bodyLimit             = 2048
	snippetLimit          = 160
	tracerName            = "screener/taskclient"
)

// Envelope is the request sent to every worker.
type Envelope struct {
	TaskID string `json:"task_id"`
	Data   any    `json:"data"`
}

// Reply is the response shape every worker returns.
type Reply struct {
	TaskID string          `json:"task_id"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// Policy bounds how often a call is attempted.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Observer receives one notification per completed call (after retries).
type Observer interface {
	ObserveCall(url string, outcome string, elapsed time.Duration)
}

// Client calls workers over HTTP.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	policy     Policy
	sleeper    func(time.Duration)
	logger     *slog.Logger
	tracer     trace.Tracer
	observer   Observer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. Its Timeout should be zero
// or larger than any per-call timeout; per-call bounds come from the context.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-call timeout used when Send is given none.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithPolicy enables bounded retries.
func WithPolicy(policy Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer overrides the tracer used for call spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithObserver registers a call observer, typically the metrics recorder.
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// New constructs a client. Without options it makes a single attempt per call
// with a 30 second timeout.
func New(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		policy:     Policy{MaxAttempts: 1},
		logger:     logging.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Send posts env to url and returns the worker's result payload. Any failure
// is returned as a *TransportError. A timeout of zero uses the client default.
func (c *Client) Send(ctx context.Context, url string, env Envelope, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, span := c.tracer.Start(ctx, "taskclient.send", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("worker.url", url),
		attribute.String("task.id", env.TaskID),
	))
	defer span.End()

	started := time.Now()
	result, err := c.sendWithRetry(ctx, url, env, timeout)
	outcome := "ok"
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			outcome = string(terr.Kind)
			span.SetAttributes(attribute.String("error.kind", outcome))
			if terr.Status != 0 {
				span.SetAttributes(attribute.Int("http.status_code", terr.Status))
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	if c.observer != nil {
		c.observer.ObserveCall(url, outcome, time.Since(started))
	}
	return result, err
}

func (c *Client) sendWithRetry(ctx context.Context, url string, env Envelope, timeout time.Duration) (json.RawMessage, error) {
	encoded, err := json.Marshal(env)
	if err != nil {
		return nil, &TransportError{Kind: KindMalformedResponse, URL: url, Detail: "encode request", Err: err}
	}

	attempts := c.retryAttempts()
	var lastErr *TransportError
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, contextError(ctx, url, err, attempt-1)
		}
		result, terr := c.sendOnce(ctx, url, encoded, timeout)
		if terr == nil {
			return result, nil
		}
		terr.Attempts = attempt
		lastErr = terr

		delay, retry := c.retryDelay(ctx, terr, attempt, attempts)
		if !retry {
			return nil, terr
		}
		c.logger.Debug("retrying worker call",
			logging.String(logging.FieldWorkerURL, url),
			logging.String(logging.FieldErrorKind, string(terr.Kind)),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, contextError(ctx, url, err, attempt)
		}
	}
	return nil, lastErr
}

func (c *Client) sendOnce(ctx context.Context, url string, body []byte, timeout time.Duration) (json.RawMessage, *TransportError) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Kind: KindUnreachable, URL: url, Detail: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", rid)
	}
	otel.GetTextMapPropagator().Inject(callCtx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, callCtx, url, timeout, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransport(ctx, callCtx, url, timeout, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &TransportError{
			Kind:       KindRemoteRejected,
			URL:        url,
			Status:     resp.StatusCode,
			Body:       truncate(string(payload), bodyLimit),
			Detail:     workerErrorMessage(payload),
			RetryAfter: retryAfter,
		}
	}

	var reply Reply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return nil, &TransportError{
			Kind:   KindMalformedResponse,
			URL:    url,
			Status: resp.StatusCode,
			Raw:    summarize(string(payload)),
			Detail: "response is not a task envelope",
			Err:    err,
		}
	}
	if isNull(reply.Result) {
		if msg := strings.TrimSpace(reply.Error); msg != "" {
			return nil, &TransportError{Kind: KindRemoteRejected, URL: url, Status: resp.StatusCode, Body: truncate(string(payload), bodyLimit), Detail: msg}
		}
		return nil, &TransportError{
			Kind:   KindMalformedResponse,
			URL:    url,
			Status: resp.StatusCode,
			Raw:    summarize(string(payload)),
			Detail: "response missing result",
		}
	}
	return reply.Result, nil
}

func classifyTransport(parent, call context.Context, url string, timeout time.Duration, err error) *TransportError {
	switch {
	case parent.Err() != nil:
		return contextError(parent, url, parent.Err(), 0)
	case errors.Is(call.Err(), context.DeadlineExceeded):
		return &TransportError{Kind: KindTimeout, URL: url, Detail: fmt.Sprintf("no response within %s", timeout), Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: KindTimeout, URL: url, Detail: fmt.Sprintf("no response within %s", timeout), Err: err}
	}
	return &TransportError{Kind: KindUnreachable, URL: url, Err: err}
}

func contextError(ctx context.Context, url string, err error, attempts int) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, URL: url, Detail: "run deadline exceeded", Err: err, Attempts: attempts}
	}
	return &TransportError{Kind: KindCanceled, URL: url, Detail: "run canceled", Err: err, Attempts: attempts}
}

func workerErrorMessage(payload []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		return truncate(body.Error, snippetLimit)
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (c *Client) retryAttempts() int {
	if c == nil || c.policy.MaxAttempts <= 0 {
		return 1
	}
	return c.policy.MaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err *TransportError, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	switch err.Kind {
	case KindTimeout, KindUnreachable:
		return c.backoffDelay(attempt), true
	case KindRemoteRejected:
		switch {
		case err.Status == http.StatusRequestTimeout,
			err.Status == http.StatusTooManyRequests,
			err.Status >= http.StatusInternalServerError:
			if err.RetryAfter > 0 {
				return c.capDelay(err.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		}
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.policy.BaseDelay
	if base < 0 {
		return 0
	}
	if base == 0 {
		base = defaultRetryBaseDelay
	}
	maxDelay := c.maxDelay()
	if attempt <= 0 {
		attempt = 1
	}
	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) maxDelay() time.Duration {
	if c.policy.MaxDelay > 0 {
		return c.policy.MaxDelay
	}
	return defaultRetryMaxDelay
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := c.maxDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
