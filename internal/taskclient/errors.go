package taskclient

import (
	"fmt"
	"strings"
	"time"

	"screener/internal/services"
)

// Kind classifies a failed worker call.
type Kind string

const (
	KindTimeout           Kind = "timeout"
	KindRemoteRejected    Kind = "remote_rejected"
	KindMalformedResponse Kind = "malformed_response"
	KindUnreachable       Kind = "unreachable"
	KindCanceled          Kind = "canceled"
)

// TransportError is the only error type Send returns.
type TransportError struct {
	Kind       Kind
	URL        string
	Status     int
	Body       string
	Detail     string
	Raw        string
	RetryAfter time.Duration
	Attempts   int
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "worker call %s: %s", e.URL, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (http %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is maps transport kinds onto the shared service markers so callers can
// classify failures without importing this package.
func (e *TransportError) Is(target error) bool {
	switch target {
	case services.ErrTimeout:
		return e.Kind == KindTimeout
	case services.ErrRemote:
		return e.Kind == KindRemoteRejected
	case services.ErrMalformed:
		return e.Kind == KindMalformedResponse
	case services.ErrTransient:
		return e.Kind == KindUnreachable
	default:
		return false
	}
}

// Message returns the most useful single-line description for callers that
// surface the failure to users.
func (e *TransportError) Message() string {
	switch {
	case e.Kind == KindRemoteRejected && e.Detail != "":
		return fmt.Sprintf("worker returned http %d: %s", e.Status, e.Detail)
	case e.Kind == KindRemoteRejected:
		return fmt.Sprintf("worker returned http %d", e.Status)
	case e.Detail != "":
		return e.Detail
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}

func summarize(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	return truncate(clean, snippetLimit)
}
