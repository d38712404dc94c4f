package gateway

import (
	"fmt"

	"screener/internal/runstate"
)

// Kind classifies a gateway failure.
type Kind string

const (
	KindInvalidFormat  Kind = "invalid_format"
	KindPipelineFailed Kind = "pipeline_failed"
	KindConflict       Kind = "conflict"
)

// Error is the only error type Submit returns.
type Error struct {
	Kind    Kind
	TaskID  string
	Stage   runstate.StageName
	Detail  string
	Failure string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindPipelineFailed:
		return fmt.Sprintf("workflow failed at %s: %s", e.Stage, e.Detail)
	case KindConflict:
		return fmt.Sprintf("task %s is already running", e.TaskID)
	default:
		return e.Detail
	}
}

func invalid(detail string) *Error {
	return &Error{Kind: KindInvalidFormat, Detail: detail}
}
