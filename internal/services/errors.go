package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout   = errors.New("timeout")
	ErrTransient = errors.New("transient failure")
	ErrRemote    = errors.New("remote worker error")
	ErrMalformed = errors.New("malformed response")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Hint maps a failure onto the next step an operator should take. It feeds the
// error_hint log field.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "worker did not answer in time; check its load or raise workers.request_timeout"
	case errors.Is(err, ErrMalformed):
		return "worker answered with an unexpected payload; check its version"
	case errors.Is(err, ErrRemote):
		return "worker rejected the task; inspect the worker logs"
	default:
		return "check that the worker is running and reachable"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
