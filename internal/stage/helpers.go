package stage

import (
	"context"
	"errors"
	"fmt"

	"screener/internal/runstate"
	"screener/internal/services"
	"screener/internal/taskclient"
)

// Failure converts any error produced while running a stage into the
// StageError the executor understands. Transport failures keep their kind.
func Failure(name runstate.StageName, err error) *runstate.StageError {
	if err == nil {
		return nil
	}
	var serr *runstate.StageError
	if errors.As(err, &serr) {
		return serr
	}
	var terr *taskclient.TransportError
	if errors.As(err, &terr) {
		return &runstate.StageError{Stage: name, Kind: transportKind(terr.Kind), Detail: terr.Message(), Err: err}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &runstate.StageError{Stage: name, Kind: runstate.KindTimeout, Detail: "run deadline exceeded", Err: err}
	case errors.Is(err, context.Canceled):
		return &runstate.StageError{Stage: name, Kind: runstate.KindCanceled, Detail: "run canceled", Err: err}
	default:
		return &runstate.StageError{Stage: name, Kind: runstate.KindInternal, Detail: err.Error(), Err: err}
	}
}

// InvalidResult builds the failure for a 2xx reply whose result lacks what
// the stage needs.
func InvalidResult(name runstate.StageName, format string, args ...any) *runstate.StageError {
	detail := fmt.Sprintf(format, args...)
	return &runstate.StageError{
		Stage:  name,
		Kind:   runstate.KindInvalidResult,
		Detail: detail,
		Err:    services.Wrap(services.ErrMalformed, string(name), "decode result", detail, nil),
	}
}

func transportKind(kind taskclient.Kind) string {
	switch kind {
	case taskclient.KindTimeout:
		return runstate.KindTimeout
	case taskclient.KindRemoteRejected:
		return runstate.KindRemoteRejected
	case taskclient.KindMalformedResponse:
		return runstate.KindMalformedResponse
	case taskclient.KindCanceled:
		return runstate.KindCanceled
	default:
		return runstate.KindUnreachable
	}
}

// Discoverer is the slice of the task client used for readiness checks.
type Discoverer interface {
	Discover(ctx context.Context, endpoint string) (taskclient.AgentCard, error)
}

// ProbeWorker reports a stage healthy when its worker publishes a capability card.
func ProbeWorker(ctx context.Context, client Discoverer, name runstate.StageName, endpoint string) Health {
	if client == nil {
		return Unhealthy(string(name), "worker client not configured")
	}
	card, err := client.Discover(ctx, endpoint)
	if err != nil {
		return Unhealthy(string(name), err.Error())
	}
	if card.AgentID == "" {
		return Healthy(string(name))
	}
	return Health{Name: string(name), Ready: true, Detail: card.AgentID}
}
