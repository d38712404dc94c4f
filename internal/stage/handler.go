package stage

import (
	"context"
	"encoding/json"
	"time"

	"screener/internal/runstate"
	"screener/internal/taskclient"
)

// Handler describes the contract the workflow executor needs from each stage.
// Execute writes only the stage's own output slot (and warnings) and returns
// nil or a *runstate.StageError.
type Handler interface {
	Name() runstate.StageName
	Execute(context.Context, *runstate.State) error
	HealthCheck(context.Context) Health
}

// Caller is the slice of the task client the stage adapters depend on.
type Caller interface {
	Discoverer
	Send(ctx context.Context, url string, env taskclient.Envelope, timeout time.Duration) (json.RawMessage, error)
}
