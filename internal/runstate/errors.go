package runstate

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminal is returned by every mutation once the run has finished.
	ErrTerminal = errors.New("run state is terminal")
	// ErrWrongPhase is returned when a stage writes outside its own phase.
	ErrWrongPhase = errors.New("stage output written outside its phase")
	// ErrIllegalTransition is returned for transitions the state machine forbids.
	ErrIllegalTransition = errors.New("illegal phase transition")
)

// Failure kinds carried by StageError.
const (
	KindTimeout           = "timeout"
	KindRemoteRejected    = "remote_rejected"
	KindMalformedResponse = "malformed_response"
	KindUnreachable       = "unreachable"
	KindCanceled          = "canceled"
	KindInvalidResult     = "invalid_result"
	KindInternal          = "internal"
)

// StageError is the failure outcome of a stage that could not produce output.
type StageError struct {
	Stage  StageName
	Kind   string
	Detail string
	Err    error
}

func (e *StageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s stage failed (%s): %s", e.Stage, e.Kind, e.Detail)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Warning records a degraded but non-fatal outcome, such as a dropped record.
type Warning struct {
	Stage  StageName `json:"stage"`
	Record string    `json:"record,omitempty"`
	Detail string    `json:"detail"`
}
