package runstate

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"screener/internal/candidates"
)

// State is the record threaded through one run.
type State struct {
	mu sync.RWMutex

	id       string
	jobTitle string
	inputs   []candidates.Resume

	parsed    []candidates.Profile
	ranked    []candidates.Ranked
	scheduled []candidates.Interview
	completed map[StageName]bool

	phase    Phase
	status   string
	warnings []Warning
	failure  *StageError

	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

// New creates a pending run for the given inputs.
func New(id, jobTitle string, inputs []candidates.Resume) *State {
	now := time.Now().UTC()
	return &State{
		id:        id,
		jobTitle:  jobTitle,
		inputs:    slices.Clone(inputs),
		completed: make(map[StageName]bool, len(Stages)),
		phase:     PhasePending,
		createdAt: now,
		updatedAt: now,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *State) ID() string { return s.id }

func (s *State) JobTitle() string { return s.jobTitle }

// Inputs returns the submitted records in order.
func (s *State) Inputs() []candidates.Resume {
	return slices.Clone(s.inputs)
}

func (s *State) Parsed() []candidates.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.parsed)
}

func (s *State) Ranked() []candidates.Ranked {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ranked)
}

func (s *State) Scheduled() []candidates.Interview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.scheduled)
}

func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *State) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Terminal reports whether the run has completed or failed.
func (s *State) Terminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase.Terminal()
}

// Completed reports whether the named stage produced its output.
func (s *State) Completed(stage StageName) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed[stage]
}

func (s *State) Warnings() []Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.warnings)
}

// Failure returns the stage error that ended the run, if any.
func (s *State) Failure() *StageError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure
}

// SetParsed stores the parse output. Nil is stored as an empty list.
func (s *State) SetParsed(records []candidates.Profile) error {
	return s.writeOutput(StageParse, func() {
		s.parsed = nonNil(records)
	})
}

// SetRanked stores the match output.
func (s *State) SetRanked(records []candidates.Ranked) error {
	return s.writeOutput(StageMatch, func() {
		s.ranked = nonNil(records)
	})
}

// SetScheduled stores the schedule output.
func (s *State) SetScheduled(records []candidates.Interview) error {
	return s.writeOutput(StageSchedule, func() {
		s.scheduled = nonNil(records)
	})
}

// AddWarnings appends non-fatal findings.
func (s *State) AddWarnings(warnings ...Warning) error {
	if len(warnings) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return ErrTerminal
	}
	s.warnings = append(s.warnings, warnings...)
	s.updatedAt = s.now()
	return nil
}

// Transition moves the run to next and records its status label. Each call
// is one transition, so the status changes exactly once per move.
func (s *State) Transition(next Phase, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return ErrTerminal
	}
	if next == PhaseFailed {
		return fmt.Errorf("%w: use Fail to enter %s", ErrIllegalTransition, next)
	}
	if !s.phase.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.phase, next)
	}
	s.phase = next
	s.status = status
	s.updatedAt = s.now()
	return nil
}

// Fail moves the run to the failed phase, keeping prior stage outputs.
func (s *State) Fail(cause *StageError, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return ErrTerminal
	}
	if !s.phase.CanTransition(PhaseFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.phase, PhaseFailed)
	}
	s.phase = PhaseFailed
	s.status = status
	s.failure = cause
	s.updatedAt = s.now()
	return nil
}

func (s *State) writeOutput(stage StageName, write func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return ErrTerminal
	}
	if s.phase != stage.Phase() {
		return fmt.Errorf("%w: %s output during %s", ErrWrongPhase, stage, s.phase)
	}
	write()
	s.completed[stage] = true
	s.updatedAt = s.now()
	return nil
}

func nonNil[T any](records []T) []T {
	if records == nil {
		return []T{}
	}
	return slices.Clone(records)
}
