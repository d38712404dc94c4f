package runstate

import (
	"slices"
	"time"

	"screener/internal/candidates"
)

// StageOutputs mirrors the per-stage output slots.
type StageOutputs struct {
	Parsed    []candidates.Profile   `json:"parsed"`
	Ranked    []candidates.Ranked    `json:"ranked"`
	Scheduled []candidates.Interview `json:"scheduled"`
}

// FailureView is the serializable form of a StageError.
type FailureView struct {
	Stage  StageName `json:"stage"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
}

// Snapshot is a point-in-time copy of a run for diagnostics.
type Snapshot struct {
	TaskID          string       `json:"task_id"`
	JobTitle        string       `json:"job_title"`
	Phase           Phase        `json:"phase"`
	Status          string       `json:"status"`
	Terminal        bool         `json:"terminal"`
	InputCount      int          `json:"input_count"`
	CompletedStages []StageName  `json:"completed_stages"`
	StageOutputs    StageOutputs `json:"stage_outputs"`
	Warnings        []Warning    `json:"warnings,omitempty"`
	Failure         *FailureView `json:"failure,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Snapshot copies the state under a read lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		TaskID:     s.id,
		JobTitle:   s.jobTitle,
		Phase:      s.phase,
		Status:     s.status,
		Terminal:   s.phase.Terminal(),
		InputCount: len(s.inputs),
		StageOutputs: StageOutputs{
			Parsed:    slices.Clone(s.parsed),
			Ranked:    slices.Clone(s.ranked),
			Scheduled: slices.Clone(s.scheduled),
		},
		Warnings:  slices.Clone(s.warnings),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	for _, stage := range Stages {
		if s.completed[stage] {
			snap.CompletedStages = append(snap.CompletedStages, stage)
		}
	}
	if s.failure != nil {
		snap.Failure = &FailureView{Stage: s.failure.Stage, Kind: s.failure.Kind, Detail: s.failure.Detail}
	}
	return snap
}
