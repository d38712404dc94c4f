package runstate

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StageName identifies one pipeline step.
type StageName string

const (
	StageParse    StageName = "parse"
	StageMatch    StageName = "match"
	StageSchedule StageName = "schedule"
)

// Stages lists the pipeline steps in execution order.
var Stages = []StageName{StageParse, StageMatch, StageSchedule}

// Phase is the executor state of a run.
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseParsing    Phase = "parsing"
	PhaseMatching   Phase = "matching"
	PhaseScheduling Phase = "scheduling"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

var transitions = map[Phase][]Phase{
	PhasePending:    {PhaseParsing},
	PhaseParsing:    {PhaseMatching},
	PhaseMatching:   {PhaseScheduling, PhaseFailed},
	PhaseScheduling: {PhaseCompleted, PhaseFailed},
}

var titler = cases.Title(language.English)

// Terminal reports whether no further transitions are allowed.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Label returns the phase as a title-cased word for display.
func (p Phase) Label() string {
	return titler.String(string(p))
}

// CanTransition reports whether next is a legal successor of p.
func (p Phase) CanTransition(next Phase) bool {
	for _, candidate := range transitions[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Phase returns the executor phase in which the stage runs.
func (s StageName) Phase() Phase {
	switch s {
	case StageParse:
		return PhaseParsing
	case StageMatch:
		return PhaseMatching
	case StageSchedule:
		return PhaseScheduling
	default:
		return ""
	}
}

// Label returns the stage as a title-cased word for display.
func (s StageName) Label() string {
	return titler.String(string(s))
}
