package workflow

import (
	"fmt"
	"strings"

	"screener/internal/runstate"
)

// StatusCompleted is published when every stage has finished.
const StatusCompleted = "Workflow completed"

// StatusLabel returns the label published when the named stage starts.
func StatusLabel(name runstate.StageName) string {
	switch name {
	case runstate.StageParse:
		return "Parsing resumes"
	case runstate.StageMatch:
		return "Matching candidates"
	case runstate.StageSchedule:
		return "Scheduling interviews"
	default:
		return name.Label()
	}
}

// FailureStatus returns the label published when a stage ends the run.
func FailureStatus(serr *runstate.StageError) string {
	if serr == nil {
		return "Workflow failed"
	}
	return fmt.Sprintf("Workflow failed at %s: %s", serr.Stage, serr.Detail)
}

// IsFailureStatus reports whether a published status is a failure label.
func IsFailureStatus(status string) bool {
	return strings.HasPrefix(status, "Workflow failed")
}
