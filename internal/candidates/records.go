package candidates

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SlotLayout is the wire format of an interview time.
const SlotLayout = "2006-01-02 15:04"

// Profile is a parsed resume as returned by the parse worker.
type Profile struct {
	Name            string   `json:"name"`
	Skills          []string `json:"skills"`
	ExperienceYears float64  `json:"experience_years"`
	Education       string   `json:"education"`
}

// Validate reports whether the profile carries the fields matching relies on.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile missing name")
	}
	return nil
}

// Ranked is one candidate scored by the match worker.
type Ranked struct {
	CandidateID string `json:"candidate_id"`
	Score       int    `json:"score"`
	SkillScore  int    `json:"skill_score"`
	RAGScore    int    `json:"rag_score"`
	Reason      string `json:"reason"`
}

// Interview is one scheduled slot returned by the schedule worker.
type Interview struct {
	CandidateID   string `json:"candidate_id"`
	Score         int    `json:"score"`
	InterviewTime string `json:"interview_time"`
	Duration      string `json:"duration"`
}

// Time parses the interview time in the worker's local wall-clock format.
func (i Interview) Time() (time.Time, error) {
	t, err := time.Parse(SlotLayout, strings.TrimSpace(i.InterviewTime))
	if err != nil {
		return time.Time{}, fmt.Errorf("interview_time %q: %w", i.InterviewTime, err)
	}
	return t, nil
}

// ClampScore bounds a score to the 0..100 range.
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// Score accepts integer or fractional JSON numbers and rounds the latter.
// Workers backed by language models occasionally emit 87.5 where 88 is meant.
type Score int

func (s *Score) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	if f < 0 {
		*s = Score(int(f - 0.5))
		return nil
	}
	*s = Score(int(f + 0.5))
	return nil
}
