package scheduling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// slotWire omits the worker's score; the ranked list is authoritative.
type slotWire struct {
	CandidateID   string `json:"candidate_id"`
	InterviewTime string `json:"interview_time"`
	Duration      string `json:"duration"`
}

var errNoSchedules = errors.New("schedule result missing schedules")

// maxNesting bounds how many layers of string encoding are unwrapped.
const maxNesting = 3

func decodeSlots(raw json.RawMessage) ([]slotWire, error) {
	return decodeNested(raw, 0)
}

func decodeNested(raw json.RawMessage, depth int) ([]slotWire, error) {
	if depth > maxNesting {
		return nil, errors.New("schedule result nested too deeply")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errNoSchedules
	}
	switch trimmed[0] {
	case '[':
		var slots []slotWire
		if err := json.Unmarshal(trimmed, &slots); err != nil {
			return nil, fmt.Errorf("schedule list unreadable: %w", err)
		}
		return slots, nil
	case '{':
		var wrapper struct {
			Schedules json.RawMessage `json:"schedules"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("schedule object unreadable: %w", err)
		}
		return decodeNested(wrapper.Schedules, depth+1)
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, fmt.Errorf("schedule string unreadable: %w", err)
		}
		inner := stripFence(text)
		if inner == "" {
			return nil, errNoSchedules
		}
		return decodeNested(json.RawMessage(inner), depth+1)
	default:
		return nil, fmt.Errorf("schedule result has unexpected shape %q", preview(trimmed))
	}
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[newline+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func preview(raw []byte) string {
	const limit = 32
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
