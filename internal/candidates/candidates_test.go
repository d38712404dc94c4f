package candidates_test

import (
	"encoding/json"
	"testing"
	"time"

	"screener/internal/candidates"
)

func TestDecodeResumesKeepsOrderAndRawRecords(t *testing.T) {
	resumes, err := candidates.DecodeResumes(json.RawMessage(`[{"id":"r1","text":"a"},{"name":"Ada Lovelace"},"plain text resume",{"id":7}]`))
	if err != nil {
		t.Fatalf("DecodeResumes returned error: %v", err)
	}
	if len(resumes) != 4 {
		t.Fatalf("expected 4 resumes, got %d", len(resumes))
	}
	want := []string{"r1", "Ada_Lovelace", "r2", "7"}
	for i, resume := range resumes {
		if got := resume.RecordID(i); got != want[i] {
			t.Fatalf("RecordID(%d) = %q, want %q", i, got, want[i])
		}
	}
	encoded, err := json.Marshal(resumes[0])
	if err != nil {
		t.Fatalf("marshal resume: %v", err)
	}
	if string(encoded) != `{"id":"r1","text":"a"}` {
		t.Fatalf("resume should be forwarded verbatim, got %s", encoded)
	}
}

func TestDecodeResumesRejectsMissingOrNonArray(t *testing.T) {
	for _, raw := range []string{``, `null`, `{"id":"r1"}`, `"r1"`} {
		if _, err := candidates.DecodeResumes(json.RawMessage(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	empty, err := candidates.DecodeResumes(json.RawMessage(`[]`))
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v %v", empty, err)
	}
}

func TestInterviewTime(t *testing.T) {
	slot := candidates.Interview{InterviewTime: "2024-01-02 09:00"}
	got, err := slot.Time()
	if err != nil {
		t.Fatalf("Time returned error: %v", err)
	}
	if want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("unexpected time: %s", got)
	}
	if _, err := (candidates.Interview{InterviewTime: "tomorrow 9am"}).Time(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestScoreRoundsFractionalValues(t *testing.T) {
	var payload struct {
		A candidates.Score `json:"a"`
		B candidates.Score `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":87.5,"b":90}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A != 88 || payload.B != 90 {
		t.Fatalf("unexpected scores: %d %d", payload.A, payload.B)
	}
	if err := json.Unmarshal([]byte(`{"a":"high"}`), &payload); err == nil {
		t.Fatal("expected error for non-numeric score")
	}
}

func TestClampScore(t *testing.T) {
	if candidates.ClampScore(-4) != 0 || candidates.ClampScore(140) != 100 || candidates.ClampScore(55) != 55 {
		t.Fatal("unexpected clamp result")
	}
}
