package candidates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Resume is one opaque submitted record. The orchestrator never interprets it
// beyond extracting an identifier; it is forwarded verbatim to the parse worker.
type Resume struct {
	raw json.RawMessage
}

// NewResume wraps a raw JSON value.
func NewResume(raw json.RawMessage) Resume {
	return Resume{raw: append(json.RawMessage(nil), raw...)}
}

// DecodeResumes decodes a JSON array into resumes. A null value yields an
// error so callers can distinguish a missing field from an empty list.
func DecodeResumes(raw json.RawMessage) ([]Resume, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.New("resumes missing")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("resumes must be an array: %w", err)
	}
	out := make([]Resume, 0, len(items))
	for _, item := range items {
		out = append(out, NewResume(item))
	}
	return out, nil
}

// MarshalJSON emits the wrapped record unchanged.
func (r Resume) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.raw, nil
}

// UnmarshalJSON keeps a copy of the raw record.
func (r *Resume) UnmarshalJSON(data []byte) error {
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Raw returns the record as submitted.
func (r Resume) Raw() json.RawMessage {
	return r.raw
}

// RecordID derives a stable identifier for the record: its "id" field, then
// its "name" field, then a positional fallback. Identifiers are restricted to
// characters safe for use inside a worker task id.
func (r Resume) RecordID(index int) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.raw, &fields); err == nil {
		for _, key := range []string{"id", "name"} {
			if id := scalarString(fields[key]); id != "" {
				return sanitizeID(id)
			}
		}
	}
	return "r" + strconv.Itoa(index)
}

func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
