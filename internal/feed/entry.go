package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Entry is one subtitle line as published by the mpv companion script.
// Entries are values: copying one copies everything, and nothing edits an
// entry after construction.
type Entry struct {
	Text      string
	StartTime float64
	Timestamp int64
	end       optionalSeconds
}

type optionalSeconds struct {
	value   float64
	present bool
}

// NewEntry builds an entry without an end time.
func NewEntry(text string, startTime float64, timestamp int64) Entry {
	return Entry{Text: text, StartTime: startTime, Timestamp: timestamp}
}

// WithEnd returns a copy of e carrying the given end time.
func (e Entry) WithEnd(endTime float64) Entry {
	e.end = optionalSeconds{value: endTime, present: true}
	return e
}

// End reports the end time in seconds and whether the producer supplied one.
func (e Entry) End() (float64, bool) {
	return e.end.value, e.end.present
}

type wireEntry struct {
	Text      *string          `json:"text"`
	StartTime *float64         `json:"start_time"`
	EndTime   *float64         `json:"end_time,omitempty"`
	Timestamp *json.RawMessage `json:"timestamp"`
}

// MarshalJSON encodes the feed wire shape, omitting end_time when absent.
func (e Entry) MarshalJSON() ([]byte, error) {
	text := e.Text
	start := e.StartTime
	ts := json.RawMessage(strconv.FormatInt(e.Timestamp, 10))
	wire := wireEntry{Text: &text, StartTime: &start, Timestamp: &ts}
	if end, ok := e.End(); ok {
		wire.EndTime = &end
	}
	return json.Marshal(wire)
}

var (
	errNotObject        = errors.New("element must be an object")
	errMissingText      = errors.New("missing required field \"text\"")
	errMissingStart     = errors.New("missing required field \"start_time\"")
	errMissingTimestamp = errors.New("missing required field \"timestamp\"")
)

// UnmarshalJSON decodes and validates a single feed element. Unknown fields
// are ignored and end_time may be absent or null.
func (e *Entry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errNotObject
	}
	var wire wireEntry
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return err
	}
	if wire.Text == nil {
		return errMissingText
	}
	if wire.StartTime == nil {
		return errMissingStart
	}
	if wire.Timestamp == nil {
		return errMissingTimestamp
	}
	ts, err := parseTimestamp(*wire.Timestamp)
	if err != nil {
		return err
	}

	decoded := NewEntry(*wire.Text, *wire.StartTime, ts)
	if wire.EndTime != nil {
		decoded = decoded.WithEnd(*wire.EndTime)
	}
	*e = decoded
	return nil
}

// parseTimestamp accepts only JSON integer tokens; 1.0 and 17e8 are rejected.
func parseTimestamp(raw json.RawMessage) (int64, error) {
	text := string(raw)
	ts, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, errors.New("timestamp must be an integer, got " + text)
	}
	return ts, nil
}
