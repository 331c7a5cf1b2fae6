package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrParse matches every error returned by Parse.
var ErrParse = errors.New("feed parse failed")

// ParseError describes why a feed snapshot was rejected. Index is the
// offending element, or -1 when the document as a whole is malformed.
type ParseError struct {
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("parse feed: entry %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// Parse decodes a complete feed snapshot into entries in arrival order.
// The top-level value must be a JSON array of entry objects with nothing
// after it; any violation yields a *ParseError and no entries.
func Parse(raw []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &ParseError{Index: -1, Err: errors.New("empty document")}
	}
	if !utf8.Valid(trimmed) {
		return nil, &ParseError{Index: -1, Err: errors.New("feed is not valid UTF-8")}
	}
	if trimmed[0] != '[' {
		return nil, &ParseError{Index: -1, Err: errors.New("top-level value must be an array")}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var elements []json.RawMessage
	if err := dec.Decode(&elements); err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Index: -1, Err: errors.New("unexpected data after array")}
	}

	entries := make([]Entry, 0, len(elements))
	for i, element := range elements {
		var entry Entry
		if err := json.Unmarshal(element, &entry); err != nil {
			return nil, &ParseError{Index: i, Err: err}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
