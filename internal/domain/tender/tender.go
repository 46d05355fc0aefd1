package tender

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tender is a procurement record fetched from the remote dataset.
// Only title and description are interpreted; the raw object is kept
// so every other field is passed through unchanged.
type Tender struct {
	title       string
	description string
	raw         json.RawMessage
}

// New creates a tender from its text fields. Used where no raw record exists.
func New(title, description string) Tender {
	raw, _ := json.Marshal(map[string]string{"title": title, "description": description})
	return Tender{title: title, description: description, raw: raw}
}

// Title returns the tender title.
func (t *Tender) Title() string { return t.title }

// Description returns the tender description.
func (t *Tender) Description() string { return t.description }

// Content returns the text scanned for keywords: title and description joined by a space.
func (t *Tender) Content() string { return t.title + " " + t.description }

// Raw returns the record exactly as it was received.
func (t *Tender) Raw() json.RawMessage { return t.raw }

// UnmarshalJSON keeps the raw object and extracts title and description.
func (t *Tender) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode tender: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("decode tender: record is null")
	}

	t.title = textField(fields["title"])
	t.description = textField(fields["description"])
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the original record.
func (t Tender) MarshalJSON() ([]byte, error) {
	if len(t.raw) == 0 {
		return []byte("{}"), nil
	}
	return t.raw, nil
}

// textField renders a JSON value as text. Strings are unquoted, null and
// missing values are empty, anything else contributes its JSON text.
func textField(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

// DecodeList parses a JSON array of tender records.
func DecodeList(data []byte) ([]Tender, error) {
	var tenders []Tender
	if err := json.Unmarshal(data, &tenders); err != nil {
		return nil, fmt.Errorf("decode tender list: %w", err)
	}
	if tenders == nil {
		return nil, fmt.Errorf("decode tender list: expected a JSON array")
	}
	return tenders, nil
}
