// Package query turns free-text search input into keyword tokens.
package query

import (
	"strings"
	"unicode/utf8"
)

// Query parameter limits.
const (
	// MaxLength is the maximum accepted query length in bytes.
	MaxLength = 1024
	// DefaultMinKeywordLength drops tokens of two characters or fewer.
	DefaultMinKeywordLength = 3
)

// Options controls tokenization.
type Options struct {
	MinKeywordLength int
	// KeepDuplicates keeps repeated tokens so each occurrence counts separately.
	KeepDuplicates bool
}

// Query is a validated search query with its keywords.
type Query struct {
	text     string
	keywords []string
}

// Parse validates raw query text and extracts lowercase keywords.
// Text is split on whitespace; tokens shorter than MinKeywordLength runes are dropped.
func Parse(text string, opts Options) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, ErrEmpty
	}
	if len(text) > MaxLength {
		return Query{}, ErrTooLong
	}
	return Query{text: text, keywords: Keywords(text, opts)}, nil
}

// Keywords lowercases text and splits it into tokens.
func Keywords(text string, opts Options) []string {
	fields := strings.Fields(strings.ToLower(text))
	keywords := make([]string, 0, len(fields))

	var seen map[string]struct{}
	if !opts.KeepDuplicates {
		seen = make(map[string]struct{}, len(fields))
	}

	for _, f := range fields {
		if utf8.RuneCountInString(f) < opts.MinKeywordLength {
			continue
		}
		if seen != nil {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
		}
		keywords = append(keywords, f)
	}
	return keywords
}

// Text returns the query as received.
func (q *Query) Text() string { return q.text }

// Keywords returns the extracted tokens. May be empty when every token was too short.
func (q *Query) Keywords() []string { return q.keywords }
