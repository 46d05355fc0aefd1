package query

import "errors"

var (
	// ErrEmpty signals a blank query.
	ErrEmpty = errors.New("query is empty")
	// ErrTooLong signals a query above MaxLength.
	ErrTooLong = errors.New("query too long")
)
