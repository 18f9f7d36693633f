package services

import "errors"

var (
	// ErrInvalidInput is wrapped by every rejection of malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSearchNotMutable is returned for content writes on archived or deleted searches.
	ErrSearchNotMutable = errors.New("search is archived or deleted")
	// ErrVersionNotIncreasing is returned when a schema version is not above the latest recorded one.
	ErrVersionNotIncreasing = errors.New("schema version must be greater than the latest recorded version")
)
