package entities

import "errors"

// Sentinel errors returned by the graph engine. They are wrapped with context,
// so callers should match with errors.Is.
var (
	// ErrNotFound: a referenced Person or Relationship does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation: the request is structurally impossible (e.g. a self-relationship).
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrConflict: a relationship with the same (from, to, type) triple already exists.
	ErrConflict = errors.New("conflict")
)
