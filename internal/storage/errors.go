package storage

import "errors"

var (
	// ErrDuplicateKey means a record with the same id was already appended.
	// Replaying a source is safe: duplicates are rejected, never overwritten.
	ErrDuplicateKey = errors.New("duplicate record id")

	// ErrInvalidInput wraps malformed queries and rejected writes that are
	// not record validation failures.
	ErrInvalidInput = errors.New("invalid input")
)
