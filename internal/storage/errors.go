package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key already
	// exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVersionConflict is returned by SaveState when the portfolio's
	// version stamp does not match the persisted row: a concurrent writer
	// got there first and the caller must reload and retry.
	ErrVersionConflict = errors.New("portfolio version conflict")
)
