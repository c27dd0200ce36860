package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a record is missing its natural key
	// or otherwise cannot be addressed by the store.
	ErrInvalidInput = errors.New("invalid input")
)
