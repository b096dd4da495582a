package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a conditional update matched no rows,
	// i.e. the record was changed by someone else since it was read.
	ErrConflict = errors.New("record changed concurrently")
)
