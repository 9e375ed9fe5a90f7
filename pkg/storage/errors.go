package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable marks a failed read or write against the backing database.
	// The poll loop treats it as transient.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound is returned by projection reads for a missing row.
	ErrNotFound = errors.New("not found")
)

// Unavailable wraps err so that errors.Is(result, ErrStorageUnavailable) holds.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
