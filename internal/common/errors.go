// Package common defines sentinel errors shared by the storage, service and
// front-end layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrStorage  = errors.New("storage operation failed")

	// Content store errors.
	ErrContentCorrupt = errors.New("content missing or corrupt")

	// Lifecycle errors. All of them match ErrInvalidState.
	ErrInvalidState      = errors.New("invalid state")
	ErrAlreadyStarted    = fmt.Errorf("%w: already started", ErrInvalidState)
	ErrNotStarted        = fmt.Errorf("%w: not started", ErrInvalidState)
	ErrAlreadyCompleted  = fmt.Errorf("%w: already completed", ErrInvalidState)
	ErrLifecycleDisabled = fmt.Errorf("%w: kind has no lifecycle", ErrInvalidState)

	// Validation errors (malformed user input, bad config values).
	ErrInvalidInput = errors.New("invalid input")
)

// StorageError wraps err so that it matches ErrStorage while keeping the
// causing message. A nil err yields nil.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
