package notifications

import (
	"errors"
	"fmt"
)

// ErrTransientFailure marks a delivery failure worth retrying.
var ErrTransientFailure = errors.New("transient delivery failure")

// Queue errors.
var (
	ErrQueueFull    = errors.New("notification queue is full")
	ErrQueueStopped = errors.New("notification queue is stopped")
)

// Transient wraps err so that errors.Is(err, ErrTransientFailure) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransientFailure, err)
}
