package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity lookup misses.
	ErrNotFound = errors.New("entity not found")

	// ErrParentMissing is returned when saving a child whose parent
	// does not exist.
	ErrParentMissing = errors.New("parent agent not found")

	// ErrUnauthorized is returned when an ownership check fails.
	ErrUnauthorized = errors.New("not owned by current user")
)

// MessageTooLargeError reports a single message that cannot fit a
// chunk document. Unrecoverable: the caller must reduce the message.
type MessageTooLargeError struct {
	Size int
	Max  int
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf("message of %d bytes exceeds chunk capacity of %d bytes", e.Size, e.Max)
}

// IsMessageTooLarge checks for a MessageTooLargeError in the chain.
func IsMessageTooLarge(err error) bool {
	var mtl *MessageTooLargeError
	return errors.As(err, &mtl)
}
