package vector

import "errors"

var (
	// ErrNotFound is returned when a message is not found in the store.
	ErrNotFound = errors.New("message not found")

	// ErrConnection is returned when an index backend connection fails.
	ErrConnection = errors.New("vector index connection failed")
)
