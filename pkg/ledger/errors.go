package ledger

import "errors"

var (
	// ErrUnavailable is returned when the ledger backend cannot be reached.
	ErrUnavailable = errors.New("ledger unavailable")

	// ErrNilRecord indicates an empty record was submitted.
	ErrNilRecord = errors.New("nil ledger record")
)
