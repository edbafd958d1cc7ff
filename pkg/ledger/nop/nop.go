// Package nop provides a no-op ledger used for tests and disabled mode.
package nop

import (
	"context"

	"github.com/neargravity/gravity/pkg/ledger"
)

// Ledger is a no-op ledger.
type Ledger struct{}

// NewLedger creates a new no-op ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Submit validates input and returns a synthetic receipt.
func (l *Ledger) Submit(_ context.Context, rec ledger.Record) (ledger.Receipt, error) {
	if rec.KeyPrefix == "" && rec.Identifier == "" {
		return ledger.Receipt{}, ledger.ErrNilRecord
	}
	return ledger.Receipt{
		Reference: ledger.StorageKey(rec.KeyPrefix, rec.Identifier),
		Success:   true,
	}, nil
}

// HealthCheck always reports healthy.
func (l *Ledger) HealthCheck(_ context.Context) bool {
	return true
}

// Close is a no-op.
func (l *Ledger) Close() error {
	return nil
}

// Ensure Ledger implements ledger.Ledger
var _ ledger.Ledger = (*Ledger)(nil)
