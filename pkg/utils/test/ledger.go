package testutils

import (
	"context"
	"sync"

	"github.com/neargravity/gravity/pkg/ledger"
)

// MockLedger is a test ledger that records submissions.
type MockLedger struct {
	mu sync.Mutex

	// Records accumulates every submitted record.
	Records []ledger.Record

	// Fail causes Submit to return ledger.ErrUnavailable.
	Fail bool
}

func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

func (m *MockLedger) Submit(_ context.Context, rec ledger.Record) (ledger.Receipt, error) {
	if rec.KeyPrefix == "" && rec.Identifier == "" {
		return ledger.Receipt{}, ledger.ErrNilRecord
	}
	if m.Fail {
		return ledger.Receipt{}, ledger.ErrUnavailable
	}

	m.mu.Lock()
	m.Records = append(m.Records, rec)
	m.mu.Unlock()

	return ledger.Receipt{
		Reference: ledger.StorageKey(rec.KeyPrefix, rec.Identifier),
		Success:   true,
	}, nil
}

func (m *MockLedger) HealthCheck(_ context.Context) bool {
	return !m.Fail
}

func (m *MockLedger) Close() error {
	return nil
}

// SubmissionCount returns the number of accepted submissions.
func (m *MockLedger) SubmissionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}
