// Package ledger provides the audit-trail interface used to record
// verified generations. Ledger failures are never fatal to callers.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Record is a single audit entry.
type Record struct {
	// KeyPrefix groups records (e.g., "semantic").
	KeyPrefix string `json:"key_prefix"`

	// Identifier uniquely names the record within its prefix.
	Identifier string `json:"identifier"`

	// Payload is the free-form record body.
	Payload map[string]any `json:"payload"`
}

// Receipt acknowledges a submitted record.
type Receipt struct {
	Reference string `json:"reference"`
	Success   bool   `json:"success"`
}

// Ledger records audit entries on an external backend.
type Ledger interface {
	// Submit records an entry and returns a receipt.
	Submit(ctx context.Context, rec Record) (Receipt, error)

	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) bool

	// Close releases any resources held by the ledger.
	Close() error
}

// StorageKey derives the stable hex key for a record: the SHA-256 of
// "prefix:identifier".
func StorageKey(prefix, identifier string) string {
	sum := sha256.Sum256([]byte(prefix + ":" + identifier))
	return hex.EncodeToString(sum[:])
}

// EncodePayload serializes a payload to base64-encoded canonical JSON.
func EncodePayload(payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePayload reverses EncodePayload.
func DecodePayload(encoded string) (map[string]any, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	return payload, nil
}
