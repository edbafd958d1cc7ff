// Package kafka implements pkg/ledger's Ledger as a Kafka audit topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/ledger"
)

const (
	// DefaultTopic is the default audit topic.
	DefaultTopic = "gravity.audit"
)

// auditEvent is the wire format written to the audit topic.
type auditEvent struct {
	StorageKey string `json:"storage_key"`
	KeyPrefix  string `json:"key_prefix"`
	Identifier string `json:"identifier"`
	Payload    string `json:"payload"` // base64 JSON
	EmittedAt  int64  `json:"emitted_at"`
}

// Ledger publishes audit records to a Kafka topic.
type Ledger struct {
	writer  *kafka.Writer
	brokers []string
	logger  *zap.Logger
}

// Config holds configuration for the Kafka ledger.
type Config struct {
	// Brokers is the Kafka broker list. Required.
	Brokers []string

	// Topic is the audit topic. Defaults to DefaultTopic if empty.
	Topic string
}

// NewLedger creates a ledger writing to a Kafka audit topic.
func NewLedger(c Config, logger *zap.Logger) (*Ledger, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("%w: no brokers configured", ledger.ErrUnavailable)
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(c.Brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Ledger{
		writer:  writer,
		brokers: c.Brokers,
		logger:  logger,
	}, nil
}

// Submit publishes the record keyed by its storage key.
func (l *Ledger) Submit(ctx context.Context, rec ledger.Record) (ledger.Receipt, error) {
	if rec.KeyPrefix == "" && rec.Identifier == "" {
		return ledger.Receipt{}, ledger.ErrNilRecord
	}

	encoded, err := ledger.EncodePayload(rec.Payload)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}

	key := ledger.StorageKey(rec.KeyPrefix, rec.Identifier)
	event := auditEvent{
		StorageKey: key,
		KeyPrefix:  rec.KeyPrefix,
		Identifier: rec.Identifier,
		Payload:    encoded,
		EmittedAt:  time.Now().UnixMilli(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("%w: marshaling event: %v", ledger.ErrUnavailable, err)
	}

	err = l.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		l.logger.Warn("audit write failed",
			zap.String("storage_key", key),
			zap.Error(err),
		)
		return ledger.Receipt{}, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}

	return ledger.Receipt{Reference: key, Success: true}, nil
}

// HealthCheck dials the first broker.
func (l *Ledger) HealthCheck(ctx context.Context) bool {
	conn, err := kafka.DialContext(ctx, "tcp", l.brokers[0])
	if err != nil {
		return false
	}
	defer conn.Close()
	return true
}

// Close closes the underlying writer.
func (l *Ledger) Close() error {
	return l.writer.Close()
}

// Ensure Ledger implements ledger.Ledger
var _ ledger.Ledger = (*Ledger)(nil)
