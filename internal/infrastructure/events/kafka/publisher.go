// Package kafka publishes audit events to a Kafka topic for downstream
// consumers (reporting, alerting). Publishing is fire-and-forget and
// never participates in database transactions.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
)

// AuditPublisher implements port.AuditLogger over a Kafka topic.
type AuditPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewAuditPublisher creates a publisher for the given brokers and topic.
func NewAuditPublisher(brokers []string, topic string, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

// LogEvent publishes the event. Failures are logged and dropped; the
// audit trail is best-effort by contract.
func (p *AuditPublisher) LogEvent(ctx context.Context, event port.AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal audit event", zap.Error(err))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Action),
		Value: data,
	})
	if err != nil {
		p.logger.Error("Failed to publish audit event",
			zap.String("action", event.Action),
			zap.Int64("claim_id", event.ClaimID),
			zap.Error(err))
	}
}

// Close flushes and closes the underlying writer.
func (p *AuditPublisher) Close() error {
	return p.writer.Close()
}

var _ port.AuditLogger = (*AuditPublisher)(nil)
