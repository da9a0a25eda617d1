// Package events holds audit sink implementations.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
)

// ZapAuditLogger implements port.AuditLogger on the structured log
// stream. It is the default sink when no broker is configured.
type ZapAuditLogger struct {
	logger *zap.Logger
}

// NewZapAuditLogger creates a new ZapAuditLogger.
func NewZapAuditLogger(logger *zap.Logger) *ZapAuditLogger {
	return &ZapAuditLogger{logger: logger.Named("audit")}
}

// LogEvent records the event as a structured log line.
func (l *ZapAuditLogger) LogEvent(ctx context.Context, event port.AuditEvent) {
	fields := []zap.Field{
		zap.String("action", event.Action),
	}
	if event.ClaimID != 0 {
		fields = append(fields, zap.Int64("claim_id", event.ClaimID))
	}
	if event.FromStatus != "" {
		fields = append(fields, zap.String("from_status", event.FromStatus))
	}
	if event.ToStatus != "" {
		fields = append(fields, zap.String("to_status", event.ToStatus))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	l.logger.Info("Audit event", fields...)
}

var _ port.AuditLogger = (*ZapAuditLogger)(nil)

// MultiAuditLogger fans one event out to several sinks.
type MultiAuditLogger struct {
	sinks []port.AuditLogger
}

// NewMultiAuditLogger creates a new MultiAuditLogger.
func NewMultiAuditLogger(sinks ...port.AuditLogger) *MultiAuditLogger {
	return &MultiAuditLogger{sinks: sinks}
}

// LogEvent forwards the event to every sink.
func (l *MultiAuditLogger) LogEvent(ctx context.Context, event port.AuditEvent) {
	for _, sink := range l.sinks {
		sink.LogEvent(ctx, event)
	}
}

var _ port.AuditLogger = (*MultiAuditLogger)(nil)
