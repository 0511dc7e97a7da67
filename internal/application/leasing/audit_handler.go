package leasing

import (
	"context"

	"go.uber.org/zap"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// BillingAuditLogger records every billing event to the structured log.
// The ledger rows themselves are the audit trail of record; this stream
// exists so operators can follow billing activity without querying the
// database.
type BillingAuditLogger struct {
	logger *zap.Logger
}

// NewBillingAuditLogger creates a new BillingAuditLogger
func NewBillingAuditLogger(logger *zap.Logger) *BillingAuditLogger {
	return &BillingAuditLogger{logger: logger}
}

// Handle logs one billing event.
func (h *BillingAuditLogger) Handle(_ context.Context, event shared.DomainEvent) error {
	h.logger.Info("billing event",
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	)
	return nil
}

// EventTypes returns an empty slice; the audit logger receives all events.
func (h *BillingAuditLogger) EventTypes() []string {
	return nil
}
