package leasing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// PaymentReceivedEvent is raised when a payment is recorded on a lease account
type PaymentReceivedEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID       `json:"payment_id"`
	LeaseID    uuid.UUID       `json:"lease_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	ReceivedAt time.Time       `json:"received_at"`
}

// EventType returns the event type name
func (e *PaymentReceivedEvent) EventType() string {
	return "PaymentReceived"
}

// NewPaymentReceivedEvent creates a new PaymentReceivedEvent
func NewPaymentReceivedEvent(p *Payment) *PaymentReceivedEvent {
	return &PaymentReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentReceived", "Payment", p.ID),
		PaymentID:       p.ID,
		LeaseID:         p.LeaseID,
		Amount:          p.Amount,
		Method:          p.Method,
		ReceivedAt:      p.ReceivedAt,
	}
}

// PaymentAppliedEvent is raised when part of a payment is allocated to an invoice
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID       `json:"payment_id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	InvoiceSettled bool            `json:"invoice_settled"`
}

// EventType returns the event type name
func (e *PaymentAppliedEvent) EventType() string {
	return "PaymentApplied"
}

// NewPaymentAppliedEvent creates a new PaymentAppliedEvent
func NewPaymentAppliedEvent(app *PaymentApplication, settled bool) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentApplied", "Payment", app.PaymentID),
		PaymentID:       app.PaymentID,
		InvoiceID:       app.InvoiceID,
		Amount:          app.Amount,
		InvoiceSettled:  settled,
	}
}
