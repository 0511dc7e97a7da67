package leasing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// ChargeCreatedEvent is raised when a new charge is entered into the ledger
type ChargeCreatedEvent struct {
	shared.BaseDomainEvent
	ChargeID    uuid.UUID       `json:"charge_id"`
	LeaseID     uuid.UUID       `json:"lease_id"`
	PeriodKey   string          `json:"period_key"`
	ChargeType  ChargeType      `json:"charge_type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// EventType returns the event type name
func (e *ChargeCreatedEvent) EventType() string {
	return "ChargeCreated"
}

// NewChargeCreatedEvent creates a new ChargeCreatedEvent
func NewChargeCreatedEvent(c *Charge) *ChargeCreatedEvent {
	return &ChargeCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ChargeCreated", "Charge", c.ID),
		ChargeID:        c.ID,
		LeaseID:         c.LeaseID,
		PeriodKey:       c.PeriodKey,
		ChargeType:      c.Type,
		TotalAmount:     c.TotalAmount,
	}
}

// ChargeUpdatedEvent is raised when a pending charge is edited
type ChargeUpdatedEvent struct {
	shared.BaseDomainEvent
	ChargeID    uuid.UUID       `json:"charge_id"`
	LeaseID     uuid.UUID       `json:"lease_id"`
	ChargeType  ChargeType      `json:"charge_type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Version     int             `json:"version"`
}

// EventType returns the event type name
func (e *ChargeUpdatedEvent) EventType() string {
	return "ChargeUpdated"
}

// NewChargeUpdatedEvent creates a new ChargeUpdatedEvent
func NewChargeUpdatedEvent(c *Charge) *ChargeUpdatedEvent {
	return &ChargeUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ChargeUpdated", "Charge", c.ID),
		ChargeID:        c.ID,
		LeaseID:         c.LeaseID,
		ChargeType:      c.Type,
		TotalAmount:     c.TotalAmount,
		Version:         c.Version,
	}
}

// ChargeDeletedEvent is raised when a pending charge is soft-deleted
type ChargeDeletedEvent struct {
	shared.BaseDomainEvent
	ChargeID uuid.UUID `json:"charge_id"`
	LeaseID  uuid.UUID `json:"lease_id"`
	Reason   string    `json:"reason"`
}

// EventType returns the event type name
func (e *ChargeDeletedEvent) EventType() string {
	return "ChargeDeleted"
}

// NewChargeDeletedEvent creates a new ChargeDeletedEvent
func NewChargeDeletedEvent(c *Charge) *ChargeDeletedEvent {
	return &ChargeDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ChargeDeleted", "Charge", c.ID),
		ChargeID:        c.ID,
		LeaseID:         c.LeaseID,
		Reason:          c.DeleteReason,
	}
}

// InvoiceGeneratedEvent is raised when pending charges are grouped into an invoice
type InvoiceGeneratedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	LeaseID       uuid.UUID       `json:"lease_id"`
	PeriodKey     string          `json:"period_key"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
	Total         decimal.Decimal `json:"total"`
	ChargeCount   int             `json:"charge_count"`
}

// EventType returns the event type name
func (e *InvoiceGeneratedEvent) EventType() string {
	return "InvoiceGenerated"
}

// NewInvoiceGeneratedEvent creates a new InvoiceGeneratedEvent
func NewInvoiceGeneratedEvent(invoiceID uuid.UUID, number string, leaseID uuid.UUID, periodKey string, subtotal, vat decimal.Decimal, count int) *InvoiceGeneratedEvent {
	return &InvoiceGeneratedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceGenerated", "Invoice", invoiceID),
		InvoiceID:       invoiceID,
		InvoiceNumber:   number,
		LeaseID:         leaseID,
		PeriodKey:       periodKey,
		Subtotal:        subtotal,
		VATAmount:       vat,
		Total:           subtotal.Add(vat),
		ChargeCount:     count,
	}
}

// CreditNoteIssuedEvent is raised when a credit note is written against an invoice
type CreditNoteIssuedEvent struct {
	shared.BaseDomainEvent
	CreditNoteNumber string          `json:"credit_note_number"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	LeaseID          uuid.UUID       `json:"lease_id"`
	TotalCredited    decimal.Decimal `json:"total_credited"`
	LineCount        int             `json:"line_count"`
}

// EventType returns the event type name
func (e *CreditNoteIssuedEvent) EventType() string {
	return "CreditNoteIssued"
}

// NewCreditNoteIssuedEvent creates a new CreditNoteIssuedEvent
func NewCreditNoteIssuedEvent(number string, invoiceID, leaseID uuid.UUID, totalCredited decimal.Decimal, lineCount int) *CreditNoteIssuedEvent {
	return &CreditNoteIssuedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("CreditNoteIssued", "CreditNote", invoiceID),
		CreditNoteNumber: number,
		InvoiceID:        invoiceID,
		LeaseID:          leaseID,
		TotalCredited:    totalCredited,
		LineCount:        lineCount,
	}
}
