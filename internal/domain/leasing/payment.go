package leasing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// PaymentMethod represents how a payment was received.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodOnline       PaymentMethod = "online"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCash, PaymentMethodCard,
		PaymentMethodCheque, PaymentMethodOnline:
		return true
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentStatus represents the allocation state of a payment.
type PaymentStatus string

const (
	PaymentStatusReceived  PaymentStatus = "received"
	PaymentStatusAllocated PaymentStatus = "allocated"
)

// IsValid checks if the payment status is valid
func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusReceived || s == PaymentStatusAllocated
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Payment is money received on a lease account. It carries no invoice
// reference itself; PaymentApplication rows record how it was spread across
// invoices, so a payment can settle several invoices and an invoice can be
// settled by several payments.
type Payment struct {
	shared.AuditedAggregateRoot
	LeaseID     uuid.UUID
	Amount      decimal.Decimal
	Method      PaymentMethod
	Reference   string
	Notes       string
	Status      PaymentStatus
	ReceivedAt  time.Time
	DocumentURL string
}

// NewPaymentParams carries input for recording a received payment.
type NewPaymentParams struct {
	LeaseID    uuid.UUID
	Amount     decimal.Decimal
	Method     PaymentMethod
	Reference  string
	Notes      string
	ReceivedAt time.Time
}

// NewPayment records a received payment.
func NewPayment(p NewPaymentParams, actorID uuid.UUID) (*Payment, error) {
	if p.LeaseID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "lease id is required")
	}
	if !p.Amount.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeValidation, "payment amount must be positive")
	}
	if !p.Method.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "invalid payment method: "+p.Method.String())
	}
	receivedAt := p.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	pay := &Payment{
		AuditedAggregateRoot: shared.NewAuditedAggregateRoot(actorID),
		LeaseID:              p.LeaseID,
		Amount:               p.Amount.Round(2),
		Method:               p.Method,
		Reference:            strings.TrimSpace(p.Reference),
		Notes:                strings.TrimSpace(p.Notes),
		Status:               PaymentStatusReceived,
		ReceivedAt:           receivedAt,
	}

	pay.AddDomainEvent(NewPaymentReceivedEvent(pay))
	return pay, nil
}

// Remaining returns the unallocated remainder given the sum already applied.
func (p *Payment) Remaining(applied decimal.Decimal) decimal.Decimal {
	return p.Amount.Sub(applied)
}

// RefreshStatus recomputes the allocation status from the applied sum.
func (p *Payment) RefreshStatus(applied decimal.Decimal) {
	if p.Remaining(applied).LessThanOrEqual(decimal.Zero) {
		p.Status = PaymentStatusAllocated
	} else {
		p.Status = PaymentStatusReceived
	}
}

// PaymentApplication allocates part of a payment to one invoice. Rows are
// append-only; the ledger's balances are always derived by summing them.
type PaymentApplication struct {
	shared.BaseEntity
	PaymentID uuid.UUID
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	AppliedAt time.Time
	AppliedBy *uuid.UUID
}

// NewPaymentApplication allocates amount of the given payment to an invoice.
func NewPaymentApplication(paymentID, invoiceID uuid.UUID, amount decimal.Decimal, actorID uuid.UUID) (*PaymentApplication, error) {
	if paymentID == uuid.Nil || invoiceID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "payment id and invoice id are required")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeValidation, "application amount must be positive")
	}
	app := &PaymentApplication{
		BaseEntity: shared.NewBaseEntity(),
		PaymentID:  paymentID,
		InvoiceID:  invoiceID,
		Amount:     amount.Round(2),
		AppliedAt:  time.Now(),
	}
	if actorID != uuid.Nil {
		app.AppliedBy = &actorID
	}
	return app, nil
}

// ValidateApplication checks an allocation against both bounds: the
// payment's unallocated remainder and the invoice's outstanding balance.
func ValidateApplication(payment *Payment, alreadyApplied, invoiceBalanceDue, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewDomainError(shared.CodeValidation, "application amount must be positive")
	}
	remaining := payment.Remaining(alreadyApplied)
	if amount.GreaterThan(remaining) {
		return shared.NewDomainError(shared.CodeOverApplication,
			"amount "+amount.StringFixed(2)+" exceeds unallocated payment remainder "+remaining.StringFixed(2))
	}
	if amount.GreaterThan(invoiceBalanceDue) {
		return shared.NewDomainError(shared.CodeOverApplication,
			"amount "+amount.StringFixed(2)+" exceeds invoice balance due "+invoiceBalanceDue.StringFixed(2))
	}
	return nil
}
