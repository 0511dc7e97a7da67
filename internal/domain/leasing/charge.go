package leasing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// Currency is the single ledger currency. All amounts are AED; the ledger
// has no multi-currency support.
const Currency = "AED"

// ChargeType categorizes a ledger line.
type ChargeType string

const (
	ChargeTypeRental     ChargeType = "rental"
	ChargeTypeSalik      ChargeType = "salik"
	ChargeTypeMileage    ChargeType = "mileage"
	ChargeTypeLateFee    ChargeType = "late_fee"
	ChargeTypeFine       ChargeType = "fine"
	ChargeTypeRefund     ChargeType = "refund"
	ChargeTypeCreditNote ChargeType = "credit_note"
	ChargeTypeVAT        ChargeType = "vat"
)

// IsValid checks if the charge type is valid
func (t ChargeType) IsValid() bool {
	switch t {
	case ChargeTypeRental, ChargeTypeSalik, ChargeTypeMileage, ChargeTypeLateFee,
		ChargeTypeFine, ChargeTypeRefund, ChargeTypeCreditNote, ChargeTypeVAT:
		return true
	}
	return false
}

// RequiresQuantity reports whether the type is priced as quantity times
// unit price. Salik is per toll gate crossing, mileage per excess kilometre.
func (t ChargeType) RequiresQuantity() bool {
	return t == ChargeTypeSalik || t == ChargeTypeMileage
}

// IsSynthetic reports whether lines of this type are written by the system
// rather than entered by an operator.
func (t ChargeType) IsSynthetic() bool {
	return t == ChargeTypeVAT || t == ChargeTypeCreditNote
}

func (t ChargeType) String() string {
	return string(t)
}

// ChargeStatus represents the lifecycle state of a charge.
type ChargeStatus string

const (
	ChargeStatusPending  ChargeStatus = "pending"
	ChargeStatusInvoiced ChargeStatus = "invoiced"
	ChargeStatusPaid     ChargeStatus = "paid"
)

// IsValid checks if the charge status is valid
func (s ChargeStatus) IsValid() bool {
	switch s {
	case ChargeStatusPending, ChargeStatusInvoiced, ChargeStatusPaid:
		return true
	}
	return false
}

func (s ChargeStatus) String() string {
	return string(s)
}

// Charge is a single line in a lease's flat billing ledger. Invoices and
// credit notes are not separate documents; they are groupings of charges
// that share an invoice id, which keeps the ledger itself the single source
// of truth for every balance.
type Charge struct {
	shared.AuditedAggregateRoot
	LeaseID          uuid.UUID
	PeriodKey        string
	Type             ChargeType
	Quantity         *decimal.Decimal
	UnitPrice        *decimal.Decimal
	TotalAmount      decimal.Decimal
	Comment          string
	Status           ChargeStatus
	VATApplicable    bool
	InvoiceID        *uuid.UUID
	InvoiceNumber    *string
	PaymentID        *uuid.UUID
	CreditNoteNumber *string
	OriginalChargeID *uuid.UUID
	DocumentURL      string
	DeleteReason     string
	DeletedAt        *time.Time
}

// NewChargeParams carries operator input for a new ledger line.
type NewChargeParams struct {
	LeaseID       uuid.UUID
	PeriodKey     string
	Type          ChargeType
	Quantity      *decimal.Decimal
	UnitPrice     *decimal.Decimal
	TotalAmount   decimal.Decimal
	Comment       string
	VATApplicable bool
}

// NewCharge creates a pending charge, enforcing the ledger's entry rules.
func NewCharge(p NewChargeParams, actorID uuid.UUID) (*Charge, error) {
	if p.LeaseID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "lease id is required")
	}
	if strings.TrimSpace(p.PeriodKey) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "billing period is required")
	}
	if !p.Type.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "invalid charge type: "+p.Type.String())
	}
	if p.Type.IsSynthetic() {
		return nil, shared.NewDomainError(shared.CodeValidation, p.Type.String()+" charges are system generated and cannot be entered directly")
	}

	total := p.TotalAmount
	if err := validatePricing(p.Type, p.Quantity, p.UnitPrice, &total); err != nil {
		return nil, err
	}
	if total.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidation, "charge amount cannot be zero")
	}
	// Refunds reduce the balance; operators enter the magnitude.
	if p.Type == ChargeTypeRefund && total.IsPositive() {
		total = total.Neg()
	}

	c := &Charge{
		AuditedAggregateRoot: shared.NewAuditedAggregateRoot(actorID),
		LeaseID:              p.LeaseID,
		PeriodKey:            p.PeriodKey,
		Type:                 p.Type,
		Quantity:             p.Quantity,
		UnitPrice:            p.UnitPrice,
		TotalAmount:          total.Round(2),
		Comment:              strings.TrimSpace(p.Comment),
		Status:               ChargeStatusPending,
		VATApplicable:        p.VATApplicable,
	}

	c.AddDomainEvent(NewChargeCreatedEvent(c))
	return c, nil
}

// NewVATCharge builds the synthetic VAT line that invoice generation adds
// alongside the member charges it aggregates.
func NewVATCharge(leaseID uuid.UUID, periodKey string, invoiceID uuid.UUID, invoiceNumber string, amount decimal.Decimal, actorID uuid.UUID) *Charge {
	invID := invoiceID
	invNum := invoiceNumber
	c := &Charge{
		AuditedAggregateRoot: shared.NewAuditedAggregateRoot(actorID),
		LeaseID:              leaseID,
		PeriodKey:            periodKey,
		Type:                 ChargeTypeVAT,
		TotalAmount:          amount.Round(2),
		Comment:              "VAT on invoice " + invoiceNumber,
		Status:               ChargeStatusInvoiced,
		InvoiceID:            &invID,
		InvoiceNumber:        &invNum,
	}
	return c
}

// EditChargeParams carries the mutable fields of a pending charge.
type EditChargeParams struct {
	Type          ChargeType
	Quantity      *decimal.Decimal
	UnitPrice     *decimal.Decimal
	TotalAmount   decimal.Decimal
	Comment       string
	VATApplicable bool
}

// Edit updates a pending charge in place. The period key is immutable once
// set; moving a charge to a different period means deleting and re-entering
// it so the audit trail stays honest.
func (c *Charge) Edit(p EditChargeParams, actorID uuid.UUID) error {
	if c.Status != ChargeStatusPending {
		return shared.NewDomainError(shared.CodeInvalidState, "only pending charges can be edited")
	}
	if !p.Type.IsValid() {
		return shared.NewDomainError(shared.CodeValidation, "invalid charge type: "+p.Type.String())
	}
	if p.Type.IsSynthetic() {
		return shared.NewDomainError(shared.CodeValidation, p.Type.String()+" charges are system generated and cannot be entered directly")
	}

	total := p.TotalAmount
	if err := validatePricing(p.Type, p.Quantity, p.UnitPrice, &total); err != nil {
		return err
	}
	if total.IsZero() {
		return shared.NewDomainError(shared.CodeValidation, "charge amount cannot be zero")
	}
	if p.Type == ChargeTypeRefund && total.IsPositive() {
		total = total.Neg()
	}

	c.Type = p.Type
	c.Quantity = p.Quantity
	c.UnitPrice = p.UnitPrice
	c.TotalAmount = total.Round(2)
	c.Comment = strings.TrimSpace(p.Comment)
	c.VATApplicable = p.VATApplicable
	c.StampUpdatedBy(actorID)
	c.IncrementVersion()

	c.AddDomainEvent(NewChargeUpdatedEvent(c))
	return nil
}

// MarkDeleted soft-deletes a pending charge, recording who and why.
func (c *Charge) MarkDeleted(reason string, actorID uuid.UUID) error {
	if c.Status != ChargeStatusPending {
		return shared.NewDomainError(shared.CodeInvalidState, "only pending charges can be deleted")
	}
	now := time.Now()
	c.DeletedAt = &now
	c.DeleteReason = strings.TrimSpace(reason)
	c.StampUpdatedBy(actorID)
	c.IncrementVersion()

	c.AddDomainEvent(NewChargeDeletedEvent(c))
	return nil
}

// AssignToInvoice moves a pending charge onto an invoice.
func (c *Charge) AssignToInvoice(invoiceID uuid.UUID, invoiceNumber string) error {
	if c.Status != ChargeStatusPending {
		return shared.NewDomainError(shared.CodeInvalidState, "charge "+c.ID.String()+" is not pending")
	}
	if c.InvoiceID != nil {
		return shared.NewDomainError(shared.CodeInvalidState, "charge "+c.ID.String()+" already belongs to an invoice")
	}
	invID := invoiceID
	invNum := invoiceNumber
	c.InvoiceID = &invID
	c.InvoiceNumber = &invNum
	c.Status = ChargeStatusInvoiced
	c.IncrementVersion()
	return nil
}

// MarkPaid transitions an invoiced charge once its invoice is settled.
func (c *Charge) MarkPaid(paymentID uuid.UUID) error {
	if c.Status != ChargeStatusInvoiced {
		return shared.NewDomainError(shared.CodeInvalidState, "only invoiced charges can be marked paid")
	}
	pid := paymentID
	c.PaymentID = &pid
	c.Status = ChargeStatusPaid
	c.IncrementVersion()
	return nil
}

// IsCreditLine reports whether this row is a negative credit-note line
// rather than an original charge.
func (c *Charge) IsCreditLine() bool {
	return c.Type == ChargeTypeCreditNote
}

// IsDeleted reports whether the charge has been soft-deleted.
func (c *Charge) IsDeleted() bool {
	return c.DeletedAt != nil
}

// validatePricing enforces quantity x unit price consistency. When both are
// present they must reproduce the total to two decimal places; when the type
// is quantity-priced both are required and the total is derived from them.
func validatePricing(t ChargeType, qty, unit *decimal.Decimal, total *decimal.Decimal) error {
	if t.RequiresQuantity() {
		if qty == nil || unit == nil {
			return shared.NewDomainError(shared.CodeValidation, t.String()+" charges require quantity and unit price")
		}
	}
	if (qty == nil) != (unit == nil) {
		return shared.NewDomainError(shared.CodeValidation, "quantity and unit price must be provided together")
	}
	if qty == nil {
		return nil
	}
	if !qty.IsPositive() {
		return shared.NewDomainError(shared.CodeValidation, "quantity must be positive")
	}
	derived := qty.Mul(*unit).Round(2)
	if total.IsZero() {
		*total = derived
		return nil
	}
	if !derived.Equal(total.Round(2)) {
		return shared.NewDomainError(shared.CodeValidation, "total amount does not match quantity x unit price")
	}
	return nil
}
