package leasing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// CreditNoteLineRequest asks to credit part of one invoiced charge. A zero
// Amount means "credit the full remaining uncredited amount".
type CreditNoteLineRequest struct {
	OriginalChargeID uuid.UUID
	Amount           decimal.Decimal
}

// EligibleForCredit checks whether a charge may be credited at all. VAT
// lines, credit lines, and charges not yet on an invoice are out.
func EligibleForCredit(c *Charge) error {
	if c.Type.IsSynthetic() {
		return shared.NewDomainError(shared.CodeValidation, c.Type.String()+" charges cannot be credited")
	}
	if c.InvoiceID == nil {
		return shared.NewDomainError(shared.CodeInvalidState, "charge "+c.ID.String()+" is not on an invoice")
	}
	if c.Status != ChargeStatusInvoiced && c.Status != ChargeStatusPaid {
		return shared.NewDomainError(shared.CodeInvalidState, "charge "+c.ID.String()+" must be invoiced or paid to be credited")
	}
	return nil
}

// RemainingCreditable returns how much of a charge is still uncredited,
// given the existing credit lines that reference it. Credit lines carry
// negative totals, so the remainder is the sum of original and credits.
func RemainingCreditable(original *Charge, existingCredits []*Charge) decimal.Decimal {
	remaining := original.TotalAmount
	for _, cr := range existingCredits {
		if cr.IsCreditLine() && cr.OriginalChargeID != nil && *cr.OriginalChargeID == original.ID {
			remaining = remaining.Add(cr.TotalAmount)
		}
	}
	return remaining
}

// BuildCreditLines validates the requested credits against the invoice's
// charges and their existing credit lines, then builds the negative
// credit_note rows. Original rows are never mutated; a credit note only ever
// appends to the ledger.
func BuildCreditLines(
	invoice *Invoice,
	requests []CreditNoteLineRequest,
	creditNoteNumber string,
	reason string,
	actorID uuid.UUID,
) ([]*Charge, error) {
	if len(requests) == 0 {
		return nil, shared.NewDomainError(shared.CodeValidation, "credit note requires at least one line")
	}

	byID := make(map[uuid.UUID]*Charge, len(invoice.Charges))
	for _, c := range invoice.Charges {
		byID[c.ID] = c
	}

	seen := make(map[uuid.UUID]struct{}, len(requests))
	lines := make([]*Charge, 0, len(requests))
	total := decimal.Zero
	for _, req := range requests {
		if _, dup := seen[req.OriginalChargeID]; dup {
			return nil, shared.NewDomainError(shared.CodeValidation, "duplicate credit line for charge "+req.OriginalChargeID.String())
		}
		seen[req.OriginalChargeID] = struct{}{}

		original, ok := byID[req.OriginalChargeID]
		if !ok {
			return nil, shared.NewDomainError(shared.CodeValidation, "charge "+req.OriginalChargeID.String()+" does not belong to the invoice")
		}
		if err := EligibleForCredit(original); err != nil {
			return nil, err
		}

		remaining := RemainingCreditable(original, invoice.Charges)
		if !remaining.IsPositive() {
			return nil, shared.NewDomainError(shared.CodeOverCredit, "charge "+original.ID.String()+" is already fully credited")
		}

		amount := req.Amount
		if amount.IsZero() {
			amount = remaining
		}
		if !amount.IsPositive() {
			return nil, shared.NewDomainError(shared.CodeValidation, "credit amount must be positive")
		}
		if amount.GreaterThan(remaining) {
			return nil, shared.NewDomainError(shared.CodeOverCredit,
				"credit "+amount.StringFixed(2)+" exceeds remaining creditable "+remaining.StringFixed(2)+" on charge "+original.ID.String())
		}

		origID := original.ID
		line := &Charge{
			AuditedAggregateRoot: shared.NewAuditedAggregateRoot(actorID),
			LeaseID:              original.LeaseID,
			PeriodKey:            original.PeriodKey,
			Type:                 ChargeTypeCreditNote,
			TotalAmount:          amount.Neg().Round(2),
			Comment:              reason,
			Status:               ChargeStatusInvoiced,
			InvoiceID:            original.InvoiceID,
			InvoiceNumber:        original.InvoiceNumber,
			CreditNoteNumber:     &creditNoteNumber,
			OriginalChargeID:     &origID,
		}
		lines = append(lines, line)
		total = total.Add(line.TotalAmount)
	}

	return lines, nil
}
