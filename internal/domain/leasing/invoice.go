package leasing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is a read-time grouping of ledger charges sharing an invoice id.
// There is no invoice table; the charges themselves carry the invoice
// reference, so the grouping can never drift out of sync with the ledger.
type Invoice struct {
	ID        uuid.UUID
	Number    string
	LeaseID   uuid.UUID
	PeriodKey string
	Charges   []*Charge
}

// Subtotal sums the positive member charges, excluding the VAT line and any
// credit-note lines.
func (inv *Invoice) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range inv.Charges {
		if c.Type == ChargeTypeVAT || c.IsCreditLine() {
			continue
		}
		sum = sum.Add(c.TotalAmount)
	}
	return sum
}

// VATAmount sums the invoice's VAT lines.
func (inv *Invoice) VATAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range inv.Charges {
		if c.Type == ChargeTypeVAT {
			sum = sum.Add(c.TotalAmount)
		}
	}
	return sum
}

// CreditTotal sums the credit-note lines. The result is zero or negative.
func (inv *Invoice) CreditTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range inv.Charges {
		if c.IsCreditLine() {
			sum = sum.Add(c.TotalAmount)
		}
	}
	return sum
}

// Total is the gross invoice amount including VAT, before credits and payments.
func (inv *Invoice) Total() decimal.Decimal {
	return inv.Subtotal().Add(inv.VATAmount())
}

// BalanceDue is what remains payable after credit notes and the given sum of
// payment applications.
func (inv *Invoice) BalanceDue(applied decimal.Decimal) decimal.Decimal {
	return inv.Total().Add(inv.CreditTotal()).Sub(applied)
}

// IsSettled reports whether the balance due is within epsilon of zero.
// Epsilon absorbs rounding residue from VAT and partial allocations.
func (inv *Invoice) IsSettled(applied, epsilon decimal.Decimal) bool {
	return inv.BalanceDue(applied).LessThanOrEqual(epsilon)
}

// CreditNoteNumbers returns the distinct credit note numbers on the invoice.
func (inv *Invoice) CreditNoteNumbers() []string {
	seen := make(map[string]struct{})
	var numbers []string
	for _, c := range inv.Charges {
		if c.IsCreditLine() && c.CreditNoteNumber != nil {
			if _, ok := seen[*c.CreditNoteNumber]; !ok {
				seen[*c.CreditNoteNumber] = struct{}{}
				numbers = append(numbers, *c.CreditNoteNumber)
			}
		}
	}
	sort.Strings(numbers)
	return numbers
}

// GroupInvoices folds a charge list into its invoices, ordered by invoice
// number. Charges without an invoice reference are ignored.
func GroupInvoices(charges []*Charge) []*Invoice {
	byID := make(map[uuid.UUID]*Invoice)
	for _, c := range charges {
		if c.InvoiceID == nil {
			continue
		}
		inv, ok := byID[*c.InvoiceID]
		if !ok {
			inv = &Invoice{
				ID:        *c.InvoiceID,
				LeaseID:   c.LeaseID,
				PeriodKey: c.PeriodKey,
			}
			byID[*c.InvoiceID] = inv
		}
		if c.InvoiceNumber != nil && inv.Number == "" {
			inv.Number = *c.InvoiceNumber
		}
		inv.Charges = append(inv.Charges, c)
	}

	invoices := make([]*Invoice, 0, len(byID))
	for _, inv := range byID {
		invoices = append(invoices, inv)
	}
	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].Number < invoices[j].Number
	})
	return invoices
}

// ComputeVAT applies a flat rate to a subtotal, rounding once at the end.
func ComputeVAT(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Round(2)
}
