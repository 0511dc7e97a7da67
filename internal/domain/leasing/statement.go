package leasing

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatementEntryKind distinguishes ledger lines from payment allocations.
type StatementEntryKind string

const (
	StatementEntryCharge  StatementEntryKind = "charge"
	StatementEntryPayment StatementEntryKind = "payment"
)

// StatementEntry is one row of the account statement. Amount is signed:
// charges add to the balance, payment applications subtract from it.
type StatementEntry struct {
	Kind           StatementEntryKind
	OccurredAt     time.Time
	Description    string
	Amount         decimal.Decimal
	RunningBalance decimal.Decimal
	ChargeID       *uuid.UUID
	ChargeType     *ChargeType
	ChargeStatus   *ChargeStatus
	PaymentID      *uuid.UUID
	InvoiceNumber  *string
}

// StatementFilter narrows the statement replay. Filters restrict which
// charge rows appear; payment applications are filtered by date only, since
// an allocation has no type or status of its own.
type StatementFilter struct {
	From     *time.Time
	To       *time.Time
	Types    []ChargeType
	Statuses []ChargeStatus
}

func (f StatementFilter) matchCharge(c *Charge) bool {
	if !f.inRange(c.CreatedAt) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, c.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, c.Status) {
		return false
	}
	return true
}

func (f StatementFilter) inRange(t time.Time) bool {
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	if f.To != nil && t.After(*f.To) {
		return false
	}
	return true
}

// BuildStatement replays charges and payment applications in creation order
// and projects the running balance. The final balance must equal the sum of
// all charges minus the sum of all applications; the projection is the
// conservation check for the whole ledger.
func BuildStatement(charges []*Charge, applications []*PaymentApplication, filter StatementFilter) []StatementEntry {
	entries := make([]StatementEntry, 0, len(charges)+len(applications))

	for _, c := range charges {
		if !filter.matchCharge(c) {
			continue
		}
		chargeID := c.ID
		chargeType := c.Type
		chargeStatus := c.Status
		entries = append(entries, StatementEntry{
			Kind:          StatementEntryCharge,
			OccurredAt:    c.CreatedAt,
			Description:   chargeDescription(c),
			Amount:        c.TotalAmount,
			ChargeID:      &chargeID,
			ChargeType:    &chargeType,
			ChargeStatus:  &chargeStatus,
			InvoiceNumber: c.InvoiceNumber,
		})
	}

	// Status and type filters describe charges; applying either hides the
	// payment side so the filtered view stays a pure charge listing.
	chargesOnly := len(filter.Types) > 0 || len(filter.Statuses) > 0
	if !chargesOnly {
		for _, app := range applications {
			if !filter.inRange(app.CreatedAt) {
				continue
			}
			paymentID := app.PaymentID
			entries = append(entries, StatementEntry{
				Kind:        StatementEntryPayment,
				OccurredAt:  app.CreatedAt,
				Description: "Payment applied",
				Amount:      app.Amount.Neg(),
				PaymentID:   &paymentID,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			// Charges before payments on identical timestamps, so a
			// same-instant payment never drives the balance negative.
			return entries[i].Kind == StatementEntryCharge && entries[j].Kind == StatementEntryPayment
		}
		return entries[i].OccurredAt.Before(entries[j].OccurredAt)
	})

	balance := decimal.Zero
	for i := range entries {
		balance = balance.Add(entries[i].Amount)
		entries[i].RunningBalance = balance
	}
	return entries
}

func chargeDescription(c *Charge) string {
	desc := c.Type.String()
	switch c.Type {
	case ChargeTypeRental:
		desc = "Monthly rental"
	case ChargeTypeSalik:
		desc = "Salik tolls"
	case ChargeTypeMileage:
		desc = "Excess mileage"
	case ChargeTypeLateFee:
		desc = "Late payment fee"
	case ChargeTypeFine:
		desc = "Traffic fine"
	case ChargeTypeRefund:
		desc = "Refund"
	case ChargeTypeCreditNote:
		desc = "Credit note"
		if c.CreditNoteNumber != nil {
			desc = "Credit note " + *c.CreditNoteNumber
		}
	case ChargeTypeVAT:
		desc = "VAT"
	}
	if c.Comment != "" {
		desc += " - " + c.Comment
	}
	return desc
}

func containsType(types []ChargeType, t ChargeType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []ChargeStatus, s ChargeStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// PeriodStatus classifies a billing period for the periods view.
type PeriodStatus string

const (
	PeriodStatusUpcoming      PeriodStatus = "upcoming"
	PeriodStatusCurrent       PeriodStatus = "current"
	PeriodStatusInvoiced      PeriodStatus = "invoiced"
	PeriodStatusInvoiceDue    PeriodStatus = "invoice_due"
	PeriodStatusMissedInvoice PeriodStatus = "missed_invoice"
	PeriodStatusOverdue       PeriodStatus = "overdue"
	PeriodStatusPaid          PeriodStatus = "paid"
)

// ClassifyPeriod derives a period's status at read time. Nothing is stored;
// the classification moves on its own as today's date advances. The invoice
// for a period falls due on the period start, with graceDays of slack before
// it counts as overdue or missed.
func ClassifyPeriod(p Period, hasInvoice bool, balanceDue decimal.Decimal, now time.Time, graceDays int, epsilon decimal.Decimal) PeriodStatus {
	today := civilDate(now)
	due := p.Start
	graceEnd := due.AddDate(0, 0, graceDays)
	unpaid := hasInvoice && balanceDue.GreaterThan(epsilon)

	switch {
	case hasInvoice && !unpaid:
		return PeriodStatusPaid
	case unpaid && today.After(graceEnd):
		return PeriodStatusOverdue
	case !hasInvoice && today.After(graceEnd):
		return PeriodStatusMissedInvoice
	case unpaid && !today.Before(due):
		return PeriodStatusInvoiceDue
	case hasInvoice:
		return PeriodStatusInvoiced
	case today.Before(due):
		return PeriodStatusUpcoming
	default:
		return PeriodStatusCurrent
	}
}
