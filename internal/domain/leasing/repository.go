package leasing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// ChargeFilter narrows charge queries.
type ChargeFilter struct {
	shared.Filter
	LeaseID        *uuid.UUID
	PeriodKey      *string
	Type           *ChargeType
	Status         *ChargeStatus
	InvoiceID      *uuid.UUID
	FromDate       *time.Time
	ToDate         *time.Time
	IncludeDeleted bool
}

// InvoiceAssignment is the unit of work for turning pending charges into an
// invoice. The repository applies it atomically: every member charge and the
// VAT line land in the same transaction or none do. The VAT amount is
// computed inside the transaction from the charges that survive
// revalidation, never from what the caller read earlier.
type InvoiceAssignment struct {
	LeaseID       uuid.UUID
	PeriodKey     string
	ChargeIDs     []uuid.UUID
	InvoiceID     uuid.UUID
	InvoiceNumber string
	VATRate       decimal.Decimal
	ActorID       uuid.UUID
}

// InvoiceAssignmentResult reports what an invoice generation actually did.
type InvoiceAssignmentResult struct {
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	VATAmount      decimal.Decimal `json:"vat_amount"`
	Total          decimal.Decimal `json:"total"`
	ChargesUpdated int             `json:"charges_updated"`
}

// ChargeRepository persists the flat billing ledger.
type ChargeRepository interface {
	Create(ctx context.Context, charge *Charge) error
	// SaveWithLock persists with optimistic locking on the version column.
	// Returns a CONCURRENCY_CONFLICT domain error when the stored version
	// does not match.
	SaveWithLock(ctx context.Context, charge *Charge) error
	FindByID(ctx context.Context, id uuid.UUID) (*Charge, error)
	FindByLease(ctx context.Context, leaseID uuid.UUID, filter ChargeFilter) ([]*Charge, int64, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Charge, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Charge, error)
	// AssignInvoice locks the cohort, re-validates each charge as pending
	// on the right lease, transitions the survivors, and writes the VAT
	// line, all in one transaction. Already-invoiced charges are skipped;
	// an EMPTY_INVOICE error is returned when none survive.
	AssignInvoice(ctx context.Context, assignment InvoiceAssignment) (*InvoiceAssignmentResult, error)
	// CreateCreditLines appends credit-note rows in one transaction. The
	// invoice's rows are locked and the over-credit bound re-checked inside
	// the transaction; an OVER_CREDIT domain error is returned when a
	// concurrent credit note got there first.
	CreateCreditLines(ctx context.Context, lines []*Charge) error
	SoftDelete(ctx context.Context, charge *Charge) error
	// SumByInvoice returns the signed sum of a given invoice's charge rows.
	SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	// MarkInvoicePaid transitions an invoice's invoiced member charges to
	// paid, stamping the settling payment.
	MarkInvoicePaid(ctx context.Context, invoiceID, paymentID uuid.UUID) error
}

// PaymentFilter narrows payment queries.
type PaymentFilter struct {
	shared.Filter
	LeaseID  *uuid.UUID
	Method   *PaymentMethod
	Status   *PaymentStatus
	FromDate *time.Time
	ToDate   *time.Time
}

// PaymentRepository persists payments and their invoice allocations.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	Save(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByLease(ctx context.Context, leaseID uuid.UUID, filter PaymentFilter) ([]*Payment, int64, error)
	// FindByIDForUpdate loads the payment under a row lock; callers must
	// hold the lock for the duration of an allocation transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindApplicationsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*PaymentApplication, error)
	FindApplicationsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*PaymentApplication, error)
	FindApplicationsByLease(ctx context.Context, leaseID uuid.UUID) ([]*PaymentApplication, error)
	SumAppliedByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
	SumAppliedByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	// Apply inserts one allocation inside a transaction that locks the
	// payment row, re-validates both bounds, updates the payment status,
	// and settles member charges when the invoice balance closes.
	Apply(ctx context.Context, paymentID, invoiceID uuid.UUID, amount decimal.Decimal, actorID uuid.UUID) (*PaymentApplication, error)
}

// SequenceRepository serializes document numbering.
type SequenceRepository interface {
	// Next consumes the next number for the named sequence in its own
	// committed transaction, holding a row lock for the increment only.
	// Concurrent callers never see the same number; a caller whose later
	// work aborts leaves a gap.
	Next(ctx context.Context, name string) (string, error)
	// PreviewNext reads the upcoming number without locking. Advisory;
	// a concurrent Next may consume it first.
	PreviewNext(ctx context.Context, name string) (string, error)
}
