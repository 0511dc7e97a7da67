package leasing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
	"github.com/fleetlease/backend/internal/infrastructure/telemetry"
)

// PaymentService records payments and allocates them across invoices.
type PaymentService struct {
	paymentRepo leasing.PaymentRepository
	chargeRepo  leasing.ChargeRepository
	eventBus    shared.EventPublisher
	policy      BillingPolicy
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo leasing.PaymentRepository,
	chargeRepo leasing.ChargeRepository,
	eventBus shared.EventPublisher,
	policy BillingPolicy,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		chargeRepo:  chargeRepo,
		eventBus:    eventBus,
		policy:      policy,
	}
}

// RecordPaymentRequest represents a request to record a received payment
type RecordPaymentRequest struct {
	LeaseID    uuid.UUID
	Amount     decimal.Decimal
	Method     leasing.PaymentMethod
	Reference  string
	Notes      string
	ReceivedAt time.Time
}

// RecordPayment enters a received payment on the lease account.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest, actor Actor) (*leasing.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()

	if err := actor.requireMutate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payment, err := leasing.NewPayment(leasing.NewPaymentParams{
		LeaseID:    req.LeaseID,
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  req.Reference,
		Notes:      req.Notes,
		ReceivedAt: req.ReceivedAt,
	}, actor.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		"lease_id", req.LeaseID.String(),
		"amount", payment.Amount.String(),
		"method", string(payment.Method),
	)

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	if s.eventBus != nil {
		_ = s.eventBus.Publish(ctx, payment.GetDomainEvents()...)
		payment.ClearDomainEvents()
	}
	return payment, nil
}

// ApplyPaymentRequest represents a request to allocate part of a payment
type ApplyPaymentRequest struct {
	PaymentID uuid.UUID
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
}

// ApplyPaymentResult reports the outcome of one allocation
type ApplyPaymentResult struct {
	Application      *leasing.PaymentApplication `json:"application"`
	InvoiceBalance   decimal.Decimal             `json:"invoice_balance"`
	PaymentRemaining decimal.Decimal             `json:"payment_remaining"`
	InvoiceSettled   bool                        `json:"invoice_settled"`
}

// ApplyPayment allocates amount of a payment to one invoice. Both bounds
// are validated here for a fast answer, then enforced again inside the
// repository transaction with the payment row locked, so concurrent
// allocations cannot oversubscribe either side.
func (s *PaymentService) ApplyPayment(ctx context.Context, req ApplyPaymentRequest, actor Actor) (*ApplyPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "apply")
	defer span.End()

	if err := actor.requireMutate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payment, err := s.paymentRepo.FindByID(ctx, req.PaymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	invoice, err := s.loadInvoice(ctx, req.InvoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if invoice.LeaseID != payment.LeaseID {
		err := shared.NewDomainError(shared.CodeValidation, "invoice and payment belong to different leases")
		telemetry.RecordError(span, err)
		return nil, err
	}

	alreadyApplied, err := s.paymentRepo.SumAppliedByPayment(ctx, payment.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	invoiceApplied, err := s.paymentRepo.SumAppliedByInvoice(ctx, invoice.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := leasing.ValidateApplication(payment, alreadyApplied, invoice.BalanceDue(invoiceApplied), req.Amount); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		"payment_id", payment.ID.String(),
		"invoice_id", invoice.ID.String(),
		"amount", req.Amount.String(),
	)

	app, err := s.paymentRepo.Apply(ctx, payment.ID, invoice.ID, req.Amount, actor.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	invoiceApplied = invoiceApplied.Add(app.Amount)
	balance := invoice.BalanceDue(invoiceApplied)
	settled := invoice.IsSettled(invoiceApplied, s.policy.SettleEpsilon)

	if s.eventBus != nil {
		_ = s.eventBus.Publish(ctx, leasing.NewPaymentAppliedEvent(app, settled))
	}

	return &ApplyPaymentResult{
		Application:      app,
		InvoiceBalance:   balance,
		PaymentRemaining: payment.Remaining(alreadyApplied.Add(app.Amount)),
		InvoiceSettled:   settled,
	}, nil
}

// AllocateOldestFirst spreads a payment's unallocated remainder across the
// lease's outstanding invoices, oldest first. Each slice goes through the
// same validated ApplyPayment path a manual allocation would.
func (s *PaymentService) AllocateOldestFirst(ctx context.Context, paymentID uuid.UUID, actor Actor) ([]*ApplyPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "allocate_oldest_first")
	defer span.End()

	if err := actor.requireMutate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	applied, err := s.paymentRepo.SumAppliedByPayment(ctx, payment.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	remaining := payment.Remaining(applied)
	if !remaining.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "payment is fully allocated")
	}

	outstanding, err := s.outstandingInvoices(ctx, payment.LeaseID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	results := make([]*ApplyPaymentResult, 0, len(outstanding))
	for _, inv := range outstanding {
		if !remaining.IsPositive() {
			break
		}
		slice := decimal.Min(remaining, inv.balance)
		result, err := s.ApplyPayment(ctx, ApplyPaymentRequest{
			PaymentID: payment.ID,
			InvoiceID: inv.invoice.ID,
			Amount:    slice,
		}, actor)
		if err != nil {
			telemetry.RecordError(span, err)
			return results, err
		}
		results = append(results, result)
		remaining = result.PaymentRemaining
	}

	telemetry.SetAttributes(span,
		"payment_id", paymentID.String(),
		"allocations", len(results),
	)
	return results, nil
}

// GetPayment loads a single payment.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*leasing.Payment, error) {
	return s.paymentRepo.FindByID(ctx, paymentID)
}

// ListPayments returns a lease's payments with the given filter applied.
func (s *PaymentService) ListPayments(ctx context.Context, leaseID uuid.UUID, filter leasing.PaymentFilter) ([]*leasing.Payment, int64, error) {
	return s.paymentRepo.FindByLease(ctx, leaseID, filter)
}

// UnallocatedPayment is a received payment with money left to allocate.
type UnallocatedPayment struct {
	Payment   *leasing.Payment `json:"payment"`
	Applied   decimal.Decimal  `json:"applied"`
	Remaining decimal.Decimal  `json:"remaining"`
}

// ListUnallocated returns payments that still have an unallocated remainder.
func (s *PaymentService) ListUnallocated(ctx context.Context, leaseID uuid.UUID) ([]*UnallocatedPayment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "list_unallocated")
	defer span.End()

	received := leasing.PaymentStatusReceived
	payments, err := fetchAllPayments(ctx, s.paymentRepo, leaseID, leasing.PaymentFilter{
		Status: &received,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	out := make([]*UnallocatedPayment, 0, len(payments))
	for _, p := range payments {
		applied, err := s.paymentRepo.SumAppliedByPayment(ctx, p.ID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		remaining := p.Remaining(applied)
		if remaining.IsPositive() {
			out = append(out, &UnallocatedPayment{Payment: p, Applied: applied, Remaining: remaining})
		}
	}
	return out, nil
}

type outstandingInvoice struct {
	invoice   *leasing.Invoice
	balance   decimal.Decimal
	createdAt time.Time
}

// outstandingInvoices lists invoices with a positive balance due, ordered
// by the creation time of their earliest member charge.
func (s *PaymentService) outstandingInvoices(ctx context.Context, leaseID uuid.UUID) ([]outstandingInvoice, error) {
	charges, err := fetchAllCharges(ctx, s.chargeRepo, leaseID, leasing.ChargeFilter{})
	if err != nil {
		return nil, err
	}

	var out []outstandingInvoice
	for _, inv := range leasing.GroupInvoices(charges) {
		applied, err := s.paymentRepo.SumAppliedByInvoice(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		balance := inv.BalanceDue(applied)
		if balance.LessThanOrEqual(s.policy.SettleEpsilon) {
			continue
		}
		earliest := inv.Charges[0].CreatedAt
		for _, c := range inv.Charges {
			if c.CreatedAt.Before(earliest) {
				earliest = c.CreatedAt
			}
		}
		out = append(out, outstandingInvoice{invoice: inv, balance: balance, createdAt: earliest})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].invoice.Number < out[j].invoice.Number
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out, nil
}

func (s *PaymentService) loadInvoice(ctx context.Context, invoiceID uuid.UUID) (*leasing.Invoice, error) {
	charges, err := s.chargeRepo.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if len(charges) == 0 {
		return nil, shared.NewDomainError(shared.CodeNotFound, "invoice not found")
	}
	return leasing.GroupInvoices(charges)[0], nil
}
