package leasing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
	"github.com/fleetlease/backend/internal/infrastructure/telemetry"
)

// InvoiceService groups pending charges into numbered invoices.
type InvoiceService struct {
	chargeRepo  leasing.ChargeRepository
	paymentRepo leasing.PaymentRepository
	seqRepo     leasing.SequenceRepository
	eventBus    shared.EventPublisher
	policy      BillingPolicy
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	chargeRepo leasing.ChargeRepository,
	paymentRepo leasing.PaymentRepository,
	seqRepo leasing.SequenceRepository,
	eventBus shared.EventPublisher,
	policy BillingPolicy,
) *InvoiceService {
	return &InvoiceService{
		chargeRepo:  chargeRepo,
		paymentRepo: paymentRepo,
		seqRepo:     seqRepo,
		eventBus:    eventBus,
		policy:      policy,
	}
}

// GenerateInvoiceRequest represents a request to invoice a set of charges
type GenerateInvoiceRequest struct {
	LeaseID   uuid.UUID
	PeriodKey string
	ChargeIDs []uuid.UUID
}

// Generate turns the requested pending charges into one invoice. The
// invoice number is consumed from the sequence before any charge row is
// touched, so numbering never waits on charge locks; if the assignment
// fails afterwards the number stays burned and becomes a gap.
func (s *InvoiceService) Generate(ctx context.Context, req GenerateInvoiceRequest, actor Actor) (*leasing.InvoiceAssignmentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "generate")
	defer span.End()

	if err := actor.requireMutate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.LeaseID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "lease id is required")
	}

	chargeIDs := dedupe(req.ChargeIDs)
	if len(chargeIDs) == 0 {
		err := shared.NewDomainError(shared.CodeValidation, "at least one charge id is required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	number, err := s.seqRepo.Next(ctx, leasing.SequenceInvoice)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to acquire invoice number: %w", err)
	}
	// The number is burned from here on even if the assignment fails.
	telemetry.AddEvent(span, "invoice_number_consumed", "invoice_number", number)

	telemetry.SetAttributes(span,
		"lease_id", req.LeaseID.String(),
		"invoice_number", number,
		"requested_charges", len(chargeIDs),
	)

	result, err := s.chargeRepo.AssignInvoice(ctx, leasing.InvoiceAssignment{
		LeaseID:       req.LeaseID,
		PeriodKey:     req.PeriodKey,
		ChargeIDs:     chargeIDs,
		InvoiceID:     uuid.New(),
		InvoiceNumber: number,
		VATRate:       s.policy.VATRate,
		ActorID:       actor.ID,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.eventBus != nil {
		event := leasing.NewInvoiceGeneratedEvent(
			result.InvoiceID, result.InvoiceNumber, req.LeaseID, req.PeriodKey,
			result.Subtotal, result.VATAmount, result.ChargesUpdated,
		)
		_ = s.eventBus.Publish(ctx, event)
	}
	return result, nil
}

// PreviewNextNumber returns the upcoming invoice number without consuming
// it. Advisory only.
func (s *InvoiceService) PreviewNextNumber(ctx context.Context) (string, error) {
	return s.seqRepo.PreviewNext(ctx, leasing.SequenceInvoice)
}

// InvoiceSummary is one invoice with its derived financials.
type InvoiceSummary struct {
	InvoiceID         uuid.UUID         `json:"invoice_id"`
	InvoiceNumber     string            `json:"invoice_number"`
	LeaseID           uuid.UUID         `json:"lease_id"`
	PeriodKey         string            `json:"period_key"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	VATAmount         decimal.Decimal   `json:"vat_amount"`
	Total             decimal.Decimal   `json:"total"`
	CreditTotal       decimal.Decimal   `json:"credit_total"`
	AmountPaid        decimal.Decimal   `json:"amount_paid"`
	BalanceDue        decimal.Decimal   `json:"balance_due"`
	Settled           bool              `json:"settled"`
	HasPartialPayment bool              `json:"has_partial_payment"`
	CreditNoteNumbers []string          `json:"credit_note_numbers,omitempty"`
	Charges           []*leasing.Charge `json:"charges,omitempty"`
}

// GetInvoice returns one invoice with its member charges and balance.
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "get")
	defer span.End()

	charges, err := s.chargeRepo.FindByInvoice(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(charges) == 0 {
		return nil, shared.NewDomainError(shared.CodeNotFound, "invoice not found")
	}

	invoices := leasing.GroupInvoices(charges)
	summary, err := s.summarize(ctx, invoices[0], true)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return summary, nil
}

// ListInvoices returns a lease's invoices, oldest number first.
func (s *InvoiceService) ListInvoices(ctx context.Context, leaseID uuid.UUID) ([]*InvoiceSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "list")
	defer span.End()

	// GroupInvoices drops charges without an invoice reference, so the
	// read does not need a status filter.
	charges, err := fetchAllCharges(ctx, s.chargeRepo, leaseID, leasing.ChargeFilter{})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	summaries := make([]*InvoiceSummary, 0)
	for _, inv := range leasing.GroupInvoices(charges) {
		summary, err := s.summarize(ctx, inv, false)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *InvoiceService) summarize(ctx context.Context, inv *leasing.Invoice, includeCharges bool) (*InvoiceSummary, error) {
	applied, err := s.paymentRepo.SumAppliedByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments for invoice %s: %w", inv.ID, err)
	}

	balanceDue := inv.BalanceDue(applied)
	settled := inv.IsSettled(applied, s.policy.SettleEpsilon)
	summary := &InvoiceSummary{
		InvoiceID:         inv.ID,
		InvoiceNumber:     inv.Number,
		LeaseID:           inv.LeaseID,
		PeriodKey:         inv.PeriodKey,
		Subtotal:          inv.Subtotal(),
		VATAmount:         inv.VATAmount(),
		Total:             inv.Total(),
		CreditTotal:       inv.CreditTotal(),
		AmountPaid:        applied,
		BalanceDue:        balanceDue,
		Settled:           settled,
		HasPartialPayment: applied.IsPositive() && !settled,
		CreditNoteNumbers: inv.CreditNoteNumbers(),
	}
	if includeCharges {
		summary.Charges = inv.Charges
	}
	return summary, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
