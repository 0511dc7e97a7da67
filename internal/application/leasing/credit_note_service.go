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

// CreditNoteService issues credit notes against invoiced charges.
type CreditNoteService struct {
	chargeRepo leasing.ChargeRepository
	seqRepo    leasing.SequenceRepository
	eventBus   shared.EventPublisher
}

// NewCreditNoteService creates a new CreditNoteService
func NewCreditNoteService(
	chargeRepo leasing.ChargeRepository,
	seqRepo leasing.SequenceRepository,
	eventBus shared.EventPublisher,
) *CreditNoteService {
	return &CreditNoteService{
		chargeRepo: chargeRepo,
		seqRepo:    seqRepo,
		eventBus:   eventBus,
	}
}

// CreditNoteLineInput requests a credit against one invoiced charge. A nil
// Amount credits the full remaining uncredited amount.
type CreditNoteLineInput struct {
	OriginalChargeID uuid.UUID
	Amount           *decimal.Decimal
}

// IssueCreditNoteRequest represents a request to issue a credit note
type IssueCreditNoteRequest struct {
	InvoiceID uuid.UUID
	Lines     []CreditNoteLineInput
	Reason    string
}

// CreditNoteResult reports the issued credit note
type CreditNoteResult struct {
	CreditNoteNumber string            `json:"credit_note_number"`
	InvoiceID        uuid.UUID         `json:"invoice_id"`
	TotalCredited    decimal.Decimal   `json:"total_credited"`
	Lines            []*leasing.Charge `json:"lines"`
}

// Issue validates the requested credits and appends negative credit_note
// lines to the invoice. The credit note number is consumed first; original
// charge rows are never mutated.
func (s *CreditNoteService) Issue(ctx context.Context, req IssueCreditNoteRequest, actor Actor) (*CreditNoteResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit_note", "issue")
	defer span.End()

	if err := actor.requireMutate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(req.Lines) == 0 {
		err := shared.NewDomainError(shared.CodeValidation, "credit note requires at least one line")
		telemetry.RecordError(span, err)
		return nil, err
	}

	charges, err := s.chargeRepo.FindByInvoice(ctx, req.InvoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(charges) == 0 {
		err := shared.NewDomainError(shared.CodeNotFound, "invoice not found")
		telemetry.RecordError(span, err)
		return nil, err
	}
	invoice := leasing.GroupInvoices(charges)[0]

	number, err := s.seqRepo.Next(ctx, leasing.SequenceCreditNote)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to acquire credit note number: %w", err)
	}
	telemetry.AddEvent(span, "credit_note_number_consumed", "credit_note_number", number)

	requests := make([]leasing.CreditNoteLineRequest, 0, len(req.Lines))
	for _, line := range req.Lines {
		r := leasing.CreditNoteLineRequest{OriginalChargeID: line.OriginalChargeID}
		if line.Amount != nil {
			r.Amount = *line.Amount
		}
		requests = append(requests, r)
	}

	lines, err := leasing.BuildCreditLines(invoice, requests, number, req.Reason, actor.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.chargeRepo.CreateCreditLines(ctx, lines); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to persist credit note %s: %w", number, err)
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.TotalAmount)
	}

	telemetry.SetAttributes(span,
		"invoice_id", req.InvoiceID.String(),
		"credit_note_number", number,
		"total_credited", total.String(),
	)

	if s.eventBus != nil {
		_ = s.eventBus.Publish(ctx, leasing.NewCreditNoteIssuedEvent(number, invoice.ID, invoice.LeaseID, total, len(lines)))
	}

	return &CreditNoteResult{
		CreditNoteNumber: number,
		InvoiceID:        invoice.ID,
		TotalCredited:    total,
		Lines:            lines,
	}, nil
}

// PreviewNextNumber returns the upcoming credit note number without
// consuming it.
func (s *CreditNoteService) PreviewNextNumber(ctx context.Context) (string, error) {
	return s.seqRepo.PreviewNext(ctx, leasing.SequenceCreditNote)
}
