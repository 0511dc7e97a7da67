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

// ChargeService manages the lease billing ledger's entry lifecycle.
type ChargeService struct {
	chargeRepo leasing.ChargeRepository
	eventBus   shared.EventPublisher
}

// NewChargeService creates a new ChargeService
func NewChargeService(chargeRepo leasing.ChargeRepository, eventBus shared.EventPublisher) *ChargeService {
	return &ChargeService{
		chargeRepo: chargeRepo,
		eventBus:   eventBus,
	}
}

// AddChargeRequest represents a request to enter a new charge
type AddChargeRequest struct {
	LeaseID       uuid.UUID
	PeriodKey     string
	Type          leasing.ChargeType
	Quantity      *decimal.Decimal
	UnitPrice     *decimal.Decimal
	TotalAmount   decimal.Decimal
	Comment       string
	VATApplicable bool
}

// AddCharge enters a new pending charge into the ledger.
func (s *ChargeService) AddCharge(ctx context.Context, req AddChargeRequest, actor Actor) (*leasing.Charge, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge", "add")
	defer span.End()

	if err := actor.requireMutate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	charge, err := leasing.NewCharge(leasing.NewChargeParams{
		LeaseID:       req.LeaseID,
		PeriodKey:     req.PeriodKey,
		Type:          req.Type,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		TotalAmount:   req.TotalAmount,
		Comment:       req.Comment,
		VATApplicable: req.VATApplicable,
	}, actor.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		"lease_id", req.LeaseID.String(),
		"charge_type", string(req.Type),
		"amount", charge.TotalAmount.String(),
	)

	if err := s.chargeRepo.Create(ctx, charge); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to create charge: %w", err)
	}

	s.publishEvents(ctx, charge)
	return charge, nil
}

// EditChargeRequest represents a request to edit a pending charge
type EditChargeRequest struct {
	ChargeID        uuid.UUID
	ExpectedVersion int
	Type            leasing.ChargeType
	Quantity        *decimal.Decimal
	UnitPrice       *decimal.Decimal
	TotalAmount     decimal.Decimal
	Comment         string
	VATApplicable   bool
}

// EditCharge updates a pending charge under optimistic concurrency. The
// caller's expected version must match the stored one; a mismatch means
// someone else edited the charge since it was read.
func (s *ChargeService) EditCharge(ctx context.Context, req EditChargeRequest, actor Actor) (*leasing.Charge, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge", "edit")
	defer span.End()

	if err := actor.requireMutate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	charge, err := s.chargeRepo.FindByID(ctx, req.ChargeID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if charge.Version != req.ExpectedVersion {
		err := shared.NewDomainError(shared.CodeConflict,
			fmt.Sprintf("charge was modified: expected version %d, found %d", req.ExpectedVersion, charge.Version))
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := charge.Edit(leasing.EditChargeParams{
		Type:          req.Type,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		TotalAmount:   req.TotalAmount,
		Comment:       req.Comment,
		VATApplicable: req.VATApplicable,
	}, actor.ID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// SaveWithLock re-checks the version in the UPDATE itself, so a racing
	// edit between the read above and this write still loses cleanly.
	if err := s.chargeRepo.SaveWithLock(ctx, charge); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, charge)
	return charge, nil
}

// DeleteCharge soft-deletes a pending charge, keeping the row for audit.
func (s *ChargeService) DeleteCharge(ctx context.Context, chargeID uuid.UUID, reason string, actor Actor) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge", "delete")
	defer span.End()

	if err := actor.requireMutate(); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	charge, err := s.chargeRepo.FindByID(ctx, chargeID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if err := charge.MarkDeleted(reason, actor.ID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.chargeRepo.SoftDelete(ctx, charge); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.publishEvents(ctx, charge)
	return nil
}

// GetCharge loads a single charge.
func (s *ChargeService) GetCharge(ctx context.Context, chargeID uuid.UUID) (*leasing.Charge, error) {
	return s.chargeRepo.FindByID(ctx, chargeID)
}

// ListCharges returns a lease's charges with the given filter applied.
func (s *ChargeService) ListCharges(ctx context.Context, leaseID uuid.UUID, filter leasing.ChargeFilter) ([]*leasing.Charge, int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "charge", "list")
	defer span.End()

	charges, total, err := s.chargeRepo.FindByLease(ctx, leaseID, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, 0, err
	}
	return charges, total, nil
}

func (s *ChargeService) publishEvents(ctx context.Context, charge *leasing.Charge) {
	if s.eventBus == nil {
		return
	}
	// Event delivery is best effort; the ledger write already committed.
	_ = s.eventBus.Publish(ctx, charge.GetDomainEvents()...)
	charge.ClearDomainEvents()
}
