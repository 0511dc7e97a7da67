package leasing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
)

func testActor() Actor {
	return Actor{ID: uuid.New(), MayMutate: true}
}

func readOnlyActor() Actor {
	return Actor{ID: uuid.New(), MayMutate: false}
}

func newTestChargeService() (*ChargeService, *MockChargeRepository, *MockEventBus) {
	chargeRepo := new(MockChargeRepository)
	eventBus := new(MockEventBus)
	return NewChargeService(chargeRepo, eventBus), chargeRepo, eventBus
}

func pendingCharge(t *testing.T, leaseID uuid.UUID) *leasing.Charge {
	t.Helper()
	c, err := leasing.NewCharge(leasing.NewChargeParams{
		LeaseID:     leaseID,
		PeriodKey:   "2024-03-15",
		Type:        leasing.ChargeTypeRental,
		TotalAmount: decimal.RequireFromString("3000"),
	}, uuid.New())
	require.NoError(t, err)
	c.ClearDomainEvents()
	return c
}

func TestChargeService_AddCharge(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending charge", func(t *testing.T) {
		svc, chargeRepo, eventBus := newTestChargeService()
		chargeRepo.On("Create", ctx, mock.AnythingOfType("*leasing.Charge")).Return(nil)
		eventBus.On("Publish", ctx, mock.Anything).Return(nil)

		charge, err := svc.AddCharge(ctx, AddChargeRequest{
			LeaseID:       uuid.New(),
			PeriodKey:     "2024-03-15",
			Type:          leasing.ChargeTypeRental,
			TotalAmount:   decimal.RequireFromString("3000"),
			VATApplicable: true,
		}, testActor())

		require.NoError(t, err)
		assert.Equal(t, leasing.ChargeStatusPending, charge.Status)
		chargeRepo.AssertExpectations(t)
		eventBus.AssertExpectations(t)
	})

	t.Run("rejects read only actor", func(t *testing.T) {
		svc, chargeRepo, _ := newTestChargeService()

		_, err := svc.AddCharge(ctx, AddChargeRequest{
			LeaseID:     uuid.New(),
			PeriodKey:   "2024-03-15",
			Type:        leasing.ChargeTypeRental,
			TotalAmount: decimal.RequireFromString("3000"),
		}, readOnlyActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeForbidden))
		chargeRepo.AssertNotCalled(t, "Create")
	})

	t.Run("propagates validation error without persisting", func(t *testing.T) {
		svc, chargeRepo, _ := newTestChargeService()

		_, err := svc.AddCharge(ctx, AddChargeRequest{
			LeaseID:   uuid.New(),
			PeriodKey: "",
			Type:      leasing.ChargeTypeRental,
		}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeValidation))
		chargeRepo.AssertNotCalled(t, "Create")
	})
}

func TestChargeService_EditCharge(t *testing.T) {
	ctx := context.Background()
	leaseID := uuid.New()

	t.Run("edits pending charge at expected version", func(t *testing.T) {
		svc, chargeRepo, eventBus := newTestChargeService()
		charge := pendingCharge(t, leaseID)
		chargeRepo.On("FindByID", ctx, charge.ID).Return(charge, nil)
		chargeRepo.On("SaveWithLock", ctx, charge).Return(nil)
		eventBus.On("Publish", ctx, mock.Anything).Return(nil)

		updated, err := svc.EditCharge(ctx, EditChargeRequest{
			ChargeID:        charge.ID,
			ExpectedVersion: 1,
			Type:            leasing.ChargeTypeRental,
			TotalAmount:     decimal.RequireFromString("3500"),
			Comment:         "rent increase",
		}, testActor())

		require.NoError(t, err)
		assert.Equal(t, "3500", updated.TotalAmount.String())
		assert.Equal(t, 2, updated.Version)
		chargeRepo.AssertExpectations(t)
	})

	t.Run("version mismatch returns conflict", func(t *testing.T) {
		svc, chargeRepo, _ := newTestChargeService()
		charge := pendingCharge(t, leaseID)
		charge.Version = 3
		chargeRepo.On("FindByID", ctx, charge.ID).Return(charge, nil)

		_, err := svc.EditCharge(ctx, EditChargeRequest{
			ChargeID:        charge.ID,
			ExpectedVersion: 2,
			Type:            leasing.ChargeTypeRental,
			TotalAmount:     decimal.RequireFromString("3500"),
		}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeConflict))
		chargeRepo.AssertNotCalled(t, "SaveWithLock")
	})

	t.Run("invoiced charge cannot be edited", func(t *testing.T) {
		svc, chargeRepo, _ := newTestChargeService()
		charge := pendingCharge(t, leaseID)
		require.NoError(t, charge.AssignToInvoice(uuid.New(), "INV-LE-0001"))
		chargeRepo.On("FindByID", ctx, charge.ID).Return(charge, nil)

		_, err := svc.EditCharge(ctx, EditChargeRequest{
			ChargeID:        charge.ID,
			ExpectedVersion: charge.Version,
			Type:            leasing.ChargeTypeRental,
			TotalAmount:     decimal.RequireFromString("3500"),
		}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
	})

	t.Run("missing charge returns not found", func(t *testing.T) {
		svc, chargeRepo, _ := newTestChargeService()
		chargeID := uuid.New()
		chargeRepo.On("FindByID", ctx, chargeID).Return(nil, shared.ErrNotFound)

		_, err := svc.EditCharge(ctx, EditChargeRequest{
			ChargeID:        chargeID,
			ExpectedVersion: 1,
			Type:            leasing.ChargeTypeRental,
			TotalAmount:     decimal.RequireFromString("100"),
		}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeNotFound))
	})
}

func TestChargeService_DeleteCharge(t *testing.T) {
	ctx := context.Background()
	leaseID := uuid.New()

	t.Run("soft deletes pending charge", func(t *testing.T) {
		svc, chargeRepo, eventBus := newTestChargeService()
		charge := pendingCharge(t, leaseID)
		chargeRepo.On("FindByID", ctx, charge.ID).Return(charge, nil)
		chargeRepo.On("SoftDelete", ctx, charge).Return(nil)
		eventBus.On("Publish", ctx, mock.Anything).Return(nil)

		err := svc.DeleteCharge(ctx, charge.ID, "duplicate entry", testActor())

		require.NoError(t, err)
		assert.True(t, charge.IsDeleted())
		assert.Equal(t, "duplicate entry", charge.DeleteReason)
		chargeRepo.AssertExpectations(t)
	})

	t.Run("rejects delete of invoiced charge", func(t *testing.T) {
		svc, chargeRepo, _ := newTestChargeService()
		charge := pendingCharge(t, leaseID)
		require.NoError(t, charge.AssignToInvoice(uuid.New(), "INV-LE-0001"))
		chargeRepo.On("FindByID", ctx, charge.ID).Return(charge, nil)

		err := svc.DeleteCharge(ctx, charge.ID, "oops", testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
		chargeRepo.AssertNotCalled(t, "SoftDelete")
	})
}
