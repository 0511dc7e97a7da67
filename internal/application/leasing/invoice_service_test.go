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

func newTestInvoiceService() (*InvoiceService, *MockChargeRepository, *MockPaymentRepository, *MockSequenceRepository, *MockEventBus) {
	chargeRepo := new(MockChargeRepository)
	paymentRepo := new(MockPaymentRepository)
	seqRepo := new(MockSequenceRepository)
	eventBus := new(MockEventBus)
	svc := NewInvoiceService(chargeRepo, paymentRepo, seqRepo, eventBus, DefaultBillingPolicy())
	return svc, chargeRepo, paymentRepo, seqRepo, eventBus
}

func invoicedTestCharge(t *testing.T, leaseID, invoiceID uuid.UUID, number string, chargeType leasing.ChargeType, amount string) *leasing.Charge {
	t.Helper()
	c, err := leasing.NewCharge(leasing.NewChargeParams{
		LeaseID:     leaseID,
		PeriodKey:   "2024-03-15",
		Type:        chargeType,
		TotalAmount: decimal.RequireFromString(amount),
	}, uuid.New())
	require.NoError(t, err)
	require.NoError(t, c.AssignToInvoice(invoiceID, number))
	c.ClearDomainEvents()
	return c
}

func TestInvoiceService_Generate(t *testing.T) {
	ctx := context.Background()
	leaseID := uuid.New()

	t.Run("acquires number then assigns cohort", func(t *testing.T) {
		svc, chargeRepo, _, seqRepo, eventBus := newTestInvoiceService()
		chargeIDs := []uuid.UUID{uuid.New(), uuid.New()}

		seqRepo.On("Next", ctx, leasing.SequenceInvoice).Return("INV-LE-0042", nil)
		chargeRepo.On("AssignInvoice", ctx, mock.MatchedBy(func(a leasing.InvoiceAssignment) bool {
			return a.LeaseID == leaseID &&
				a.InvoiceNumber == "INV-LE-0042" &&
				len(a.ChargeIDs) == 2 &&
				a.VATRate.Equal(decimal.NewFromFloat(0.05))
		})).Return(&leasing.InvoiceAssignmentResult{
			InvoiceNumber:  "INV-LE-0042",
			Subtotal:       decimal.RequireFromString("3150"),
			VATAmount:      decimal.RequireFromString("157.50"),
			Total:          decimal.RequireFromString("3307.50"),
			ChargesUpdated: 3,
		}, nil)
		eventBus.On("Publish", ctx, mock.Anything).Return(nil)

		result, err := svc.Generate(ctx, GenerateInvoiceRequest{
			LeaseID:   leaseID,
			PeriodKey: "2024-03-15",
			ChargeIDs: chargeIDs,
		}, testActor())

		require.NoError(t, err)
		assert.Equal(t, "INV-LE-0042", result.InvoiceNumber)
		assert.Equal(t, 3, result.ChargesUpdated)
		seqRepo.AssertExpectations(t)
		chargeRepo.AssertExpectations(t)
	})

	t.Run("deduplicates requested charge ids", func(t *testing.T) {
		svc, chargeRepo, _, seqRepo, eventBus := newTestInvoiceService()
		id := uuid.New()

		seqRepo.On("Next", ctx, leasing.SequenceInvoice).Return("INV-LE-0001", nil)
		chargeRepo.On("AssignInvoice", ctx, mock.MatchedBy(func(a leasing.InvoiceAssignment) bool {
			return len(a.ChargeIDs) == 1
		})).Return(&leasing.InvoiceAssignmentResult{InvoiceNumber: "INV-LE-0001", ChargesUpdated: 2}, nil)
		eventBus.On("Publish", ctx, mock.Anything).Return(nil)

		_, err := svc.Generate(ctx, GenerateInvoiceRequest{
			LeaseID:   leaseID,
			ChargeIDs: []uuid.UUID{id, id, id},
		}, testActor())

		require.NoError(t, err)
		chargeRepo.AssertExpectations(t)
	})

	t.Run("empty cohort surfaces EMPTY_INVOICE and burns the number", func(t *testing.T) {
		svc, chargeRepo, _, seqRepo, _ := newTestInvoiceService()

		seqRepo.On("Next", ctx, leasing.SequenceInvoice).Return("INV-LE-0002", nil)
		chargeRepo.On("AssignInvoice", ctx, mock.Anything).Return(nil, shared.ErrEmptyInvoice)

		_, err := svc.Generate(ctx, GenerateInvoiceRequest{
			LeaseID:   leaseID,
			ChargeIDs: []uuid.UUID{uuid.New()},
		}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeEmptyInvoice))
		seqRepo.AssertExpectations(t)
	})

	t.Run("no charge ids rejected before consuming a number", func(t *testing.T) {
		svc, _, _, seqRepo, _ := newTestInvoiceService()

		_, err := svc.Generate(ctx, GenerateInvoiceRequest{LeaseID: leaseID}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeValidation))
		seqRepo.AssertNotCalled(t, "Next")
	})

	t.Run("read only actor rejected", func(t *testing.T) {
		svc, _, _, seqRepo, _ := newTestInvoiceService()

		_, err := svc.Generate(ctx, GenerateInvoiceRequest{
			LeaseID:   leaseID,
			ChargeIDs: []uuid.UUID{uuid.New()},
		}, readOnlyActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeForbidden))
		seqRepo.AssertNotCalled(t, "Next")
	})
}

func TestInvoiceService_GetInvoice(t *testing.T) {
	ctx := context.Background()
	leaseID := uuid.New()
	invoiceID := uuid.New()

	t.Run("computes balance due from applications", func(t *testing.T) {
		svc, chargeRepo, paymentRepo, _, _ := newTestInvoiceService()

		charges := []*leasing.Charge{
			invoicedTestCharge(t, leaseID, invoiceID, "INV-LE-0010", leasing.ChargeTypeRental, "3000"),
			leasing.NewVATCharge(leaseID, "2024-03-15", invoiceID, "INV-LE-0010", decimal.RequireFromString("150"), uuid.New()),
		}
		chargeRepo.On("FindByInvoice", ctx, invoiceID).Return(charges, nil)
		paymentRepo.On("SumAppliedByInvoice", ctx, invoiceID).Return(decimal.RequireFromString("1000"), nil)

		summary, err := svc.GetInvoice(ctx, invoiceID)

		require.NoError(t, err)
		assert.Equal(t, "3000.00", summary.Subtotal.StringFixed(2))
		assert.Equal(t, "150.00", summary.VATAmount.StringFixed(2))
		assert.Equal(t, "2150.00", summary.BalanceDue.StringFixed(2))
		assert.True(t, summary.HasPartialPayment)
		assert.False(t, summary.Settled)
		assert.Len(t, summary.Charges, 2)
	})

	t.Run("settled invoice within epsilon", func(t *testing.T) {
		svc, chargeRepo, paymentRepo, _, _ := newTestInvoiceService()

		charges := []*leasing.Charge{
			invoicedTestCharge(t, leaseID, invoiceID, "INV-LE-0011", leasing.ChargeTypeRental, "1000"),
		}
		chargeRepo.On("FindByInvoice", ctx, invoiceID).Return(charges, nil)
		paymentRepo.On("SumAppliedByInvoice", ctx, invoiceID).Return(decimal.RequireFromString("999.995"), nil)

		summary, err := svc.GetInvoice(ctx, invoiceID)

		require.NoError(t, err)
		assert.True(t, summary.Settled)
		assert.False(t, summary.HasPartialPayment)
	})

	t.Run("unknown invoice returns not found", func(t *testing.T) {
		svc, chargeRepo, _, _, _ := newTestInvoiceService()
		chargeRepo.On("FindByInvoice", ctx, invoiceID).Return([]*leasing.Charge{}, nil)

		_, err := svc.GetInvoice(ctx, invoiceID)

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeNotFound))
	})
}

func TestInvoiceService_ListInvoices(t *testing.T) {
	ctx := context.Background()
	leaseID := uuid.New()
	invA := uuid.New()
	invB := uuid.New()

	svc, chargeRepo, paymentRepo, _, _ := newTestInvoiceService()

	charges := []*leasing.Charge{
		invoicedTestCharge(t, leaseID, invA, "INV-LE-0001", leasing.ChargeTypeRental, "3000"),
		invoicedTestCharge(t, leaseID, invB, "INV-LE-0002", leasing.ChargeTypeFine, "500"),
		pendingCharge(t, leaseID),
	}
	chargeRepo.On("FindByLease", ctx, leaseID, mock.Anything).Return(charges, int64(3), nil)
	paymentRepo.On("SumAppliedByInvoice", ctx, invA).Return(decimal.RequireFromString("3000"), nil)
	paymentRepo.On("SumAppliedByInvoice", ctx, invB).Return(decimal.Zero, nil)

	summaries, err := svc.ListInvoices(ctx, leaseID)

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "INV-LE-0001", summaries[0].InvoiceNumber)
	assert.True(t, summaries[0].Settled)
	assert.Equal(t, "INV-LE-0002", summaries[1].InvoiceNumber)
	assert.Equal(t, "500.00", summaries[1].BalanceDue.StringFixed(2))
}

func TestInvoiceService_PreviewNextNumber(t *testing.T) {
	ctx := context.Background()
	svc, _, _, seqRepo, _ := newTestInvoiceService()
	seqRepo.On("PreviewNext", ctx, leasing.SequenceInvoice).Return("INV-LE-0100", nil)

	number, err := svc.PreviewNextNumber(ctx)

	require.NoError(t, err)
	assert.Equal(t, "INV-LE-0100", number)
}
