package leasing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockChargeRepository is a mock implementation of leasing.ChargeRepository
type MockChargeRepository struct {
	mock.Mock
}

func (m *MockChargeRepository) Create(ctx context.Context, charge *leasing.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeRepository) SaveWithLock(ctx context.Context, charge *leasing.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeRepository) FindByID(ctx context.Context, id uuid.UUID) (*leasing.Charge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*leasing.Charge), args.Error(1)
}

func (m *MockChargeRepository) FindByLease(ctx context.Context, leaseID uuid.UUID, filter leasing.ChargeFilter) ([]*leasing.Charge, int64, error) {
	args := m.Called(ctx, leaseID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*leasing.Charge), args.Get(1).(int64), args.Error(2)
}

func (m *MockChargeRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*leasing.Charge, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*leasing.Charge), args.Error(1)
}

func (m *MockChargeRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*leasing.Charge, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*leasing.Charge), args.Error(1)
}

func (m *MockChargeRepository) AssignInvoice(ctx context.Context, assignment leasing.InvoiceAssignment) (*leasing.InvoiceAssignmentResult, error) {
	args := m.Called(ctx, assignment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*leasing.InvoiceAssignmentResult), args.Error(1)
}

func (m *MockChargeRepository) CreateCreditLines(ctx context.Context, lines []*leasing.Charge) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

func (m *MockChargeRepository) SoftDelete(ctx context.Context, charge *leasing.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeRepository) SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockChargeRepository) MarkInvoicePaid(ctx context.Context, invoiceID, paymentID uuid.UUID) error {
	args := m.Called(ctx, invoiceID, paymentID)
	return args.Error(0)
}

// MockPaymentRepository is a mock implementation of leasing.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *leasing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *leasing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*leasing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*leasing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByLease(ctx context.Context, leaseID uuid.UUID, filter leasing.PaymentFilter) ([]*leasing.Payment, int64, error) {
	args := m.Called(ctx, leaseID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*leasing.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*leasing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*leasing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindApplicationsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*leasing.PaymentApplication, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*leasing.PaymentApplication), args.Error(1)
}

func (m *MockPaymentRepository) FindApplicationsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*leasing.PaymentApplication, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*leasing.PaymentApplication), args.Error(1)
}

func (m *MockPaymentRepository) FindApplicationsByLease(ctx context.Context, leaseID uuid.UUID) ([]*leasing.PaymentApplication, error) {
	args := m.Called(ctx, leaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*leasing.PaymentApplication), args.Error(1)
}

func (m *MockPaymentRepository) SumAppliedByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPaymentRepository) SumAppliedByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPaymentRepository) Apply(ctx context.Context, paymentID, invoiceID uuid.UUID, amount decimal.Decimal, actorID uuid.UUID) (*leasing.PaymentApplication, error) {
	args := m.Called(ctx, paymentID, invoiceID, amount, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*leasing.PaymentApplication), args.Error(1)
}

// MockSequenceRepository is a mock implementation of leasing.SequenceRepository
type MockSequenceRepository struct {
	mock.Mock
}

func (m *MockSequenceRepository) Next(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockSequenceRepository) PreviewNext(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

// MockEventBus is a mock implementation of shared.EventPublisher
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
