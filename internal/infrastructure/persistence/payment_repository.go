package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
	"github.com/fleetlease/backend/internal/infrastructure/persistence/models"
)

// GormPaymentRepository implements leasing.PaymentRepository using GORM
type GormPaymentRepository struct {
	db            *gorm.DB
	settleEpsilon decimal.Decimal
}

// Compile-time interface check
var _ leasing.PaymentRepository = (*GormPaymentRepository)(nil)

// NewGormPaymentRepository creates a new GormPaymentRepository. The epsilon
// bounds how far from zero an invoice balance may sit and still count as
// settled.
func NewGormPaymentRepository(db *gorm.DB, settleEpsilon decimal.Decimal) *GormPaymentRepository {
	return &GormPaymentRepository{db: db, settleEpsilon: settleEpsilon}
}

// Create inserts a new payment row
func (r *GormPaymentRepository) Create(ctx context.Context, payment *leasing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).Create(model).Error
}

// Save updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *leasing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("id", "created_at", "created_by").
		Where("id = ?", payment.ID).
		Updates(model).Error
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*leasing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLease finds a lease's payments with filtering and pagination
func (r *GormPaymentRepository) FindByLease(ctx context.Context, leaseID uuid.UUID, filter leasing.PaymentFilter) ([]*leasing.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("lease_id = ?", leaseID)
	if filter.Method != nil {
		query = query.Where("method = ?", *filter.Method)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("received_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("received_at <= ?", *filter.ToDate)
	}
	if filter.Search != "" {
		query = query.Where("reference ILIKE ? OR notes ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Filter, PaymentSortFields, "received_at")

	var paymentModels []models.PaymentModel
	if err := query.Find(&paymentModels).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]*leasing.Payment, len(paymentModels))
	for i := range paymentModels {
		payments[i] = paymentModels[i].ToDomain()
	}
	return payments, total, nil
}

// FindByIDForUpdate loads the payment under a row lock
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*leasing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindApplicationsByPayment finds a payment's allocations, oldest first
func (r *GormPaymentRepository) FindApplicationsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*leasing.PaymentApplication, error) {
	var appModels []models.PaymentApplicationModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("applied_at ASC").
		Find(&appModels).Error; err != nil {
		return nil, err
	}
	return toDomainApplications(appModels), nil
}

// FindApplicationsByInvoice finds an invoice's allocations, oldest first
func (r *GormPaymentRepository) FindApplicationsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*leasing.PaymentApplication, error) {
	var appModels []models.PaymentApplicationModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("applied_at ASC").
		Find(&appModels).Error; err != nil {
		return nil, err
	}
	return toDomainApplications(appModels), nil
}

// FindApplicationsByLease finds every allocation whose payment belongs to the
// lease, oldest first
func (r *GormPaymentRepository) FindApplicationsByLease(ctx context.Context, leaseID uuid.UUID) ([]*leasing.PaymentApplication, error) {
	var appModels []models.PaymentApplicationModel
	if err := r.db.WithContext(ctx).
		Where("payment_id IN (?)", r.db.Model(&models.PaymentModel{}).
			Select("id").Where("lease_id = ?", leaseID)).
		Order("applied_at ASC").
		Find(&appModels).Error; err != nil {
		return nil, err
	}
	return toDomainApplications(appModels), nil
}

// SumAppliedByPayment returns the total already allocated from a payment
func (r *GormPaymentRepository) SumAppliedByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	return r.sumApplications(r.db.WithContext(ctx), "payment_id = ?", paymentID)
}

// SumAppliedByInvoice returns the total already applied to an invoice
func (r *GormPaymentRepository) SumAppliedByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	return r.sumApplications(r.db.WithContext(ctx), "invoice_id = ?", invoiceID)
}

// Apply inserts one allocation atomically. The payment row is locked first
// and both bounds are re-checked against in-transaction sums, so two
// concurrent applications of the same payment serialize on the lock and the
// loser sees the true remaining amount. When the application closes the
// invoice balance to within the epsilon, the member charges settle in the
// same transaction.
func (r *GormPaymentRepository) Apply(ctx context.Context, paymentID, invoiceID uuid.UUID, amount decimal.Decimal, actorID uuid.UUID) (*leasing.PaymentApplication, error) {
	var application *leasing.PaymentApplication

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var paymentModel models.PaymentModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&paymentModel, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		payment := paymentModel.ToDomain()

		var invoiceRows int64
		if err := tx.Model(&models.ChargeModel{}).
			Where("invoice_id = ?", invoiceID).
			Count(&invoiceRows).Error; err != nil {
			return err
		}
		if invoiceRows == 0 {
			return shared.ErrNotFound
		}

		alreadyApplied, err := r.sumApplications(tx, "payment_id = ?", paymentID)
		if err != nil {
			return err
		}
		var invoiceTotal decimal.Decimal
		if err := tx.Model(&models.ChargeModel{}).
			Select("COALESCE(SUM(total_amount), 0)").
			Where("invoice_id = ?", invoiceID).
			Scan(&invoiceTotal).Error; err != nil {
			return err
		}
		appliedToInvoice, err := r.sumApplications(tx, "invoice_id = ?", invoiceID)
		if err != nil {
			return err
		}
		balanceDue := invoiceTotal.Sub(appliedToInvoice)

		if err := leasing.ValidateApplication(payment, alreadyApplied, balanceDue, amount); err != nil {
			return err
		}

		application, err = leasing.NewPaymentApplication(paymentID, invoiceID, amount, actorID)
		if err != nil {
			return err
		}
		appModel := &models.PaymentApplicationModel{}
		appModel.FromDomain(application)
		if err := tx.Create(appModel).Error; err != nil {
			return err
		}

		payment.RefreshStatus(alreadyApplied.Add(amount))
		if err := tx.Model(&models.PaymentModel{}).
			Where("id = ?", paymentID).
			Updates(map[string]interface{}{
				"status":     payment.Status,
				"updated_by": actorID,
				"version":    gorm.Expr("version + 1"),
			}).Error; err != nil {
			return err
		}

		if balanceDue.Sub(amount).Abs().LessThanOrEqual(r.settleEpsilon) {
			if err := tx.Model(&models.ChargeModel{}).
				Where("invoice_id = ? AND status = ?", invoiceID, leasing.ChargeStatusInvoiced).
				Updates(map[string]interface{}{
					"status":     leasing.ChargeStatusPaid,
					"payment_id": paymentID,
					"version":    gorm.Expr("version + 1"),
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return application, nil
}

func (r *GormPaymentRepository) sumApplications(db *gorm.DB, condition string, arg interface{}) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := db.Model(&models.PaymentApplicationModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where(condition, arg).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func toDomainApplications(appModels []models.PaymentApplicationModel) []*leasing.PaymentApplication {
	apps := make([]*leasing.PaymentApplication, len(appModels))
	for i := range appModels {
		apps[i] = appModels[i].ToDomain()
	}
	return apps
}
