package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
	"github.com/fleetlease/backend/internal/infrastructure/persistence/models"
)

// GormChargeRepository implements leasing.ChargeRepository using GORM
type GormChargeRepository struct {
	db *gorm.DB
}

// Compile-time interface check
var _ leasing.ChargeRepository = (*GormChargeRepository)(nil)

// NewGormChargeRepository creates a new GormChargeRepository
func NewGormChargeRepository(db *gorm.DB) *GormChargeRepository {
	return &GormChargeRepository{db: db}
}

// Create inserts a new charge row
func (r *GormChargeRepository) Create(ctx context.Context, charge *leasing.Charge) error {
	model := models.ChargeModelFromDomain(charge)
	return r.db.WithContext(ctx).Create(model).Error
}

// SaveWithLock updates a charge with optimistic locking. The UPDATE carries
// the expected previous version in its WHERE clause; zero rows affected
// means another writer got there first.
func (r *GormChargeRepository) SaveWithLock(ctx context.Context, charge *leasing.Charge) error {
	model := models.ChargeModelFromDomain(charge)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("id", "created_at", "created_by").
		Where("id = ? AND version = ?", charge.ID, charge.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConflict, "charge was modified by another transaction")
	}
	return nil
}

// FindByID finds a charge by its ID
func (r *GormChargeRepository) FindByID(ctx context.Context, id uuid.UUID) (*leasing.Charge, error) {
	var model models.ChargeModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLease finds a lease's charges with filtering and pagination
func (r *GormChargeRepository) FindByLease(ctx context.Context, leaseID uuid.UUID, filter leasing.ChargeFilter) ([]*leasing.Charge, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ChargeModel{}).
		Where("lease_id = ?", leaseID)
	if filter.IncludeDeleted {
		query = query.Unscoped().Where("lease_id = ?", leaseID)
	}
	query = r.applyChargeFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Filter, ChargeSortFields, "created_at")

	var chargeModels []models.ChargeModel
	if err := query.Find(&chargeModels).Error; err != nil {
		return nil, 0, err
	}

	charges := make([]*leasing.Charge, len(chargeModels))
	for i := range chargeModels {
		charges[i] = chargeModels[i].ToDomain()
	}
	return charges, total, nil
}

// FindByInvoice finds all charges carrying the given invoice reference,
// credit lines included
func (r *GormChargeRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*leasing.Charge, error) {
	var chargeModels []models.ChargeModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&chargeModels).Error; err != nil {
		return nil, err
	}
	charges := make([]*leasing.Charge, len(chargeModels))
	for i := range chargeModels {
		charges[i] = chargeModels[i].ToDomain()
	}
	return charges, nil
}

// FindByIDs loads the given charges
func (r *GormChargeRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*leasing.Charge, error) {
	var chargeModels []models.ChargeModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&chargeModels).Error; err != nil {
		return nil, err
	}
	charges := make([]*leasing.Charge, len(chargeModels))
	for i := range chargeModels {
		charges[i] = chargeModels[i].ToDomain()
	}
	return charges, nil
}

// AssignInvoice transitions a cohort of pending charges onto an invoice in
// one transaction. Rows are locked in a stable order, re-validated, and the
// VAT line is computed from the charges that actually survive; callers that
// raced a previous generation see EMPTY_INVOICE rather than double billing.
func (r *GormChargeRepository) AssignInvoice(ctx context.Context, assignment leasing.InvoiceAssignment) (*leasing.InvoiceAssignmentResult, error) {
	var result *leasing.InvoiceAssignmentResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []models.ChargeModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ? AND lease_id = ?", assignment.ChargeIDs, assignment.LeaseID).
			Order("id ASC").
			Find(&locked).Error; err != nil {
			return err
		}

		// Re-validate under the lock: only still-pending charges with no
		// invoice reference make it onto the invoice.
		survivorIDs := make([]uuid.UUID, 0, len(locked))
		subtotal := decimal.Zero
		vatBase := decimal.Zero
		periodKey := assignment.PeriodKey
		for i := range locked {
			m := &locked[i]
			if m.Status != leasing.ChargeStatusPending || m.InvoiceID != nil {
				continue
			}
			survivorIDs = append(survivorIDs, m.ID)
			subtotal = subtotal.Add(m.TotalAmount)
			if m.VATApplicable {
				vatBase = vatBase.Add(m.TotalAmount)
			}
			if periodKey == "" {
				periodKey = m.PeriodKey
			}
		}
		if len(survivorIDs) == 0 {
			return shared.ErrEmptyInvoice
		}

		updates := map[string]interface{}{
			"invoice_id":     assignment.InvoiceID,
			"invoice_number": assignment.InvoiceNumber,
			"status":         leasing.ChargeStatusInvoiced,
			"version":        gorm.Expr("version + 1"),
		}
		if assignment.ActorID != uuid.Nil {
			updates["updated_by"] = assignment.ActorID
		}
		res := tx.Model(&models.ChargeModel{}).
			Where("id IN ?", survivorIDs).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(survivorIDs)) {
			return fmt.Errorf("invoice assignment updated %d of %d charges", res.RowsAffected, len(survivorIDs))
		}

		vatAmount := leasing.ComputeVAT(vatBase, assignment.VATRate)
		chargesUpdated := len(survivorIDs)
		if vatAmount.IsPositive() {
			vatLine := leasing.NewVATCharge(
				assignment.LeaseID, periodKey,
				assignment.InvoiceID, assignment.InvoiceNumber,
				vatAmount, assignment.ActorID,
			)
			if err := tx.Create(models.ChargeModelFromDomain(vatLine)).Error; err != nil {
				return err
			}
			chargesUpdated++
		}

		result = &leasing.InvoiceAssignmentResult{
			InvoiceID:      assignment.InvoiceID,
			InvoiceNumber:  assignment.InvoiceNumber,
			Subtotal:       subtotal,
			VATAmount:      vatAmount,
			Total:          subtotal.Add(vatAmount),
			ChargesUpdated: chargesUpdated,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateCreditLines appends the credit note's lines atomically. The invoice's
// charge rows are locked and the remaining creditable amount is recomputed
// inside the transaction; a concurrent credit note that committed after the
// caller's read shows up here and the loser gets OVER_CREDIT instead of
// double-crediting the charge.
func (r *GormChargeRepository) CreateCreditLines(ctx context.Context, lines []*leasing.Charge) error {
	if len(lines) == 0 {
		return shared.NewDomainError(shared.CodeValidation, "no credit lines to persist")
	}
	invoiceID := lines[0].InvoiceID
	if invoiceID == nil {
		return shared.NewDomainError(shared.CodeValidation, "credit lines must reference an invoice")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []models.ChargeModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("invoice_id = ?", *invoiceID).
			Order("id ASC").
			Find(&locked).Error; err != nil {
			return err
		}

		// Remaining creditable per original charge, from the locked rows:
		// the original's amount plus every credit line (negative) that
		// references it.
		remaining := make(map[uuid.UUID]decimal.Decimal, len(locked))
		for i := range locked {
			m := &locked[i]
			switch {
			case m.Type == leasing.ChargeTypeCreditNote && m.OriginalChargeID != nil:
				orig := *m.OriginalChargeID
				remaining[orig] = remaining[orig].Add(m.TotalAmount)
			case !m.Type.IsSynthetic():
				remaining[m.ID] = remaining[m.ID].Add(m.TotalAmount)
			}
		}

		for _, line := range lines {
			if line.OriginalChargeID == nil {
				return shared.NewDomainError(shared.CodeValidation, "credit line is missing its original charge")
			}
			credit := line.TotalAmount.Neg()
			left, ok := remaining[*line.OriginalChargeID]
			if !ok {
				return shared.NewDomainError(shared.CodeValidation,
					"charge "+line.OriginalChargeID.String()+" does not belong to the invoice")
			}
			if credit.GreaterThan(left) {
				return shared.NewDomainError(shared.CodeOverCredit,
					"credit "+credit.StringFixed(2)+" exceeds remaining creditable "+left.StringFixed(2)+" on charge "+line.OriginalChargeID.String())
			}
			remaining[*line.OriginalChargeID] = left.Sub(credit)
		}

		for _, line := range lines {
			if err := tx.Create(models.ChargeModelFromDomain(line)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SoftDelete marks a charge deleted while keeping the row for audit. The
// version check doubles as the pending-status guard: the domain already
// bumped the version after validating the state.
func (r *GormChargeRepository) SoftDelete(ctx context.Context, charge *leasing.Charge) error {
	model := models.ChargeModelFromDomain(charge)
	result := r.db.WithContext(ctx).
		Model(&models.ChargeModel{}).
		Where("id = ? AND version = ? AND status = ?", charge.ID, charge.Version-1, leasing.ChargeStatusPending).
		Updates(map[string]interface{}{
			"deleted_at":    model.DeletedAt,
			"delete_reason": model.DeleteReason,
			"updated_by":    model.UpdatedBy,
			"version":       charge.Version,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConflict, "charge was modified by another transaction")
	}
	return nil
}

// SumByInvoice returns the signed sum of an invoice's charge rows
func (r *GormChargeRepository) SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.ChargeModel{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("invoice_id = ?", invoiceID).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// MarkInvoicePaid settles an invoice's member charges
func (r *GormChargeRepository) MarkInvoicePaid(ctx context.Context, invoiceID, paymentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ChargeModel{}).
		Where("invoice_id = ? AND status = ?", invoiceID, leasing.ChargeStatusInvoiced).
		Updates(map[string]interface{}{
			"status":     leasing.ChargeStatusPaid,
			"payment_id": paymentID,
			"version":    gorm.Expr("version + 1"),
		}).Error
}

// applyChargeFilter applies charge-specific filter options to the query
func (r *GormChargeRepository) applyChargeFilter(query *gorm.DB, filter leasing.ChargeFilter) *gorm.DB {
	if filter.PeriodKey != nil {
		query = query.Where("period_key = ?", *filter.PeriodKey)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}
	if filter.Search != "" {
		query = query.Where("comment ILIKE ?", "%"+filter.Search+"%")
	}
	return query
}

// applyPagination applies page/size and whitelisted ordering shared by the
// repositories
func applyPagination(query *gorm.DB, filter shared.Filter, allowedFields map[string]bool, defaultField string) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	field := ValidateSortField(filter.OrderBy, allowedFields, defaultField)
	dir := ValidateSortOrder(filter.OrderDir)
	return query.Order(fmt.Sprintf("%s %s", field, dir))
}
