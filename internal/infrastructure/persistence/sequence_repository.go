package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
	"github.com/fleetlease/backend/internal/infrastructure/persistence/models"
)

// GormSequenceRepository implements leasing.SequenceRepository using GORM
type GormSequenceRepository struct {
	db *gorm.DB
}

// Compile-time interface check
var _ leasing.SequenceRepository = (*GormSequenceRepository)(nil)

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// Next consumes the next number for the named sequence. The increment runs
// in its own transaction with the sequence row locked, so the lock is held
// only for the read-increment-write and two callers never see the same
// number. A caller whose later work fails leaves a gap in the sequence.
func (r *GormSequenceRepository) Next(ctx context.Context, name string) (string, error) {
	var number string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.DocumentSequenceModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "name = ?", name).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.NewDomainError(shared.CodeNotFound, "document sequence not found: "+name)
			}
			return err
		}

		seq := model.ToDomain()
		number = seq.Advance()

		return tx.Model(&models.DocumentSequenceModel{}).
			Where("name = ?", name).
			Updates(map[string]interface{}{
				"next_value": seq.NextValue,
				"updated_at": time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

// PreviewNext reads the upcoming number without locking. A concurrent Next
// may consume it before the caller acts on it.
func (r *GormSequenceRepository) PreviewNext(ctx context.Context, name string) (string, error) {
	var model models.DocumentSequenceModel
	if err := r.db.WithContext(ctx).
		First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", shared.NewDomainError(shared.CodeNotFound, "document sequence not found: "+name)
		}
		return "", err
	}
	return model.ToDomain().Peek(), nil
}
