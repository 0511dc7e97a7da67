package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// AuditedAggregateModel provides common persistence fields for audited
// aggregate roots. It extends AggregateModel with actor attribution.
type AuditedAggregateModel struct {
	AggregateModel
	CreatedBy *uuid.UUID `gorm:"type:uuid;index"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid"`
}

// FromDomainAuditedAggregateRoot populates AuditedAggregateModel from domain AuditedAggregateRoot
func (m *AuditedAggregateModel) FromDomainAuditedAggregateRoot(a shared.AuditedAggregateRoot) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.CreatedBy = a.CreatedBy
	m.UpdatedBy = a.UpdatedBy
}

// ToDomainAudited converts the model fields back to an AuditedAggregateRoot
func (m *AuditedAggregateModel) ToDomainAudited() shared.AuditedAggregateRoot {
	return shared.AuditedAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.ToDomain(),
			Version:    m.Version,
		},
		CreatedBy: m.CreatedBy,
		UpdatedBy: m.UpdatedBy,
	}
}
