package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is what every ledger entity exposes: an identity and its
// lifecycle timestamps. Charges, payments and sequences all embed
// BaseEntity to satisfy it.
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries the identity fields shared by all ledger entities.
// IDs are minted in the domain, not by the database, so a charge keeps
// its identity across the unsaved-to-saved boundary.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity mints an identity with both timestamps set to now.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (e *BaseEntity) GetID() uuid.UUID { return e.ID }

func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }

func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }
