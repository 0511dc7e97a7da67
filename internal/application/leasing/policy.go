package leasing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/shared"
)

// BillingPolicy carries the tunable billing rules. Values come from
// configuration; the defaults mirror UAE leasing practice.
type BillingPolicy struct {
	VATRate       decimal.Decimal
	GraceDays     int
	SettleEpsilon decimal.Decimal
}

// DefaultBillingPolicy returns the standard policy: 5% flat VAT, three days
// of grace after the period start, one fils of settlement tolerance.
func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		VATRate:       decimal.NewFromFloat(0.05),
		GraceDays:     3,
		SettleEpsilon: decimal.NewFromFloat(0.01),
	}
}

// Actor is the caller identity pre-resolved by the transport layer. The
// services trust the flag; deciding who may mutate is not their job.
type Actor struct {
	ID        uuid.UUID
	MayMutate bool
}

func (a Actor) requireMutate() error {
	if !a.MayMutate {
		return shared.ErrForbidden
	}
	return nil
}
