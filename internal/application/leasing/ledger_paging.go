package leasing

import (
	"context"

	"github.com/google/uuid"

	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
)

// ledgerBatchSize is the batch size for internal full-ledger reads.
const ledgerBatchSize = 500

// fetchAllCharges loads every charge matching the filter, paging until a
// short batch. A long-lived lease's ledger is never truncated at a fixed
// row limit. Ordering is pinned to id so page windows stay disjoint.
func fetchAllCharges(ctx context.Context, repo leasing.ChargeRepository, leaseID uuid.UUID, filter leasing.ChargeFilter) ([]*leasing.Charge, error) {
	filter.Filter = shared.Filter{Page: 1, PageSize: ledgerBatchSize, OrderBy: "id"}

	var all []*leasing.Charge
	for {
		batch, _, err := repo.FindByLease(ctx, leaseID, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < ledgerBatchSize {
			return all, nil
		}
		filter.Filter.Page++
	}
}

// fetchAllPayments is the payment-side counterpart of fetchAllCharges.
func fetchAllPayments(ctx context.Context, repo leasing.PaymentRepository, leaseID uuid.UUID, filter leasing.PaymentFilter) ([]*leasing.Payment, error) {
	filter.Filter = shared.Filter{Page: 1, PageSize: ledgerBatchSize, OrderBy: "id"}

	var all []*leasing.Payment
	for {
		batch, _, err := repo.FindByLease(ctx, leaseID, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < ledgerBatchSize {
			return all, nil
		}
		filter.Filter.Page++
	}
}
