package leasing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
	"github.com/fleetlease/backend/internal/infrastructure/telemetry"
)

// StatementService projects the account statement and the billing-periods
// view. Both are pure read models over the charge and application tables.
type StatementService struct {
	chargeRepo  leasing.ChargeRepository
	paymentRepo leasing.PaymentRepository
	policy      BillingPolicy
	now         func() time.Time
}

// NewStatementService creates a new StatementService
func NewStatementService(
	chargeRepo leasing.ChargeRepository,
	paymentRepo leasing.PaymentRepository,
	policy BillingPolicy,
) *StatementService {
	return &StatementService{
		chargeRepo:  chargeRepo,
		paymentRepo: paymentRepo,
		policy:      policy,
		now:         time.Now,
	}
}

// Statement is the replayed account history plus its closing summary.
type Statement struct {
	LeaseID       uuid.UUID                `json:"lease_id"`
	Entries       []leasing.StatementEntry `json:"entries"`
	TotalCharges  decimal.Decimal          `json:"total_charges"`
	TotalPayments decimal.Decimal          `json:"total_payments"`
	Balance       decimal.Decimal          `json:"balance"`
}

// Statement replays a lease's ledger into a running-balance statement.
// The closing balance always equals total charges minus total payments;
// if it ever did not, a write path would have broken conservation.
func (s *StatementService) Statement(ctx context.Context, leaseID uuid.UUID, filter leasing.StatementFilter) (*Statement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "statement", "build")
	defer span.End()

	charges, err := fetchAllCharges(ctx, s.chargeRepo, leaseID, leasing.ChargeFilter{})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	applications, err := s.paymentRepo.FindApplicationsByLease(ctx, leaseID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	entries := leasing.BuildStatement(charges, applications, filter)

	totalCharges := decimal.Zero
	totalPayments := decimal.Zero
	for _, e := range entries {
		if e.Kind == leasing.StatementEntryCharge {
			totalCharges = totalCharges.Add(e.Amount)
		} else {
			totalPayments = totalPayments.Add(e.Amount.Neg())
		}
	}

	telemetry.SetAttributes(span,
		"lease_id", leaseID.String(),
		"entries", len(entries),
	)

	return &Statement{
		LeaseID:       leaseID,
		Entries:       entries,
		TotalCharges:  totalCharges,
		TotalPayments: totalPayments,
		Balance:       totalCharges.Sub(totalPayments),
	}, nil
}

// BillingPeriod is one period of the schedule with its derived status.
type BillingPeriod struct {
	Period       leasing.Period       `json:"period"`
	Key          string               `json:"key"`
	Status       leasing.PeriodStatus `json:"status"`
	ChargeCount  int                  `json:"charge_count"`
	TotalCharged decimal.Decimal      `json:"total_charged"`
	BalanceDue   decimal.Decimal      `json:"balance_due"`
	HasInvoice   bool                 `json:"has_invoice"`
}

// BillingPeriodsRequest describes the lease term to project
type BillingPeriodsRequest struct {
	LeaseID    uuid.UUID
	LeaseStart time.Time
	LeaseEnd   time.Time
}

// periodLookahead extends the schedule past the lease end so the next few
// upcoming windows are always visible.
const periodLookahead = 3

// BillingPeriods derives the per-period schedule view. Statuses are
// computed at read time from today's date and are never stored.
func (s *StatementService) BillingPeriods(ctx context.Context, req BillingPeriodsRequest) ([]BillingPeriod, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "statement", "billing_periods")
	defer span.End()

	if req.LeaseEnd.Before(req.LeaseStart) {
		err := shared.NewDomainError(shared.CodeValidation, "lease end precedes lease start")
		telemetry.RecordError(span, err)
		return nil, err
	}

	base := leasing.PeriodsBetween(req.LeaseStart, req.LeaseEnd)
	periods := leasing.Schedule(req.LeaseStart, len(base)+periodLookahead)

	charges, err := fetchAllCharges(ctx, s.chargeRepo, req.LeaseID, leasing.ChargeFilter{})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	byPeriod := make(map[string][]*leasing.Charge)
	for _, c := range charges {
		byPeriod[c.PeriodKey] = append(byPeriod[c.PeriodKey], c)
	}

	now := s.now()
	out := make([]BillingPeriod, 0, len(periods))
	for _, p := range periods {
		periodCharges := byPeriod[p.Key()]

		totalCharged := decimal.Zero
		hasInvoice := false
		for _, c := range periodCharges {
			totalCharged = totalCharged.Add(c.TotalAmount)
			if c.InvoiceID != nil {
				hasInvoice = true
			}
		}

		balanceDue := decimal.Zero
		for _, inv := range leasing.GroupInvoices(periodCharges) {
			applied, err := s.paymentRepo.SumAppliedByInvoice(ctx, inv.ID)
			if err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
			balanceDue = balanceDue.Add(inv.BalanceDue(applied))
		}

		out = append(out, BillingPeriod{
			Period:       p,
			Key:          p.Key(),
			Status:       leasing.ClassifyPeriod(p, hasInvoice, balanceDue, now, s.policy.GraceDays, s.policy.SettleEpsilon),
			ChargeCount:  len(periodCharges),
			TotalCharged: totalCharged,
			BalanceDue:   balanceDue,
			HasInvoice:   hasInvoice,
		})
	}

	telemetry.SetAttributes(span,
		"lease_id", req.LeaseID.String(),
		"periods", len(out),
	)
	return out, nil
}
