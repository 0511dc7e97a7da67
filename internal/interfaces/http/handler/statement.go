package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	leasingapp "github.com/fleetlease/backend/internal/application/leasing"
	"github.com/fleetlease/backend/internal/domain/leasing"
)

// StatementHandler handles statement and billing-period API endpoints
type StatementHandler struct {
	BaseHandler
	statementService *leasingapp.StatementService
}

// NewStatementHandler creates a new StatementHandler
func NewStatementHandler(statementService *leasingapp.StatementService) *StatementHandler {
	return &StatementHandler{
		statementService: statementService,
	}
}

// StatementQuery narrows the statement replay
type StatementQuery struct {
	From     string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To       string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Types    string `form:"types"`
	Statuses string `form:"statuses"`
}

// Statement replays a lease's ledger into a running-balance statement.
// GET /leases/:id/statement
func (h *StatementHandler) Statement(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lease ID")
		return
	}

	var q StatementQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := leasing.StatementFilter{}
	if q.From != "" {
		from, _ := time.Parse("2006-01-02", q.From)
		filter.From = &from
	}
	if q.To != "" {
		to, _ := time.Parse("2006-01-02", q.To)
		to = to.Add(24*time.Hour - time.Nanosecond)
		filter.To = &to
	}
	for _, t := range splitCSV(q.Types) {
		chargeType := leasing.ChargeType(t)
		if !chargeType.IsValid() {
			h.BadRequest(c, "Invalid charge type: "+t)
			return
		}
		filter.Types = append(filter.Types, chargeType)
	}
	for _, s := range splitCSV(q.Statuses) {
		status := leasing.ChargeStatus(s)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid charge status: "+s)
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	statement, err := h.statementService.Statement(c.Request.Context(), leaseID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, statement)
}

// BillingPeriodsQuery bounds the schedule projection
type BillingPeriodsQuery struct {
	LeaseStart string `form:"lease_start" binding:"required,datetime=2006-01-02"`
	LeaseEnd   string `form:"lease_end" binding:"required,datetime=2006-01-02"`
}

// BillingPeriods derives the per-period schedule view for a lease term.
// GET /leases/:id/billing-periods
func (h *StatementHandler) BillingPeriods(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lease ID")
		return
	}

	var q BillingPeriodsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	leaseStart, _ := time.Parse("2006-01-02", q.LeaseStart)
	leaseEnd, _ := time.Parse("2006-01-02", q.LeaseEnd)

	periods, err := h.statementService.BillingPeriods(c.Request.Context(), leasingapp.BillingPeriodsRequest{
		LeaseID:    leaseID,
		LeaseStart: leaseStart,
		LeaseEnd:   leaseEnd,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, periods)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
