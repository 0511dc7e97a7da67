package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	leasingapp "github.com/fleetlease/backend/internal/application/leasing"
	"github.com/fleetlease/backend/internal/domain/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
)

// ChargeHandler handles billing ledger API endpoints
type ChargeHandler struct {
	BaseHandler
	chargeService *leasingapp.ChargeService
}

// NewChargeHandler creates a new ChargeHandler
func NewChargeHandler(chargeService *leasingapp.ChargeService) *ChargeHandler {
	return &ChargeHandler{
		chargeService: chargeService,
	}
}

// AddChargeRequest represents a request to enter a new charge
type AddChargeRequest struct {
	PeriodKey     string  `json:"period_key" binding:"required" example:"2026-03-01"`
	Type          string  `json:"type" binding:"required,oneof=rental salik mileage late_fee fine refund" example:"rental"`
	Quantity      *string `json:"quantity" binding:"omitempty" example:"4"`
	UnitPrice     *string `json:"unit_price" binding:"omitempty" example:"5.00"`
	TotalAmount   string  `json:"total_amount" binding:"omitempty" example:"1500.00"`
	Comment       string  `json:"comment" binding:"max=500" example:"March rental"`
	VATApplicable *bool   `json:"vat_applicable" example:"true"`
}

// EditChargeRequest represents a request to edit a pending charge
type EditChargeRequest struct {
	ExpectedVersion int     `json:"expected_version" binding:"required,min=1" example:"1"`
	Type            string  `json:"type" binding:"required,oneof=rental salik mileage late_fee fine refund" example:"rental"`
	Quantity        *string `json:"quantity" binding:"omitempty" example:"4"`
	UnitPrice       *string `json:"unit_price" binding:"omitempty" example:"5.00"`
	TotalAmount     string  `json:"total_amount" binding:"omitempty" example:"1600.00"`
	Comment         string  `json:"comment" binding:"max=500" example:"Corrected amount"`
	VATApplicable   *bool   `json:"vat_applicable" example:"true"`
}

// DeleteChargeRequest represents a request to soft-delete a pending charge
type DeleteChargeRequest struct {
	Reason string `json:"reason" binding:"max=500" example:"entered on wrong lease"`
}

// Add enters a new pending charge on a lease's ledger.
// POST /leases/:id/charges
func (h *ChargeHandler) Add(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lease ID")
		return
	}

	var req AddChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	quantity, unitPrice, total, err := parseChargeAmounts(req.Quantity, req.UnitPrice, req.TotalAmount)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	charge, err := h.chargeService.AddCharge(c.Request.Context(), leasingapp.AddChargeRequest{
		LeaseID:       leaseID,
		PeriodKey:     req.PeriodKey,
		Type:          leasing.ChargeType(req.Type),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		TotalAmount:   total,
		Comment:       req.Comment,
		VATApplicable: resolveVATApplicable(req.VATApplicable, leasing.ChargeType(req.Type)),
	}, getActor(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toChargeResponse(charge))
}

// Edit updates a pending charge under optimistic concurrency.
// PUT /charges/:id
func (h *ChargeHandler) Edit(c *gin.Context) {
	chargeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid charge ID")
		return
	}

	var req EditChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	quantity, unitPrice, total, err := parseChargeAmounts(req.Quantity, req.UnitPrice, req.TotalAmount)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	charge, err := h.chargeService.EditCharge(c.Request.Context(), leasingapp.EditChargeRequest{
		ChargeID:        chargeID,
		ExpectedVersion: req.ExpectedVersion,
		Type:            leasing.ChargeType(req.Type),
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		TotalAmount:     total,
		Comment:         req.Comment,
		VATApplicable:   resolveVATApplicable(req.VATApplicable, leasing.ChargeType(req.Type)),
	}, getActor(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toChargeResponse(charge))
}

// Delete soft-deletes a pending charge.
// DELETE /charges/:id
func (h *ChargeHandler) Delete(c *gin.Context) {
	chargeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid charge ID")
		return
	}

	// The reason body is optional; a bare DELETE is valid.
	var req DeleteChargeRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.chargeService.DeleteCharge(c.Request.Context(), chargeID, req.Reason, getActor(c)); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// Get returns a single charge.
// GET /charges/:id
func (h *ChargeHandler) Get(c *gin.Context) {
	chargeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid charge ID")
		return
	}

	charge, err := h.chargeService.GetCharge(c.Request.Context(), chargeID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toChargeResponse(charge))
}

// ListChargesQuery narrows a ledger listing
type ListChargesQuery struct {
	Page           int    `form:"page" binding:"omitempty,min=1"`
	PageSize       int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	PeriodKey      string `form:"period_key"`
	Type           string `form:"type" binding:"omitempty,oneof=rental salik mileage late_fee fine refund credit_note vat"`
	Status         string `form:"status" binding:"omitempty,oneof=pending invoiced paid"`
	From           string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To             string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	IncludeDeleted bool   `form:"include_deleted"`
}

// List returns a lease's charges, newest first.
// GET /leases/:id/charges
func (h *ChargeHandler) List(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lease ID")
		return
	}

	var q ListChargesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}

	filter := leasing.ChargeFilter{
		Filter:         shared.Filter{Page: q.Page, PageSize: q.PageSize},
		IncludeDeleted: q.IncludeDeleted,
	}
	if q.PeriodKey != "" {
		filter.PeriodKey = &q.PeriodKey
	}
	if q.Type != "" {
		t := leasing.ChargeType(q.Type)
		filter.Type = &t
	}
	if q.Status != "" {
		s := leasing.ChargeStatus(q.Status)
		filter.Status = &s
	}
	if q.From != "" {
		from, _ := time.Parse("2006-01-02", q.From)
		filter.FromDate = &from
	}
	if q.To != "" {
		// Inclusive end date: extend to the end of the day.
		to, _ := time.Parse("2006-01-02", q.To)
		to = to.Add(24*time.Hour - time.Nanosecond)
		filter.ToDate = &to
	}

	charges, total, err := h.chargeService.ListCharges(c.Request.Context(), leaseID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, toChargeResponses(charges), total, q.Page, q.PageSize)
}

// resolveVATApplicable applies the wire default when vat_applicable is
// omitted: leasing charges attract VAT unless they are refunds.
func resolveVATApplicable(vat *bool, chargeType leasing.ChargeType) bool {
	if vat != nil {
		return *vat
	}
	return chargeType != leasing.ChargeTypeRefund
}

// parseChargeAmounts converts the wire's string amounts to decimals. Amounts
// travel as strings so client-side float formatting never distorts money.
func parseChargeAmounts(quantity, unitPrice *string, totalAmount string) (*decimal.Decimal, *decimal.Decimal, decimal.Decimal, error) {
	var qty, unit *decimal.Decimal
	total := decimal.Zero

	if quantity != nil && *quantity != "" {
		d, err := decimal.NewFromString(*quantity)
		if err != nil {
			return nil, nil, decimal.Zero, shared.NewDomainError(shared.CodeValidation, "invalid quantity: "+*quantity)
		}
		qty = &d
	}
	if unitPrice != nil && *unitPrice != "" {
		d, err := decimal.NewFromString(*unitPrice)
		if err != nil {
			return nil, nil, decimal.Zero, shared.NewDomainError(shared.CodeValidation, "invalid unit price: "+*unitPrice)
		}
		unit = &d
	}
	if totalAmount != "" {
		d, err := decimal.NewFromString(totalAmount)
		if err != nil {
			return nil, nil, decimal.Zero, shared.NewDomainError(shared.CodeValidation, "invalid total amount: "+totalAmount)
		}
		total = d
	}
	return qty, unit, total, nil
}
