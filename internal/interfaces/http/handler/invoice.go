package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	leasingapp "github.com/fleetlease/backend/internal/application/leasing"
)

// InvoiceHandler handles invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *leasingapp.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *leasingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
	}
}

// GenerateInvoiceRequest represents a request to invoice a set of charges
type GenerateInvoiceRequest struct {
	PeriodKey string   `json:"period_key" binding:"required" example:"2026-03-01"`
	ChargeIDs []string `json:"charge_ids" binding:"required,min=1,dive,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// Generate groups the requested pending charges into one numbered invoice.
// POST /leases/:id/invoices
func (h *InvoiceHandler) Generate(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lease ID")
		return
	}

	var req GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	chargeIDs := make([]uuid.UUID, 0, len(req.ChargeIDs))
	for _, raw := range req.ChargeIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid charge ID: "+raw)
			return
		}
		chargeIDs = append(chargeIDs, id)
	}

	result, err := h.invoiceService.Generate(c.Request.Context(), leasingapp.GenerateInvoiceRequest{
		LeaseID:   leaseID,
		PeriodKey: req.PeriodKey,
		ChargeIDs: chargeIDs,
	}, getActor(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// NextNumberResponse carries a previewed document number
type NextNumberResponse struct {
	NextNumber string `json:"next_number" example:"INV-LE-0042"`
}

// PreviewNextNumber returns the upcoming invoice number without consuming it.
// GET /invoices/next-number
func (h *InvoiceHandler) PreviewNextNumber(c *gin.Context) {
	number, err := h.invoiceService.PreviewNextNumber(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, NextNumberResponse{NextNumber: number})
}

// Get returns one invoice with its member charges and balance.
// GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	summary, err := h.invoiceService.GetInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

// List returns a lease's invoices, oldest number first.
// GET /leases/:id/invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lease ID")
		return
	}

	summaries, err := h.invoiceService.ListInvoices(c.Request.Context(), leaseID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summaries)
}
