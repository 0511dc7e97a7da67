package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	leasingapp "github.com/fleetlease/backend/internal/application/leasing"
	"github.com/fleetlease/backend/internal/domain/shared"
)

// CreditNoteHandler handles credit note API endpoints
type CreditNoteHandler struct {
	BaseHandler
	creditNoteService *leasingapp.CreditNoteService
}

// NewCreditNoteHandler creates a new CreditNoteHandler
func NewCreditNoteHandler(creditNoteService *leasingapp.CreditNoteService) *CreditNoteHandler {
	return &CreditNoteHandler{
		creditNoteService: creditNoteService,
	}
}

// CreditNoteLineRequest requests a credit against one invoiced charge. An
// omitted amount credits the full remaining uncredited amount of the charge.
type CreditNoteLineRequest struct {
	OriginalChargeID string  `json:"original_charge_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Amount           *string `json:"amount" binding:"omitempty" example:"250.00"`
}

// IssueCreditNoteRequest represents a request to issue a credit note
type IssueCreditNoteRequest struct {
	Lines  []CreditNoteLineRequest `json:"lines" binding:"required,min=1,dive"`
	Reason string                  `json:"reason" binding:"required,max=500" example:"billing dispute resolved in customer's favour"`
}

// Issue issues a credit note against an invoice's charges.
// POST /invoices/:id/credit-notes
func (h *CreditNoteHandler) Issue(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req IssueCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lines := make([]leasingapp.CreditNoteLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		chargeID, err := uuid.Parse(line.OriginalChargeID)
		if err != nil {
			h.BadRequest(c, "Invalid charge ID: "+line.OriginalChargeID)
			return
		}
		input := leasingapp.CreditNoteLineInput{OriginalChargeID: chargeID}
		if line.Amount != nil && *line.Amount != "" {
			amount, err := decimal.NewFromString(*line.Amount)
			if err != nil {
				h.HandleDomainError(c, shared.NewDomainError(shared.CodeValidation, "invalid credit amount: "+*line.Amount))
				return
			}
			input.Amount = &amount
		}
		lines = append(lines, input)
	}

	result, err := h.creditNoteService.Issue(c.Request.Context(), leasingapp.IssueCreditNoteRequest{
		InvoiceID: invoiceID,
		Lines:     lines,
		Reason:    req.Reason,
	}, getActor(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// PreviewNextNumber returns the upcoming credit note number without
// consuming it.
// GET /credit-notes/next-number
func (h *CreditNoteHandler) PreviewNextNumber(c *gin.Context) {
	number, err := h.creditNoteService.PreviewNextNumber(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, NextNumberResponse{NextNumber: number})
}
