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

// PaymentHandler handles payment API endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *leasingapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *leasingapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// RecordPaymentRequest represents a request to record a received payment
type RecordPaymentRequest struct {
	Amount     string `json:"amount" binding:"required" example:"3000.00"`
	Method     string `json:"method" binding:"required,oneof=bank_transfer cash card cheque online" example:"bank_transfer"`
	Reference  string `json:"reference" binding:"max=200" example:"TRN-99183"`
	Notes      string `json:"notes" binding:"max=500"`
	ReceivedAt string `json:"received_at" binding:"omitempty" example:"2026-03-05T09:30:00Z"`
}

// Record enters a received payment on the lease account.
// POST /leases/:id/payments
func (h *PaymentHandler) Record(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lease ID")
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.HandleDomainError(c, shared.NewDomainError(shared.CodeValidation, "invalid amount: "+req.Amount))
		return
	}

	var receivedAt time.Time
	if req.ReceivedAt != "" {
		receivedAt, err = time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			h.BadRequest(c, "received_at must be RFC3339")
			return
		}
	}

	payment, err := h.paymentService.RecordPayment(c.Request.Context(), leasingapp.RecordPaymentRequest{
		LeaseID:    leaseID,
		Amount:     amount,
		Method:     leasing.PaymentMethod(req.Method),
		Reference:  req.Reference,
		Notes:      req.Notes,
		ReceivedAt: receivedAt,
	}, getActor(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toPaymentResponse(payment))
}

// ApplyPaymentRequest represents a request to allocate part of a payment
type ApplyPaymentRequest struct {
	InvoiceID string `json:"invoice_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Amount    string `json:"amount" binding:"required" example:"1575.00"`
}

// Apply allocates part of a payment to one invoice.
// POST /payments/:id/applications
func (h *PaymentHandler) Apply(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	var req ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.HandleDomainError(c, shared.NewDomainError(shared.CodeValidation, "invalid amount: "+req.Amount))
		return
	}

	result, err := h.paymentService.ApplyPayment(c.Request.Context(), leasingapp.ApplyPaymentRequest{
		PaymentID: paymentID,
		InvoiceID: invoiceID,
		Amount:    amount,
	}, getActor(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// AllocateOldestFirst spreads a payment's remainder across outstanding
// invoices, oldest first.
// POST /payments/:id/allocate
func (h *PaymentHandler) AllocateOldestFirst(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	results, err := h.paymentService.AllocateOldestFirst(c.Request.Context(), paymentID, getActor(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, results)
}

// Get returns a single payment.
// GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toPaymentResponse(payment))
}

// ListPaymentsQuery narrows a payment listing
type ListPaymentsQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Method   string `form:"method" binding:"omitempty,oneof=bank_transfer cash card cheque online"`
	Status   string `form:"status" binding:"omitempty,oneof=received allocated"`
	From     string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To       string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// List returns a lease's payments, newest first.
// GET /leases/:id/payments
func (h *PaymentHandler) List(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lease ID")
		return
	}

	var q ListPaymentsQuery
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

	filter := leasing.PaymentFilter{
		Filter: shared.Filter{Page: q.Page, PageSize: q.PageSize},
	}
	if q.Method != "" {
		m := leasing.PaymentMethod(q.Method)
		filter.Method = &m
	}
	if q.Status != "" {
		s := leasing.PaymentStatus(q.Status)
		filter.Status = &s
	}
	if q.From != "" {
		from, _ := time.Parse("2006-01-02", q.From)
		filter.FromDate = &from
	}
	if q.To != "" {
		to, _ := time.Parse("2006-01-02", q.To)
		to = to.Add(24*time.Hour - time.Nanosecond)
		filter.ToDate = &to
	}

	payments, total, err := h.paymentService.ListPayments(c.Request.Context(), leaseID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, toPaymentResponses(payments), total, q.Page, q.PageSize)
}

// UnallocatedPaymentResponse is a payment with money left to allocate
type UnallocatedPaymentResponse struct {
	Payment   PaymentResponse `json:"payment"`
	Applied   decimal.Decimal `json:"applied" example:"1000.00"`
	Remaining decimal.Decimal `json:"remaining" example:"2000.00"`
}

// ListUnallocated returns payments with an unallocated remainder.
// GET /leases/:id/payments/unallocated
func (h *PaymentHandler) ListUnallocated(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lease ID")
		return
	}

	unallocated, err := h.paymentService.ListUnallocated(c.Request.Context(), leaseID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	out := make([]UnallocatedPaymentResponse, 0, len(unallocated))
	for _, u := range unallocated {
		out = append(out, UnallocatedPaymentResponse{
			Payment:   toPaymentResponse(u.Payment),
			Applied:   u.Applied,
			Remaining: u.Remaining,
		})
	}

	h.Success(c, out)
}
