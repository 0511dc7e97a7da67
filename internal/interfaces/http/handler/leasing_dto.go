package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetlease/backend/internal/domain/leasing"
)

// ChargeResponse represents one ledger line in API responses
type ChargeResponse struct {
	ID               string           `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	LeaseID          string           `json:"lease_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	PeriodKey        string           `json:"period_key" example:"2026-03-01"`
	Type             string           `json:"type" example:"rental" enums:"rental,salik,mileage,late_fee,fine,refund,credit_note,vat"`
	Quantity         *decimal.Decimal `json:"quantity,omitempty" example:"4"`
	UnitPrice        *decimal.Decimal `json:"unit_price,omitempty" example:"5.00"`
	TotalAmount      decimal.Decimal  `json:"total_amount" example:"1500.00"`
	Currency         string           `json:"currency" example:"AED"`
	Comment          string           `json:"comment" example:"March rental"`
	Status           string           `json:"status" example:"pending" enums:"pending,invoiced,paid"`
	VATApplicable    bool             `json:"vat_applicable" example:"true"`
	InvoiceID        *string          `json:"invoice_id,omitempty"`
	InvoiceNumber    *string          `json:"invoice_number,omitempty" example:"INV-LE-0042"`
	PaymentID        *string          `json:"payment_id,omitempty"`
	CreditNoteNumber *string          `json:"credit_note_number,omitempty" example:"CN-LE-0007"`
	OriginalChargeID *string          `json:"original_charge_id,omitempty"`
	DocumentURL      string           `json:"document_url,omitempty"`
	DeleteReason     string           `json:"delete_reason,omitempty"`
	DeletedAt        *string          `json:"deleted_at,omitempty"`
	CreatedAt        string           `json:"created_at" example:"2026-03-01T12:00:00Z"`
	UpdatedAt        string           `json:"updated_at" example:"2026-03-01T12:00:00Z"`
	Version          int              `json:"version" example:"1"`
}

// toChargeResponse converts a domain charge to the API shape
func toChargeResponse(c *leasing.Charge) ChargeResponse {
	resp := ChargeResponse{
		ID:            c.ID.String(),
		LeaseID:       c.LeaseID.String(),
		PeriodKey:     c.PeriodKey,
		Type:          c.Type.String(),
		Quantity:      c.Quantity,
		UnitPrice:     c.UnitPrice,
		TotalAmount:   c.TotalAmount,
		Currency:      leasing.Currency,
		Comment:       c.Comment,
		Status:        c.Status.String(),
		VATApplicable: c.VATApplicable,
		DocumentURL:   c.DocumentURL,
		DeleteReason:  c.DeleteReason,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
		Version:       c.Version,
	}
	if c.InvoiceID != nil {
		s := c.InvoiceID.String()
		resp.InvoiceID = &s
	}
	resp.InvoiceNumber = c.InvoiceNumber
	if c.PaymentID != nil {
		s := c.PaymentID.String()
		resp.PaymentID = &s
	}
	resp.CreditNoteNumber = c.CreditNoteNumber
	if c.OriginalChargeID != nil {
		s := c.OriginalChargeID.String()
		resp.OriginalChargeID = &s
	}
	if c.DeletedAt != nil {
		s := c.DeletedAt.Format(time.RFC3339)
		resp.DeletedAt = &s
	}
	return resp
}

func toChargeResponses(charges []*leasing.Charge) []ChargeResponse {
	out := make([]ChargeResponse, 0, len(charges))
	for _, c := range charges {
		out = append(out, toChargeResponse(c))
	}
	return out
}

// PaymentResponse represents a received payment in API responses
type PaymentResponse struct {
	ID          string          `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	LeaseID     string          `json:"lease_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	Amount      decimal.Decimal `json:"amount" example:"3000.00"`
	Currency    string          `json:"currency" example:"AED"`
	Method      string          `json:"method" example:"bank_transfer" enums:"bank_transfer,cash,card,cheque,online"`
	Reference   string          `json:"reference,omitempty" example:"TRN-99183"`
	Notes       string          `json:"notes,omitempty"`
	Status      string          `json:"status" example:"received" enums:"received,allocated"`
	ReceivedAt  string          `json:"received_at" example:"2026-03-05T09:30:00Z"`
	DocumentURL string          `json:"document_url,omitempty"`
	CreatedAt   string          `json:"created_at" example:"2026-03-05T09:31:00Z"`
	UpdatedAt   string          `json:"updated_at" example:"2026-03-05T09:31:00Z"`
	Version     int             `json:"version" example:"1"`
}

// toPaymentResponse converts a domain payment to the API shape
func toPaymentResponse(p *leasing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID.String(),
		LeaseID:     p.LeaseID.String(),
		Amount:      p.Amount,
		Currency:    leasing.Currency,
		Method:      p.Method.String(),
		Reference:   p.Reference,
		Notes:       p.Notes,
		Status:      p.Status.String(),
		ReceivedAt:  p.ReceivedAt.Format(time.RFC3339),
		DocumentURL: p.DocumentURL,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
		Version:     p.Version,
	}
}

func toPaymentResponses(payments []*leasing.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	return out
}
