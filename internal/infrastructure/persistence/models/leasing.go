package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fleetlease/backend/internal/domain/leasing"
)

// ChargeModel is the persistence model for the Charge aggregate root.
// Invoices and credit notes have no tables of their own; the invoice and
// credit note columns here are the only place they exist.
type ChargeModel struct {
	AuditedAggregateModel
	LeaseID          uuid.UUID            `gorm:"type:uuid;not null;index:idx_charges_lease_period,priority:1"`
	PeriodKey        string               `gorm:"type:varchar(10);not null;index:idx_charges_lease_period,priority:2"`
	Type             leasing.ChargeType   `gorm:"type:varchar(20);not null;index"`
	Quantity         *decimal.Decimal     `gorm:"type:decimal(18,4)"`
	UnitPrice        *decimal.Decimal     `gorm:"type:decimal(18,4)"`
	TotalAmount      decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Comment          string               `gorm:"type:text"`
	Status           leasing.ChargeStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	VATApplicable    bool                 `gorm:"not null;default:false"`
	InvoiceID        *uuid.UUID           `gorm:"type:uuid;index"`
	InvoiceNumber    *string              `gorm:"type:varchar(30);index"`
	PaymentID        *uuid.UUID           `gorm:"type:uuid;index"`
	CreditNoteNumber *string              `gorm:"type:varchar(30);index"`
	OriginalChargeID *uuid.UUID           `gorm:"type:uuid;index"`
	DocumentURL      string               `gorm:"type:text"`
	DeleteReason     string               `gorm:"type:varchar(500)"`
	DeletedAt        gorm.DeletedAt       `gorm:"index"`
}

// TableName returns the table name for GORM
func (ChargeModel) TableName() string {
	return "lease_charges"
}

// ToDomain converts the persistence model to a domain Charge.
func (m *ChargeModel) ToDomain() *leasing.Charge {
	c := &leasing.Charge{
		AuditedAggregateRoot: m.ToDomainAudited(),
		LeaseID:              m.LeaseID,
		PeriodKey:            m.PeriodKey,
		Type:                 m.Type,
		Quantity:             m.Quantity,
		UnitPrice:            m.UnitPrice,
		TotalAmount:          m.TotalAmount,
		Comment:              m.Comment,
		Status:               m.Status,
		VATApplicable:        m.VATApplicable,
		InvoiceID:            m.InvoiceID,
		InvoiceNumber:        m.InvoiceNumber,
		PaymentID:            m.PaymentID,
		CreditNoteNumber:     m.CreditNoteNumber,
		OriginalChargeID:     m.OriginalChargeID,
		DocumentURL:          m.DocumentURL,
		DeleteReason:         m.DeleteReason,
	}
	if m.DeletedAt.Valid {
		deletedAt := m.DeletedAt.Time
		c.DeletedAt = &deletedAt
	}
	return c
}

// FromDomain populates the persistence model from a domain Charge.
func (m *ChargeModel) FromDomain(c *leasing.Charge) {
	m.FromDomainAuditedAggregateRoot(c.AuditedAggregateRoot)
	m.LeaseID = c.LeaseID
	m.PeriodKey = c.PeriodKey
	m.Type = c.Type
	m.Quantity = c.Quantity
	m.UnitPrice = c.UnitPrice
	m.TotalAmount = c.TotalAmount
	m.Comment = c.Comment
	m.Status = c.Status
	m.VATApplicable = c.VATApplicable
	m.InvoiceID = c.InvoiceID
	m.InvoiceNumber = c.InvoiceNumber
	m.PaymentID = c.PaymentID
	m.CreditNoteNumber = c.CreditNoteNumber
	m.OriginalChargeID = c.OriginalChargeID
	m.DocumentURL = c.DocumentURL
	m.DeleteReason = c.DeleteReason
	if c.DeletedAt != nil {
		m.DeletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	}
}

// ChargeModelFromDomain creates a ChargeModel from a domain Charge
func ChargeModelFromDomain(c *leasing.Charge) *ChargeModel {
	m := &ChargeModel{}
	m.FromDomain(c)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	AuditedAggregateModel
	LeaseID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Method      leasing.PaymentMethod `gorm:"type:varchar(20);not null"`
	Reference   string                `gorm:"type:varchar(100)"`
	Notes       string                `gorm:"type:text"`
	Status      leasing.PaymentStatus `gorm:"type:varchar(20);not null;default:'received';index"`
	ReceivedAt  time.Time             `gorm:"not null;index"`
	DocumentURL string                `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "lease_payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *leasing.Payment {
	return &leasing.Payment{
		AuditedAggregateRoot: m.ToDomainAudited(),
		LeaseID:              m.LeaseID,
		Amount:               m.Amount,
		Method:               m.Method,
		Reference:            m.Reference,
		Notes:                m.Notes,
		Status:               m.Status,
		ReceivedAt:           m.ReceivedAt,
		DocumentURL:          m.DocumentURL,
	}
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *leasing.Payment) {
	m.FromDomainAuditedAggregateRoot(p.AuditedAggregateRoot)
	m.LeaseID = p.LeaseID
	m.Amount = p.Amount
	m.Method = p.Method
	m.Reference = p.Reference
	m.Notes = p.Notes
	m.Status = p.Status
	m.ReceivedAt = p.ReceivedAt
	m.DocumentURL = p.DocumentURL
}

// PaymentModelFromDomain creates a PaymentModel from a domain Payment
func PaymentModelFromDomain(p *leasing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentApplicationModel is the persistence model for payment allocations.
// Rows are append-only.
type PaymentApplicationModel struct {
	BaseModel
	PaymentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	AppliedAt time.Time       `gorm:"not null"`
	AppliedBy *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (PaymentApplicationModel) TableName() string {
	return "lease_payment_applications"
}

// ToDomain converts the persistence model to a domain PaymentApplication.
func (m *PaymentApplicationModel) ToDomain() *leasing.PaymentApplication {
	return &leasing.PaymentApplication{
		BaseEntity: m.BaseModel.ToDomain(),
		PaymentID:  m.PaymentID,
		InvoiceID:  m.InvoiceID,
		Amount:     m.Amount,
		AppliedAt:  m.AppliedAt,
		AppliedBy:  m.AppliedBy,
	}
}

// FromDomain populates the persistence model from a domain PaymentApplication.
func (m *PaymentApplicationModel) FromDomain(app *leasing.PaymentApplication) {
	m.FromDomainBaseEntity(app.BaseEntity)
	m.PaymentID = app.PaymentID
	m.InvoiceID = app.InvoiceID
	m.Amount = app.Amount
	m.AppliedAt = app.AppliedAt
	m.AppliedBy = app.AppliedBy
}

// DocumentSequenceModel is the persistence model for document numbering.
// The name is the primary key; Next locks the row for the increment.
type DocumentSequenceModel struct {
	Name      string    `gorm:"type:varchar(50);primary_key"`
	Prefix    string    `gorm:"type:varchar(20);not null"`
	NextValue int64     `gorm:"not null;default:1"`
	Padding   int       `gorm:"not null;default:4"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// ToDomain converts the persistence model to a domain DocumentSequence.
func (m *DocumentSequenceModel) ToDomain() *leasing.DocumentSequence {
	return &leasing.DocumentSequence{
		Name:      m.Name,
		Prefix:    m.Prefix,
		NextValue: m.NextValue,
		Padding:   m.Padding,
		UpdatedAt: m.UpdatedAt,
	}
}
