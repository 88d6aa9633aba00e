package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/tax"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Amounts are integer minor units. Snapshots are JSON documents written once at issuance.
type InvoiceModel struct {
	SellerOwnedModel
	BuyerID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Status   string    `gorm:"type:varchar(16);not null;index"`
	Currency string    `gorm:"type:varchar(3);not null"`

	TaxTreatment    string          `gorm:"type:varchar(16)"`
	VatRate         decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxReason       string          `gorm:"type:text"`
	TaxReasonCode   string          `gorm:"type:varchar(32)"`
	TreatmentManual bool            `gorm:"not null;default:false"`
	RateManual      bool            `gorm:"not null;default:false"`

	Subtotal  int64 `gorm:"not null;default:0"`
	VatAmount int64 `gorm:"not null;default:0"`
	Total     int64 `gorm:"not null;default:0"`

	Number    *string    `gorm:"type:varchar(64);index"`
	IssueDate *time.Time `gorm:"type:date;index"`
	DueDate   *time.Time `gorm:"type:date"`

	SellerDetails  *invoicing.SellerDetails  `gorm:"type:jsonb;serializer:json"`
	BuyerDetails   *invoicing.BuyerDetails   `gorm:"type:jsonb;serializer:json"`
	PaymentDetails *invoicing.PaymentDetails `gorm:"type:jsonb;serializer:json"`

	BuyerVatIdentifier string `gorm:"type:varchar(32)"`
	BuyerVatStatus     string `gorm:"type:varchar(16)"`
	DecidedAt          *time.Time

	PublicID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	ShareToken string    `gorm:"type:varchar(64);not null"`
	Notes      string    `gorm:"type:text"`
	PaidAt     *time.Time
	VoidedAt   *time.Time

	Items []InvoiceItemModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		BuyerID:  m.BuyerID,
		Status:   invoicing.Status(m.Status),
		Currency: valueobject.Currency(m.Currency),
		Tax: tax.Assignment{
			Treatment:       tax.Treatment(m.TaxTreatment),
			Rate:            m.VatRate,
			Reason:          m.TaxReason,
			ReasonCode:      tax.ReasonCode(m.TaxReasonCode),
			TreatmentManual: m.TreatmentManual,
			RateManual:      m.RateManual,
		},
		Subtotal:           valueobject.MinorUnits(m.Subtotal),
		VAT:                valueobject.MinorUnits(m.VatAmount),
		Total:              valueobject.MinorUnits(m.Total),
		Number:             m.Number,
		IssueDate:          dateUTC(m.IssueDate),
		DueDate:            dateUTC(m.DueDate),
		SellerDetails:      m.SellerDetails,
		BuyerDetails:       m.BuyerDetails,
		PaymentDetails:     m.PaymentDetails,
		BuyerVatIdentifier: m.BuyerVatIdentifier,
		BuyerVatStatus:     vatid.Status(m.BuyerVatStatus),
		DecidedAt:          m.DecidedAt,
		PublicID:           m.PublicID,
		ShareToken:         m.ShareToken,
		Notes:              m.Notes,
		PaidAt:             m.PaidAt,
		VoidedAt:           m.VoidedAt,
	}
	m.LoadSellerRoot(&inv.SellerScopedRoot)
	inv.Items = make([]invoicing.InvoiceItem, 0, len(m.Items))
	for i := range m.Items {
		inv.Items = append(inv.Items, m.Items[i].ToDomain())
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice. Items are not copied.
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.SetSellerRoot(inv.SellerScopedRoot)
	m.BuyerID = inv.BuyerID
	m.Status = string(inv.Status)
	m.Currency = inv.Currency.String()
	m.TaxTreatment = string(inv.Tax.Treatment)
	m.VatRate = inv.Tax.Rate
	m.TaxReason = inv.Tax.Reason
	m.TaxReasonCode = string(inv.Tax.ReasonCode)
	m.TreatmentManual = inv.Tax.TreatmentManual
	m.RateManual = inv.Tax.RateManual
	m.Subtotal = int64(inv.Subtotal)
	m.VatAmount = int64(inv.VAT)
	m.Total = int64(inv.Total)
	m.Number = inv.Number
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.SellerDetails = inv.SellerDetails
	m.BuyerDetails = inv.BuyerDetails
	m.PaymentDetails = inv.PaymentDetails
	m.BuyerVatIdentifier = inv.BuyerVatIdentifier
	m.BuyerVatStatus = string(inv.BuyerVatStatus)
	m.DecidedAt = timePtr(inv.DecidedAt)
	m.PublicID = inv.PublicID
	m.ShareToken = inv.ShareToken
	m.Notes = inv.Notes
	m.PaidAt = timePtr(inv.PaidAt)
	m.VoidedAt = timePtr(inv.VoidedAt)
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// State returns the guarded fields of the persisted row.
func (m *InvoiceModel) State() invoicing.InvoiceState {
	return invoicing.InvoiceState{
		Status:         invoicing.Status(m.Status),
		Number:         m.Number,
		IssueDate:      dateUTC(m.IssueDate),
		DueDate:        dateUTC(m.DueDate),
		Currency:       valueobject.Currency(m.Currency),
		Subtotal:       valueobject.MinorUnits(m.Subtotal),
		VAT:            valueobject.MinorUnits(m.VatAmount),
		Total:          valueobject.MinorUnits(m.Total),
		SellerDetails:  m.SellerDetails,
		BuyerDetails:   m.BuyerDetails,
		PaymentDetails: m.PaymentDetails,
		BuyerID:        m.BuyerID,

		Tax: tax.Assignment{
			Treatment:       tax.Treatment(m.TaxTreatment),
			Rate:            m.VatRate,
			Reason:          m.TaxReason,
			ReasonCode:      tax.ReasonCode(m.TaxReasonCode),
			TreatmentManual: m.TreatmentManual,
			RateManual:      m.RateManual,
		},
		BuyerVatIdentifier: m.BuyerVatIdentifier,
		BuyerVatStatus:     vatid.Status(m.BuyerVatStatus),
		DecidedAt:          m.DecidedAt,
	}
}

// InvoiceItemModel is one invoice line.
type InvoiceItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	Description string          `gorm:"type:text;not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice   int64           `gorm:"not null"`
	LineTotal   int64           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem.
func (m *InvoiceItemModel) ToDomain() invoicing.InvoiceItem {
	return invoicing.InvoiceItem{
		ID:          m.ID,
		InvoiceID:   m.InvoiceID,
		Position:    m.Position,
		Description: m.Description,
		Quantity:    m.Quantity,
		UnitPrice:   valueobject.MinorUnits(m.UnitPrice),
		LineTotal:   valueobject.MinorUnits(m.LineTotal),
	}
}

// InvoiceItemModelFromDomain creates a new persistence model from a domain InvoiceItem.
func InvoiceItemModelFromDomain(it *invoicing.InvoiceItem) *InvoiceItemModel {
	return &InvoiceItemModel{
		ID:          it.ID,
		InvoiceID:   it.InvoiceID,
		Position:    it.Position,
		Description: it.Description,
		Quantity:    it.Quantity,
		UnitPrice:   int64(it.UnitPrice),
		LineTotal:   int64(it.LineTotal),
	}
}

// InvoiceSequenceModel is the gapless counter for one (seller, year, prefix).
type InvoiceSequenceModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	SellerID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_invoice_sequences_key,priority:1"`
	Year       int       `gorm:"not null;uniqueIndex:uq_invoice_sequences_key,priority:2"`
	Prefix     string    `gorm:"type:varchar(16);not null;uniqueIndex:uq_invoice_sequences_key,priority:3"`
	LastNumber int64     `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceSequenceModel) TableName() string {
	return "invoice_sequences"
}

// ToDomain converts the persistence model to a domain InvoiceSequence.
func (m *InvoiceSequenceModel) ToDomain() *invoicing.InvoiceSequence {
	return &invoicing.InvoiceSequence{
		ID:         m.ID,
		Key:        invoicing.SequenceKey{SellerID: m.SellerID, Year: m.Year, Prefix: m.Prefix},
		LastNumber: m.LastNumber,
		UpdatedAt:  m.UpdatedAt,
	}
}

// InvoiceEventModel is an append-only audit trail row.
type InvoiceEventModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	InvoiceID  uuid.UUID `gorm:"type:uuid;not null;index:idx_invoice_events_invoice,priority:1"`
	SellerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Actor      string    `gorm:"type:varchar(255)"`
	EventType  string    `gorm:"type:varchar(64);not null"`
	FromStatus string    `gorm:"type:varchar(16)"`
	ToStatus   string    `gorm:"type:varchar(16)"`
	Message    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null;index:idx_invoice_events_invoice,priority:2"`
}

// TableName returns the table name for GORM
func (InvoiceEventModel) TableName() string {
	return "invoice_events"
}

// ToDomain converts the persistence model to a domain InvoiceEvent.
func (m *InvoiceEventModel) ToDomain() invoicing.InvoiceEvent {
	return invoicing.InvoiceEvent{
		ID:         m.ID,
		InvoiceID:  m.InvoiceID,
		SellerID:   m.SellerID,
		Actor:      m.Actor,
		EventType:  m.EventType,
		FromStatus: invoicing.Status(m.FromStatus),
		ToStatus:   invoicing.Status(m.ToStatus),
		Message:    m.Message,
		CreatedAt:  m.CreatedAt,
	}
}

// InvoiceEventModelFromDomain creates a new persistence model from a domain InvoiceEvent.
func InvoiceEventModelFromDomain(e invoicing.InvoiceEvent) *InvoiceEventModel {
	return &InvoiceEventModel{
		ID:         e.ID,
		InvoiceID:  e.InvoiceID,
		SellerID:   e.SellerID,
		Actor:      e.Actor,
		EventType:  e.EventType,
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		Message:    e.Message,
		CreatedAt:  e.CreatedAt.UTC(),
	}
}

// dateUTC strips any zone a driver attached to a DATE column.
func dateUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, mo, d := t.Date()
	out := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	return &out
}
