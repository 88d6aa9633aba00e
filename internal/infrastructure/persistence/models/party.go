package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// AddressColumns stores a postal address inline on its owner's row.
type AddressColumns struct {
	Street     string `gorm:"type:varchar(255)"`
	City       string `gorm:"type:varchar(120)"`
	PostalCode string `gorm:"type:varchar(20)"`
	Region     string `gorm:"type:varchar(120)"`
	Country    string `gorm:"type:varchar(2)"`
}

func (a AddressColumns) toDomain() valueobject.Address {
	return valueobject.Address{
		Street:     a.Street,
		City:       a.City,
		PostalCode: a.PostalCode,
		Region:     a.Region,
		Country:    a.Country,
	}
}

func addressColumnsFromDomain(a valueobject.Address) AddressColumns {
	return AddressColumns{
		Street:     a.Street,
		City:       a.City,
		PostalCode: a.PostalCode,
		Region:     a.Region,
		Country:    a.Country,
	}
}

// SellerModel is the persistence model for the Seller aggregate root.
type SellerModel struct {
	VersionedModel
	Country            string           `gorm:"type:varchar(2);not null"`
	VatIdentifier      string           `gorm:"type:varchar(32)"`
	BaselineRate       decimal.Decimal  `gorm:"type:decimal(5,2);not null"`
	OverrideRate       *decimal.Decimal `gorm:"type:decimal(5,2)"`
	OverrideEnabled    bool             `gorm:"not null;default:false"`
	LegalName          string           `gorm:"type:varchar(255);not null"`
	RegistrationNumber string           `gorm:"type:varchar(64)"`
	TaxIdentifier      string           `gorm:"type:varchar(64)"`
	Address            AddressColumns   `gorm:"embedded;embeddedPrefix:address_"`
	InvoicePrefix      string           `gorm:"type:varchar(16);not null;default:'INV'"`
	VatIdentityID      *uuid.UUID       `gorm:"type:uuid;index"`
	PlanCode           string           `gorm:"type:varchar(32);not null;default:'free'"`
}

// TableName returns the table name for GORM
func (SellerModel) TableName() string {
	return "sellers"
}

// ToDomain converts the persistence model to a domain Seller.
func (m *SellerModel) ToDomain() *party.Seller {
	s := &party.Seller{
		Country:         valueobject.CountryCode(m.Country),
		VatIdentifier:   m.VatIdentifier,
		BaselineRate:    m.BaselineRate,
		OverrideRate:    m.OverrideRate,
		OverrideEnabled: m.OverrideEnabled,
		LegalIdentity: party.LegalIdentity{
			LegalName:          m.LegalName,
			RegistrationNumber: m.RegistrationNumber,
			TaxIdentifier:      m.TaxIdentifier,
			Address:            m.Address.toDomain(),
		},
		InvoicePrefix: m.InvoicePrefix,
		VatIdentityID: m.VatIdentityID,
		PlanCode:      m.PlanCode,
	}
	m.LoadRoot(&s.BaseAggregateRoot)
	return s
}

// FromDomain populates the persistence model from a domain Seller.
func (m *SellerModel) FromDomain(s *party.Seller) {
	m.SetRoot(s.BaseAggregateRoot)
	m.Country = string(s.Country)
	m.VatIdentifier = s.VatIdentifier
	m.BaselineRate = s.BaselineRate
	m.OverrideRate = s.OverrideRate
	m.OverrideEnabled = s.OverrideEnabled
	m.LegalName = s.LegalName
	m.RegistrationNumber = s.RegistrationNumber
	m.TaxIdentifier = s.TaxIdentifier
	m.Address = addressColumnsFromDomain(s.Address)
	m.InvoicePrefix = s.InvoicePrefix
	m.VatIdentityID = s.VatIdentityID
	m.PlanCode = s.PlanCode
}

// SellerModelFromDomain creates a new persistence model from a domain Seller.
func SellerModelFromDomain(s *party.Seller) *SellerModel {
	m := &SellerModel{}
	m.FromDomain(s)
	return m
}

// BuyerModel is the persistence model for the Buyer aggregate root.
// Deletion is a tombstone in deleted_at; the default GORM scope hides deleted rows.
type BuyerModel struct {
	SellerOwnedModel
	Name               string         `gorm:"type:varchar(255);not null"`
	Country            string         `gorm:"type:varchar(2);not null"`
	VatIdentifier      string         `gorm:"type:varchar(32)"`
	LegalName          string         `gorm:"type:varchar(255)"`
	RegistrationNumber string         `gorm:"type:varchar(64)"`
	TaxIdentifier      string         `gorm:"type:varchar(64)"`
	Email              string         `gorm:"type:varchar(255)"`
	Address            AddressColumns `gorm:"embedded;embeddedPrefix:address_"`
	VatIdentityID      *uuid.UUID     `gorm:"type:uuid;index"`
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (BuyerModel) TableName() string {
	return "buyers"
}

// ToDomain converts the persistence model to a domain Buyer.
func (m *BuyerModel) ToDomain() *party.Buyer {
	b := &party.Buyer{
		Name:          m.Name,
		Country:       valueobject.CountryCode(m.Country),
		VatIdentifier: m.VatIdentifier,
		LegalIdentity: party.LegalIdentity{
			LegalName:          m.LegalName,
			RegistrationNumber: m.RegistrationNumber,
			TaxIdentifier:      m.TaxIdentifier,
			Address:            m.Address.toDomain(),
		},
		Email:         m.Email,
		VatIdentityID: m.VatIdentityID,
	}
	m.LoadSellerRoot(&b.SellerScopedRoot)
	if m.DeletedAt.Valid {
		t := m.DeletedAt.Time
		b.DeletedAt = &t
	}
	return b
}

// FromDomain populates the persistence model from a domain Buyer.
func (m *BuyerModel) FromDomain(b *party.Buyer) {
	m.SetSellerRoot(b.SellerScopedRoot)
	m.Name = b.Name
	m.Country = string(b.Country)
	m.VatIdentifier = b.VatIdentifier
	m.LegalName = b.LegalName
	m.RegistrationNumber = b.RegistrationNumber
	m.TaxIdentifier = b.TaxIdentifier
	m.Email = b.Email
	m.Address = addressColumnsFromDomain(b.Address)
	m.VatIdentityID = b.VatIdentityID
	m.DeletedAt = gorm.DeletedAt{}
	if b.DeletedAt != nil {
		m.DeletedAt = gorm.DeletedAt{Time: *b.DeletedAt, Valid: true}
	}
}

// BuyerModelFromDomain creates a new persistence model from a domain Buyer.
func BuyerModelFromDomain(b *party.Buyer) *BuyerModel {
	m := &BuyerModel{}
	m.FromDomain(b)
	return m
}

// BankAccountModel is the persistence model for seller bank accounts.
type BankAccountModel struct {
	BaseModel
	SellerID          uuid.UUID `gorm:"type:uuid;not null;index:idx_bank_accounts_seller_currency,priority:1"`
	Nickname          string    `gorm:"type:varchar(100);not null"`
	AccountIdentifier string    `gorm:"type:varchar(64);not null"`
	Currency          string    `gorm:"type:varchar(3);not null;index:idx_bank_accounts_seller_currency,priority:2"`
	Active            bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (BankAccountModel) TableName() string {
	return "bank_accounts"
}

// ToDomain converts the persistence model to a domain BankAccount.
func (m *BankAccountModel) ToDomain() *party.BankAccount {
	return &party.BankAccount{
		BaseEntity:        m.Entity(),
		SellerID:          m.SellerID,
		Nickname:          m.Nickname,
		AccountIdentifier: m.AccountIdentifier,
		Currency:          valueobject.Currency(m.Currency),
		Active:            m.Active,
	}
}

// BankAccountModelFromDomain creates a new persistence model from a domain BankAccount.
func BankAccountModelFromDomain(a *party.BankAccount) *BankAccountModel {
	m := &BankAccountModel{
		SellerID:          a.SellerID,
		Nickname:          a.Nickname,
		AccountIdentifier: a.AccountIdentifier,
		Currency:          a.Currency.String(),
		Active:            a.Active,
	}
	m.SetEntity(a.BaseEntity)
	return m
}

// timePtr normalizes a nullable timestamp to UTC.
func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
