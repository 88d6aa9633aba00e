package party

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// ==================== Requests ====================

// AddressRequest is a postal address
type AddressRequest struct {
	Street     string `json:"street" binding:"max=200"`
	City       string `json:"city" binding:"max=100"`
	PostalCode string `json:"postal_code" binding:"max=20"`
	Region     string `json:"region" binding:"max=100"`
	Country    string `json:"country" binding:"omitempty,iso_country"`
}

// LegalIdentityRequest carries the legal fields printed on invoices
type LegalIdentityRequest struct {
	LegalName          string         `json:"legal_name" binding:"required,max=200"`
	RegistrationNumber string         `json:"registration_number" binding:"max=64"`
	TaxIdentifier      string         `json:"tax_identifier" binding:"max=64"`
	Address            AddressRequest `json:"address"`
}

// CreateSellerRequest registers a new seller (tenant)
type CreateSellerRequest struct {
	Country       string               `json:"country" binding:"required,iso_country"`
	VatIdentifier string               `json:"vat_identifier" binding:"max=32"`
	BaselineRate  decimal.Decimal      `json:"baseline_rate"`
	InvoicePrefix string               `json:"invoice_prefix" binding:"max=16"`
	Plan          string               `json:"plan" binding:"omitempty,oneof=free pro business"`
	Legal         LegalIdentityRequest `json:"legal"`
}

// UpdateTaxSettingsRequest replaces the settings that drive VAT decisions
type UpdateTaxSettingsRequest struct {
	Country         string           `json:"country" binding:"required,iso_country"`
	VatIdentifier   string           `json:"vat_identifier" binding:"max=32"`
	BaselineRate    decimal.Decimal  `json:"baseline_rate"`
	OverrideRate    *decimal.Decimal `json:"override_rate"`
	OverrideEnabled bool             `json:"override_enabled"`
}

// UpdateSellerProfileRequest replaces the legal identity and numbering prefix
type UpdateSellerProfileRequest struct {
	Legal         LegalIdentityRequest `json:"legal"`
	InvoicePrefix string               `json:"invoice_prefix" binding:"max=16"`
}

// ChangePlanRequest moves a seller to another plan
type ChangePlanRequest struct {
	Plan string `json:"plan" binding:"required,oneof=free pro business"`
}

// BuyerRequest creates or replaces a buyer
type BuyerRequest struct {
	Name          string               `json:"name" binding:"required,max=200"`
	Country       string               `json:"country" binding:"required,iso_country"`
	VatIdentifier string               `json:"vat_identifier" binding:"max=32"`
	Email         string               `json:"email" binding:"omitempty,email,max=200"`
	Legal         LegalIdentityRequest `json:"legal"`
}

// ListBuyersFilter pages through a seller's buyers
type ListBuyersFilter struct {
	Search   string `form:"search" binding:"max=100"`
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
}

// CreateBankAccountRequest adds a receiving account
type CreateBankAccountRequest struct {
	Nickname          string `json:"nickname" binding:"max=100"`
	AccountIdentifier string `json:"account_identifier" binding:"required,max=64"`
	Currency          string `json:"currency" binding:"required,currency_code"`
}

// ==================== Responses ====================

// AddressResponse is a postal address
type AddressResponse struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country"`
}

// LegalIdentityResponse carries the legal fields of a party
type LegalIdentityResponse struct {
	LegalName          string          `json:"legal_name"`
	RegistrationNumber string          `json:"registration_number,omitempty"`
	TaxIdentifier      string          `json:"tax_identifier,omitempty"`
	Address            AddressResponse `json:"address"`
}

// SellerResponse represents a seller
type SellerResponse struct {
	ID                 uuid.UUID             `json:"id"`
	Country            string                `json:"country"`
	VatIdentifier      string                `json:"vat_identifier,omitempty"`
	VatIdentityID      *uuid.UUID            `json:"vat_identity_id,omitempty"`
	BaselineRate       decimal.Decimal       `json:"baseline_rate"`
	OverrideRate       *decimal.Decimal      `json:"override_rate,omitempty"`
	OverrideEnabled    bool                  `json:"override_enabled"`
	EffectiveRate      decimal.Decimal       `json:"effective_rate"`
	InvoicePrefix      string                `json:"invoice_prefix"`
	Plan               string                `json:"plan"`
	Legal              LegalIdentityResponse `json:"legal"`
	MissingLegalFields []string              `json:"missing_legal_fields,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	Version            int                   `json:"version"`
}

// BuyerResponse represents a buyer
type BuyerResponse struct {
	ID            uuid.UUID             `json:"id"`
	Name          string                `json:"name"`
	Country       string                `json:"country"`
	VatIdentifier string                `json:"vat_identifier,omitempty"`
	VatIdentityID *uuid.UUID            `json:"vat_identity_id,omitempty"`
	Email         string                `json:"email,omitempty"`
	Legal         LegalIdentityResponse `json:"legal"`
	Deleted       bool                  `json:"deleted"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// BankAccountResponse represents a bank account
type BankAccountResponse struct {
	ID                uuid.UUID `json:"id"`
	Nickname          string    `json:"nickname"`
	AccountIdentifier string    `json:"account_identifier"`
	Currency          string    `json:"currency"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
}

// ==================== Mapping ====================

func (r LegalIdentityRequest) toDomain() party.LegalIdentity {
	return party.LegalIdentity{
		LegalName:          r.LegalName,
		RegistrationNumber: r.RegistrationNumber,
		TaxIdentifier:      r.TaxIdentifier,
		Address: valueobject.NewAddress(
			r.Address.Street, r.Address.City, r.Address.PostalCode, r.Address.Region, r.Address.Country,
		),
	}
}

func toLegalResponse(l party.LegalIdentity) LegalIdentityResponse {
	return LegalIdentityResponse{
		LegalName:          l.LegalName,
		RegistrationNumber: l.RegistrationNumber,
		TaxIdentifier:      l.TaxIdentifier,
		Address: AddressResponse{
			Street:     l.Address.Street,
			City:       l.Address.City,
			PostalCode: l.Address.PostalCode,
			Region:     l.Address.Region,
			Country:    l.Address.Country,
		},
	}
}

// ToSellerResponse converts a domain Seller to SellerResponse
func ToSellerResponse(s *party.Seller) SellerResponse {
	return SellerResponse{
		ID:                 s.ID,
		Country:            string(s.Country),
		VatIdentifier:      s.VatIdentifier,
		VatIdentityID:      s.VatIdentityID,
		BaselineRate:       s.BaselineRate,
		OverrideRate:       s.OverrideRate,
		OverrideEnabled:    s.OverrideEnabled,
		EffectiveRate:      s.EffectiveRate(),
		InvoicePrefix:      s.InvoicePrefix,
		Plan:               s.PlanCode,
		Legal:              toLegalResponse(s.LegalIdentity),
		MissingLegalFields: s.MissingLegalFields(),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		Version:            s.Version,
	}
}

// ToBuyerResponse converts a domain Buyer to BuyerResponse
func ToBuyerResponse(b *party.Buyer) BuyerResponse {
	return BuyerResponse{
		ID:            b.ID,
		Name:          b.Name,
		Country:       string(b.Country),
		VatIdentifier: b.VatIdentifier,
		VatIdentityID: b.VatIdentityID,
		Email:         b.Email,
		Legal:         toLegalResponse(b.LegalIdentity),
		Deleted:       b.IsDeleted(),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

// ToBankAccountResponse converts a domain BankAccount to BankAccountResponse
func ToBankAccountResponse(a *party.BankAccount) BankAccountResponse {
	return BankAccountResponse{
		ID:                a.ID,
		Nickname:          a.Nickname,
		AccountIdentifier: a.AccountIdentifier,
		Currency:          a.Currency.String(),
		Active:            a.Active,
		CreatedAt:         a.CreatedAt,
	}
}
