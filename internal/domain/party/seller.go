package party

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// DefaultInvoicePrefix is used when a seller has not configured one.
const DefaultInvoicePrefix = "INV"

// LegalIdentity holds the fields that must appear on a legally valid invoice.
type LegalIdentity struct {
	LegalName          string
	RegistrationNumber string
	TaxIdentifier      string
	Address            valueobject.Address
}

// Seller is the tenant root. Its ID doubles as the tenant identifier.
type Seller struct {
	shared.BaseAggregateRoot
	Country         valueobject.CountryCode
	VatIdentifier   string
	BaselineRate    decimal.Decimal
	OverrideRate    *decimal.Decimal
	OverrideEnabled bool
	LegalIdentity
	InvoicePrefix string
	VatIdentityID *uuid.UUID
	PlanCode      string
}

// NewSeller creates a seller with the required tax settings.
func NewSeller(country string, baselineRate decimal.Decimal, legal LegalIdentity) (*Seller, error) {
	cc, err := valueobject.ParseCountryCode(country)
	if err != nil {
		return nil, shared.NewFieldError("country", "INVALID_COUNTRY", err.Error())
	}
	if err := valueobject.ValidateVATRate(baselineRate); err != nil {
		return nil, shared.NewFieldError("baseline_rate", "INVALID_VAT_RATE", err.Error())
	}
	if strings.TrimSpace(legal.LegalName) == "" {
		return nil, shared.NewFieldError("legal_name", "INVALID_LEGAL_NAME", "Legal name cannot be empty")
	}

	s := &Seller{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Country:           cc,
		BaselineRate:      baselineRate,
		LegalIdentity:     trimLegal(legal),
		InvoicePrefix:     DefaultInvoicePrefix,
	}
	return s, nil
}

// EffectiveRate is the override rate when enabled, otherwise the baseline.
func (s *Seller) EffectiveRate() decimal.Decimal {
	if s.OverrideEnabled && s.OverrideRate != nil {
		return *s.OverrideRate
	}
	return s.BaselineRate
}

// TaxSettings is the subset of seller fields that influences VAT decisions.
type TaxSettings struct {
	Country         string
	BaselineRate    decimal.Decimal
	OverrideRate    *decimal.Decimal
	OverrideEnabled bool
	VatIdentifier   string
}

// UpdateTaxSettings applies new tax settings and reports whether anything
// that affects VAT decisions changed.
func (s *Seller) UpdateTaxSettings(ts TaxSettings) (bool, error) {
	cc, err := valueobject.ParseCountryCode(ts.Country)
	if err != nil {
		return false, shared.NewFieldError("country", "INVALID_COUNTRY", err.Error())
	}
	if err := valueobject.ValidateVATRate(ts.BaselineRate); err != nil {
		return false, shared.NewFieldError("baseline_rate", "INVALID_VAT_RATE", err.Error())
	}
	if ts.OverrideEnabled {
		if ts.OverrideRate == nil {
			return false, shared.NewFieldError("override_rate", "INVALID_VAT_RATE", "Override rate is required when the override is enabled")
		}
		if err := valueobject.ValidateVATRate(*ts.OverrideRate); err != nil {
			return false, shared.NewFieldError("override_rate", "INVALID_VAT_RATE", err.Error())
		}
	}

	before := s.EffectiveRate()
	beforeCountry := s.Country

	s.Country = cc
	s.BaselineRate = ts.BaselineRate
	s.OverrideRate = ts.OverrideRate
	s.OverrideEnabled = ts.OverrideEnabled
	s.VatIdentifier = strings.TrimSpace(ts.VatIdentifier)
	s.UpdatedAt = time.Now().UTC()
	s.BumpVersion()

	return !before.Equal(s.EffectiveRate()) || beforeCountry != cc, nil
}

// UpdateLegalIdentity replaces the legal identity fields.
func (s *Seller) UpdateLegalIdentity(legal LegalIdentity) error {
	if strings.TrimSpace(legal.LegalName) == "" {
		return shared.NewFieldError("legal_name", "INVALID_LEGAL_NAME", "Legal name cannot be empty")
	}
	s.LegalIdentity = trimLegal(legal)
	s.UpdatedAt = time.Now().UTC()
	s.BumpVersion()
	return nil
}

// SetInvoicePrefix normalizes and stores the invoice-number prefix.
func (s *Seller) SetInvoicePrefix(prefix string) {
	s.InvoicePrefix = NormalizePrefix(prefix)
	s.UpdatedAt = time.Now().UTC()
}

// SetPlan records the subscription plan. Callers validate the code.
func (s *Seller) SetPlan(code string) {
	s.PlanCode = code
	s.UpdatedAt = time.Now().UTC()
	s.BumpVersion()
}

// MissingLegalFields lists what prevents the seller from issuing invoices.
func (s *Seller) MissingLegalFields() []string {
	var missing []string
	if s.LegalName == "" {
		missing = append(missing, "legal_name")
	}
	if s.Country == "" {
		missing = append(missing, "country")
	}
	if s.RegistrationNumber == "" && s.TaxIdentifier == "" {
		missing = append(missing, "registration_number_or_tax_identifier")
	}
	for _, f := range s.Address.MissingFields() {
		missing = append(missing, "address."+f)
	}
	return missing
}

// IsLegalIdentityComplete reports whether the seller may issue invoices.
func (s *Seller) IsLegalIdentityComplete() bool {
	return len(s.MissingLegalFields()) == 0
}

// VatKeyParts implements vatid.Linkable.
func (s *Seller) VatKeyParts() (string, string) {
	return string(s.Country), s.VatIdentifier
}

// VatIdentityRef implements vatid.Linkable.
func (s *Seller) VatIdentityRef() *uuid.UUID {
	return s.VatIdentityID
}

// LinkVatIdentity implements vatid.Linkable.
func (s *Seller) LinkVatIdentity(id *uuid.UUID) {
	s.VatIdentityID = id
}

// NormalizePrefix upper-cases the prefix and strips everything but letters and digits.
func NormalizePrefix(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return DefaultInvoicePrefix
	}
	return b.String()
}

func trimLegal(l LegalIdentity) LegalIdentity {
	return LegalIdentity{
		LegalName:          strings.TrimSpace(l.LegalName),
		RegistrationNumber: strings.TrimSpace(l.RegistrationNumber),
		TaxIdentifier:      strings.TrimSpace(l.TaxIdentifier),
		Address:            valueobject.NewAddress(l.Address.Street, l.Address.City, l.Address.PostalCode, l.Address.Region, l.Address.Country),
	}
}
