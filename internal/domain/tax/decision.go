// Package tax decides the VAT treatment and rate of an invoice.
//
// The Engine is a pure function of its input: seller tax terms, buyer country,
// the buyer's cached VAT identity status and the seller's permission set. It
// performs no I/O and reads no ambient state.
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// Treatment is the VAT regime applied to an invoice.
type Treatment string

const (
	TreatmentDomestic Treatment = "DOMESTIC"
	TreatmentEUB2C    Treatment = "EU_B2C"
	TreatmentEUB2BRC  Treatment = "EU_B2B_RC"
	TreatmentNonEU    Treatment = "NON_EU"
)

// IsValid returns true if the treatment is a known value
func (t Treatment) IsValid() bool {
	switch t {
	case TreatmentDomestic, TreatmentEUB2C, TreatmentEUB2BRC, TreatmentNonEU:
		return true
	}
	return false
}

// IsZeroRated reports whether the treatment always carries a 0% rate.
func (t Treatment) IsZeroRated() bool {
	return t == TreatmentEUB2BRC || t == TreatmentNonEU
}

// ReasonCode is a machine-readable tag for the decision reason.
type ReasonCode string

const (
	ReasonNone          ReasonCode = ""
	ReasonReverseCharge ReasonCode = "reverse_charge_eu_b2b"
	ReasonOutsideEU     ReasonCode = "outside_eu_scope"
	ReasonVatIDInvalid  ReasonCode = "vat_id_invalid"
	ReasonVatIDPending  ReasonCode = "vat_id_pending"
	ReasonVatIDUnknown  ReasonCode = "vat_id_unknown"
	ReasonManual        ReasonCode = "manual_override"
)

// Reason texts shown on invoices.
const (
	ReasonTextReverseCharge = "Reverse charge (EU B2B)."
	ReasonTextOutsideEU     = "Outside EU VAT scope."
	reasonTextInvalid       = "Buyer VAT identifier is invalid; seller VAT applied without reverse charge."
	reasonTextPending       = "Buyer VAT identifier is pending validation; seller VAT applied until it is confirmed."
	reasonTextUnknown       = "Buyer VAT identifier could not be verified; seller VAT applied without reverse charge."
)

// PermissionCrossBorderB2B enables automatic EU reverse charge.
const PermissionCrossBorderB2B = "cross_border_b2b"

// Permissions is the explicit permission set of a seller.
type Permissions map[string]bool

// NewPermissions builds a permission set from keys.
func NewPermissions(keys ...string) Permissions {
	p := make(Permissions, len(keys))
	for _, k := range keys {
		p[k] = true
	}
	return p
}

// Has reports whether key is granted.
func (p Permissions) Has(key string) bool {
	return p[key]
}

// SellerTerms are the seller fields that influence the decision.
type SellerTerms struct {
	Country         valueobject.CountryCode
	BaselineRate    decimal.Decimal
	OverrideRate    *decimal.Decimal
	OverrideEnabled bool
}

// EffectiveRate is the override rate when enabled, otherwise the baseline.
func (s SellerTerms) EffectiveRate() decimal.Decimal {
	if s.OverrideEnabled && s.OverrideRate != nil {
		return *s.OverrideRate
	}
	return s.BaselineRate
}

// BuyerTerms are the buyer fields that influence the decision.
// IdentityStatus is empty when the buyer has no cache row.
type BuyerTerms struct {
	Country        valueobject.CountryCode
	VatIdentifier  string
	IdentityStatus vatid.Status
}

// HasIdentifier reports whether the buyer presents a VAT identifier.
func (b BuyerTerms) HasIdentifier() bool {
	return b.VatIdentifier != ""
}

// Input is everything the engine looks at.
type Input struct {
	Seller      SellerTerms
	Buyer       BuyerTerms
	Permissions Permissions
}

// Decision is the engine output.
type Decision struct {
	Treatment  Treatment
	Rate       decimal.Decimal
	Reason     string
	ReasonCode ReasonCode
	// PendingValidation is set when the buyer identifier awaits a verdict.
	// Drafts show it as a warning; issuance is blocked.
	PendingValidation bool
}

// Engine holds the configured EU membership set.
type Engine struct {
	eu valueobject.EUMembership
}

// NewEngine creates an engine for the given EU membership.
func NewEngine(eu valueobject.EUMembership) *Engine {
	return &Engine{eu: eu}
}

// Decide returns the treatment, rate and reason for in.
func (e *Engine) Decide(in Input) Decision {
	effective := in.Seller.EffectiveRate()
	pending := in.Buyer.HasIdentifier() && identityAmbiguous(in.Buyer.IdentityStatus)

	if in.Seller.Country == in.Buyer.Country {
		return Decision{Treatment: TreatmentDomestic, Rate: effective, PendingValidation: pending}
	}

	if e.eu.Contains(in.Seller.Country) && e.eu.Contains(in.Buyer.Country) {
		if in.Permissions.Has(PermissionCrossBorderB2B) && in.Buyer.HasIdentifier() && in.Buyer.IdentityStatus == vatid.StatusValid {
			return Decision{
				Treatment:  TreatmentEUB2BRC,
				Rate:       decimal.Zero,
				Reason:     ReasonTextReverseCharge,
				ReasonCode: ReasonReverseCharge,
			}
		}
		d := Decision{Treatment: TreatmentEUB2C, Rate: effective, PendingValidation: pending}
		if in.Buyer.HasIdentifier() {
			d.Reason, d.ReasonCode = fallbackReason(in.Buyer.IdentityStatus)
		}
		return d
	}

	return Decision{
		Treatment:         TreatmentNonEU,
		Rate:              decimal.Zero,
		Reason:            ReasonTextOutsideEU,
		ReasonCode:        ReasonOutsideEU,
		PendingValidation: pending,
	}
}

// RateFor returns the rate implied by a treatment for in's seller.
func (e *Engine) RateFor(t Treatment, in Input) decimal.Decimal {
	if t.IsZeroRated() {
		return decimal.Zero
	}
	return in.Seller.EffectiveRate()
}

// CheckIssuable blocks issuance while the buyer's identifier has no definitive verdict.
func (e *Engine) CheckIssuable(in Input) error {
	if !in.Buyer.HasIdentifier() {
		return nil
	}
	if identityAmbiguous(in.Buyer.IdentityStatus) {
		status := in.Buyer.IdentityStatus
		if status == "" {
			status = vatid.StatusPending
		}
		return ErrVatIdentityUnresolved.WithMessage(
			"Buyer VAT identifier %s is %s; issuance is blocked until validation completes", in.Buyer.VatIdentifier, status)
	}
	return nil
}

// ErrVatIdentityUnresolved is the policy block raised by CheckIssuable.
var ErrVatIdentityUnresolved = shared.NewCategorizedError(shared.CategoryVAT, "VAT_IDENTITY_UNRESOLVED", "Buyer VAT identity is not yet resolved")

func identityAmbiguous(s vatid.Status) bool {
	return s == "" || s.IsAmbiguous()
}

func fallbackReason(s vatid.Status) (string, ReasonCode) {
	switch s {
	case vatid.StatusInvalid:
		return reasonTextInvalid, ReasonVatIDInvalid
	case vatid.StatusValid:
		// valid identifier but no cross-border B2B permission
		return "", ReasonNone
	case vatid.StatusUnknown:
		return reasonTextUnknown, ReasonVatIDUnknown
	default:
		return reasonTextPending, ReasonVatIDPending
	}
}

func reasonForTreatment(t Treatment) (string, ReasonCode) {
	switch t {
	case TreatmentEUB2BRC:
		return ReasonTextReverseCharge, ReasonReverseCharge
	case TreatmentNonEU:
		return ReasonTextOutsideEU, ReasonOutsideEU
	default:
		return "", ReasonManual
	}
}
