package party

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// Buyer is an invoice recipient owned by one seller.
// Deleting a buyer only sets a tombstone; invoices keep pointing at it.
type Buyer struct {
	shared.SellerScopedRoot
	Name          string
	Country       valueobject.CountryCode
	VatIdentifier string
	LegalIdentity
	Email         string
	VatIdentityID *uuid.UUID
	DeletedAt     *time.Time
}

// BuyerInput carries the editable fields of a buyer.
type BuyerInput struct {
	Name          string
	Country       string
	VatIdentifier string
	Email         string
	Legal         LegalIdentity
}

// NewBuyer creates a buyer for sellerID.
func NewBuyer(sellerID uuid.UUID, in BuyerInput) (*Buyer, error) {
	b := &Buyer{SellerScopedRoot: shared.NewSellerScopedRoot(sellerID)}
	if err := b.apply(in); err != nil {
		return nil, err
	}
	return b, nil
}

// Update replaces the editable fields. It reports whether the VAT identifier
// or country changed, in which case the identity link must be re-resolved.
func (b *Buyer) Update(in BuyerInput) (bool, error) {
	if b.IsDeleted() {
		return false, shared.ErrInvalidState.WithMessage("Buyer has been deleted")
	}
	prevCountry, prevVat := b.Country, b.VatIdentifier
	if err := b.apply(in); err != nil {
		return false, err
	}
	b.BumpVersion()
	return prevCountry != b.Country || prevVat != b.VatIdentifier, nil
}

func (b *Buyer) apply(in BuyerInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return shared.NewFieldError("name", "INVALID_NAME", "Buyer name cannot be empty")
	}
	cc, err := valueobject.ParseCountryCode(in.Country)
	if err != nil {
		return shared.NewFieldError("country", "INVALID_COUNTRY", err.Error())
	}
	legal := trimLegal(in.Legal)
	if legal.LegalName == "" {
		legal.LegalName = name
	}

	b.Name = name
	b.Country = cc
	b.VatIdentifier = strings.TrimSpace(in.VatIdentifier)
	b.Email = strings.TrimSpace(in.Email)
	b.LegalIdentity = legal
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// SoftDelete tombstones the buyer.
func (b *Buyer) SoftDelete(now time.Time) {
	if b.DeletedAt != nil {
		return
	}
	t := now.UTC()
	b.DeletedAt = &t
	b.UpdatedAt = t
}

// IsDeleted reports whether the buyer has been tombstoned.
func (b *Buyer) IsDeleted() bool {
	return b.DeletedAt != nil
}

// HasVatIdentifier reports whether the buyer presents a VAT identifier.
func (b *Buyer) HasVatIdentifier() bool {
	return b.VatIdentifier != ""
}

// VatKeyParts implements vatid.Linkable.
func (b *Buyer) VatKeyParts() (string, string) {
	return string(b.Country), b.VatIdentifier
}

// VatIdentityRef implements vatid.Linkable.
func (b *Buyer) VatIdentityRef() *uuid.UUID {
	return b.VatIdentityID
}

// LinkVatIdentity implements vatid.Linkable.
func (b *Buyer) LinkVatIdentity(id *uuid.UUID) {
	b.VatIdentityID = id
}
