package invoicing

import (
	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// SellerDetails is the seller as it was at issuance.
type SellerDetails struct {
	LegalName          string              `json:"legal_name"`
	Country            string              `json:"country"`
	VatIdentifier      string              `json:"vat_identifier,omitempty"`
	RegistrationNumber string              `json:"registration_number,omitempty"`
	TaxIdentifier      string              `json:"tax_identifier,omitempty"`
	Address            valueobject.Address `json:"address"`
}

// BuyerDetails is the buyer as it was at issuance.
type BuyerDetails struct {
	Name               string              `json:"name"`
	LegalName          string              `json:"legal_name"`
	Country            string              `json:"country"`
	VatIdentifier      string              `json:"vat_identifier,omitempty"`
	RegistrationNumber string              `json:"registration_number,omitempty"`
	TaxIdentifier      string              `json:"tax_identifier,omitempty"`
	Email              string              `json:"email,omitempty"`
	Address            valueobject.Address `json:"address"`
}

// PaymentAccount is one bank account printed on the invoice.
type PaymentAccount struct {
	Nickname          string `json:"nickname"`
	AccountIdentifier string `json:"account_identifier"`
}

// PaymentDetails lists every active account in the invoice currency at issuance.
type PaymentDetails struct {
	Currency string           `json:"currency"`
	Accounts []PaymentAccount `json:"accounts"`
}

// SellerSnapshot freezes the live seller.
func SellerSnapshot(s *party.Seller) SellerDetails {
	return SellerDetails{
		LegalName:          s.LegalName,
		Country:            string(s.Country),
		VatIdentifier:      s.VatIdentifier,
		RegistrationNumber: s.RegistrationNumber,
		TaxIdentifier:      s.TaxIdentifier,
		Address:            s.Address,
	}
}

// BuyerSnapshot freezes the live buyer.
func BuyerSnapshot(b *party.Buyer) BuyerDetails {
	return BuyerDetails{
		Name:               b.Name,
		LegalName:          b.LegalName,
		Country:            string(b.Country),
		VatIdentifier:      b.VatIdentifier,
		RegistrationNumber: b.RegistrationNumber,
		TaxIdentifier:      b.TaxIdentifier,
		Email:              b.Email,
		Address:            b.Address,
	}
}

// PaymentSnapshot freezes the given accounts.
func PaymentSnapshot(currency valueobject.Currency, accounts []party.BankAccount) PaymentDetails {
	pd := PaymentDetails{Currency: currency.String(), Accounts: make([]PaymentAccount, 0, len(accounts))}
	for _, a := range accounts {
		pd.Accounts = append(pd.Accounts, PaymentAccount{Nickname: a.Nickname, AccountIdentifier: a.AccountIdentifier})
	}
	return pd
}

// Equal reports whether two payment snapshots are identical.
func (p *PaymentDetails) Equal(o *PaymentDetails) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Currency != o.Currency || len(p.Accounts) != len(o.Accounts) {
		return false
	}
	for i := range p.Accounts {
		if p.Accounts[i] != o.Accounts[i] {
			return false
		}
	}
	return true
}
