package party

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// BankAccount is a seller's account that can receive invoice payments.
type BankAccount struct {
	shared.BaseEntity
	SellerID          uuid.UUID
	Nickname          string
	AccountIdentifier string
	Currency          valueobject.Currency
	Active            bool
}

// NewBankAccount creates an active bank account.
func NewBankAccount(sellerID uuid.UUID, nickname, accountIdentifier, currency string) (*BankAccount, error) {
	cur, err := valueobject.ParseCurrency(currency)
	if err != nil {
		return nil, shared.NewFieldError("currency", "INVALID_CURRENCY", err.Error())
	}
	ident := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(accountIdentifier), " ", ""))
	if ident == "" {
		return nil, shared.NewFieldError("account_identifier", "INVALID_ACCOUNT", "Account identifier cannot be empty")
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = cur.String() + " account"
	}
	return &BankAccount{
		BaseEntity:        shared.NewBaseEntity(),
		SellerID:          sellerID,
		Nickname:          nickname,
		AccountIdentifier: ident,
		Currency:          cur,
		Active:            true,
	}, nil
}

// Deactivate stops the account from being offered on new invoices.
func (a *BankAccount) Deactivate() {
	a.Active = false
	a.Touch()
}
