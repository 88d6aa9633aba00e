package party

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// BankAccountService manages a seller's receiving accounts
type BankAccountService struct {
	accounts party.BankAccountRepository
}

// NewBankAccountService creates a new BankAccountService
func NewBankAccountService(accounts party.BankAccountRepository) *BankAccountService {
	return &BankAccountService{accounts: accounts}
}

// Create adds an active account
func (s *BankAccountService) Create(ctx context.Context, sellerID uuid.UUID, req CreateBankAccountRequest) (*BankAccountResponse, error) {
	account, err := party.NewBankAccount(sellerID, req.Nickname, req.AccountIdentifier, req.Currency)
	if err != nil {
		return nil, err
	}

	existing, err := s.accounts.FindBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Active && existing[i].AccountIdentifier == account.AccountIdentifier && existing[i].Currency == account.Currency {
			return nil, shared.ErrAlreadyExists.WithMessage("Bank account %s already exists", account.AccountIdentifier).WithField("account_identifier")
		}
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	resp := ToBankAccountResponse(account)
	return &resp, nil
}

// List returns every account of the seller
func (s *BankAccountService) List(ctx context.Context, sellerID uuid.UUID) ([]BankAccountResponse, error) {
	accounts, err := s.accounts.FindBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	out := make([]BankAccountResponse, len(accounts))
	for i := range accounts {
		out[i] = ToBankAccountResponse(&accounts[i])
	}
	return out, nil
}

// Deactivate hides the account from new invoices
func (s *BankAccountService) Deactivate(ctx context.Context, sellerID, accountID uuid.UUID) (*BankAccountResponse, error) {
	accounts, err := s.accounts.FindBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].ID != accountID {
			continue
		}
		account := &accounts[i]
		if account.Active {
			account.Deactivate()
			if err := s.accounts.Save(ctx, account); err != nil {
				return nil, err
			}
		}
		resp := ToBankAccountResponse(account)
		return &resp, nil
	}
	return nil, shared.ErrNotFound.WithMessage("Bank account %s not found", accountID)
}
