package party

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// SellerRepository defines the interface for seller persistence
type SellerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Seller, error)
	Save(ctx context.Context, seller *Seller) error
}

// BuyerRepository defines the interface for buyer persistence.
// Lookups exclude tombstoned buyers unless the method says otherwise.
type BuyerRepository interface {
	FindByID(ctx context.Context, sellerID, id uuid.UUID) (*Buyer, error)
	FindByIDIncludingDeleted(ctx context.Context, sellerID, id uuid.UUID) (*Buyer, error)
	FindAll(ctx context.Context, sellerID uuid.UUID, filter shared.Filter) ([]Buyer, int64, error)
	// FindByVatIdentity lists buyers of every seller linked to a cache row, tombstoned included.
	FindByVatIdentity(ctx context.Context, identityID uuid.UUID) ([]Buyer, error)
	Save(ctx context.Context, buyer *Buyer) error
}

// BankAccountRepository defines the interface for bank account persistence
type BankAccountRepository interface {
	FindBySeller(ctx context.Context, sellerID uuid.UUID) ([]BankAccount, error)
	FindActiveByCurrency(ctx context.Context, sellerID uuid.UUID, currency valueobject.Currency) ([]BankAccount, error)
	CountActive(ctx context.Context, sellerID uuid.UUID) (int64, error)
	Save(ctx context.Context, account *BankAccount) error
}
