package invoicing

import (
	"context"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// TransactionScope provides transactional access to the repositories used by issuance.
// All repository operations inside fn are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
// All repositories returned share the same underlying database transaction.
type TransactionalRepositories interface {
	Invoices() invoicing.InvoiceRepository
	Items() invoicing.InvoiceItemRepository
	Sequences() invoicing.SequenceRepository
	Events() invoicing.EventRepository
	Sellers() party.SellerRepository
	Buyers() party.BuyerRepository
	BankAccounts() party.BankAccountRepository
	VatIdentities() vatid.Repository
}
