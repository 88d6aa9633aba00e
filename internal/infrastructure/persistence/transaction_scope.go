package persistence

import (
	"context"

	"gorm.io/gorm"

	appinvoicing "github.com/ledgerly/invoicing/internal/application/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinvoicing.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Invoices returns the invoice repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Invoices() invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// Items returns the invoice item repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Items() invoicing.InvoiceItemRepository {
	return NewGormInvoiceItemRepository(r.tx)
}

// Sequences returns the sequence repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Sequences() invoicing.SequenceRepository {
	return NewGormSequenceRepository(r.tx)
}

// Events returns the audit trail repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Events() invoicing.EventRepository {
	return NewGormInvoiceEventRepository(r.tx)
}

// Sellers returns the seller repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Sellers() party.SellerRepository {
	return NewGormSellerRepository(r.tx)
}

// Buyers returns the buyer repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Buyers() party.BuyerRepository {
	return NewGormBuyerRepository(r.tx)
}

// BankAccounts returns the bank account repository scoped to the current transaction.
func (r *gormTransactionalRepositories) BankAccounts() party.BankAccountRepository {
	return NewGormBankAccountRepository(r.tx)
}

// VatIdentities returns the VAT identity repository scoped to the current transaction.
func (r *gormTransactionalRepositories) VatIdentities() vatid.Repository {
	return NewGormVatIdentityRepository(r.tx)
}

var (
	_ appinvoicing.TransactionScope          = (*GormTransactionScope)(nil)
	_ appinvoicing.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
