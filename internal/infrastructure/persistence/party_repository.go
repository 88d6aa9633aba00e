package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/infrastructure/persistence/models"
)

// GormSellerRepository implements party.SellerRepository using GORM
type GormSellerRepository struct {
	db *gorm.DB
}

// NewGormSellerRepository creates a new GormSellerRepository
func NewGormSellerRepository(db *gorm.DB) *GormSellerRepository {
	return &GormSellerRepository{db: db}
}

// FindByID finds a seller by ID
func (r *GormSellerRepository) FindByID(ctx context.Context, id uuid.UUID) (*party.Seller, error) {
	var model models.SellerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("Seller %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a seller
func (r *GormSellerRepository) Save(ctx context.Context, seller *party.Seller) error {
	return r.db.WithContext(ctx).Save(models.SellerModelFromDomain(seller)).Error
}

// GormBuyerRepository implements party.BuyerRepository using GORM
type GormBuyerRepository struct {
	db *gorm.DB
}

// NewGormBuyerRepository creates a new GormBuyerRepository
func NewGormBuyerRepository(db *gorm.DB) *GormBuyerRepository {
	return &GormBuyerRepository{db: db}
}

// FindByID finds a live buyer of sellerID
func (r *GormBuyerRepository) FindByID(ctx context.Context, sellerID, id uuid.UUID) (*party.Buyer, error) {
	return r.find(r.db.WithContext(ctx), sellerID, id)
}

// FindByIDIncludingDeleted finds a buyer of sellerID even if tombstoned
func (r *GormBuyerRepository) FindByIDIncludingDeleted(ctx context.Context, sellerID, id uuid.UUID) (*party.Buyer, error) {
	return r.find(r.db.WithContext(ctx).Unscoped(), sellerID, id)
}

func (r *GormBuyerRepository) find(db *gorm.DB, sellerID, id uuid.UUID) (*party.Buyer, error) {
	var model models.BuyerModel
	if err := db.Scopes(SellerScope(sellerID)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("Buyer %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists live buyers of sellerID
func (r *GormBuyerRepository) FindAll(ctx context.Context, sellerID uuid.UUID, filter shared.Filter) ([]party.Buyer, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.BuyerModel{}).Scopes(SellerScope(sellerID))
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(legal_name) LIKE ? OR LOWER(vat_identifier) LIKE ?)", like, like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.BuyerModel
	if err := query.Order("name ASC").Offset(filter.Offset()).Limit(filter.Limit()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	buyers := make([]party.Buyer, len(rows))
	for i := range rows {
		buyers[i] = *rows[i].ToDomain()
	}
	return buyers, total, nil
}

// FindByVatIdentity lists buyers of all sellers that point at identityID
func (r *GormBuyerRepository) FindByVatIdentity(ctx context.Context, identityID uuid.UUID) ([]party.Buyer, error) {
	var rows []models.BuyerModel
	if err := r.db.WithContext(ctx).
		Unscoped().
		Where("vat_identity_id = ?", identityID).
		Order("seller_id ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	buyers := make([]party.Buyer, len(rows))
	for i := range rows {
		buyers[i] = *rows[i].ToDomain()
	}
	return buyers, nil
}

// Save creates or updates a buyer, including its tombstone
func (r *GormBuyerRepository) Save(ctx context.Context, buyer *party.Buyer) error {
	return r.db.WithContext(ctx).Unscoped().Save(models.BuyerModelFromDomain(buyer)).Error
}

// GormBankAccountRepository implements party.BankAccountRepository using GORM
type GormBankAccountRepository struct {
	db *gorm.DB
}

// NewGormBankAccountRepository creates a new GormBankAccountRepository
func NewGormBankAccountRepository(db *gorm.DB) *GormBankAccountRepository {
	return &GormBankAccountRepository{db: db}
}

// FindBySeller lists all accounts of a seller, active ones first
func (r *GormBankAccountRepository) FindBySeller(ctx context.Context, sellerID uuid.UUID) ([]party.BankAccount, error) {
	var rows []models.BankAccountModel
	if err := r.db.WithContext(ctx).
		Scopes(SellerScope(sellerID)).
		Order("active DESC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return bankAccountsToDomain(rows), nil
}

// FindActiveByCurrency lists active accounts of a seller in currency, oldest first
func (r *GormBankAccountRepository) FindActiveByCurrency(ctx context.Context, sellerID uuid.UUID, currency valueobject.Currency) ([]party.BankAccount, error) {
	var rows []models.BankAccountModel
	if err := r.db.WithContext(ctx).
		Scopes(SellerScope(sellerID)).
		Where("currency = ? AND active = ?", currency.String(), true).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return bankAccountsToDomain(rows), nil
}

// CountActive counts the active accounts of a seller
func (r *GormBankAccountRepository) CountActive(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BankAccountModel{}).
		Scopes(SellerScope(sellerID)).
		Where("active = ?", true).
		Count(&count).Error
	return count, err
}

// Save creates or updates a bank account
func (r *GormBankAccountRepository) Save(ctx context.Context, account *party.BankAccount) error {
	return r.db.WithContext(ctx).Save(models.BankAccountModelFromDomain(account)).Error
}

func bankAccountsToDomain(rows []models.BankAccountModel) []party.BankAccount {
	out := make([]party.BankAccount, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure the GORM repositories implement the domain interfaces
var (
	_ party.SellerRepository      = (*GormSellerRepository)(nil)
	_ party.BuyerRepository       = (*GormBuyerRepository)(nil)
	_ party.BankAccountRepository = (*GormBankAccountRepository)(nil)
)
