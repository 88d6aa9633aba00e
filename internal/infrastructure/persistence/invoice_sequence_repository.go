package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/infrastructure/persistence/models"
)

// GormSequenceRepository implements invoicing.SequenceRepository using GORM.
//
// Increment seeds the counter row if it does not exist, locks it with
// SELECT ... FOR UPDATE and advances it with a compare-and-set on last_number.
// It must be called with a transaction handle; the lock and the increment are
// released or rolled back together with the invoice that consumes the number.
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// Increment advances the counter for key by one and returns the new value.
func (r *GormSequenceRepository) Increment(ctx context.Context, key invoicing.SequenceKey) (int64, error) {
	db := r.db.WithContext(ctx)
	now := time.Now().UTC()

	seed := models.InvoiceSequenceModel{
		ID:         uuid.New(),
		SellerID:   key.SellerID,
		Year:       key.Year,
		Prefix:     key.Prefix,
		LastNumber: 0,
		UpdatedAt:  now,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seller_id"}, {Name: "year"}, {Name: "prefix"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return 0, err
	}

	var row models.InvoiceSequenceModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seller_id = ? AND year = ? AND prefix = ?", key.SellerID, key.Year, key.Prefix).
		First(&row).Error; err != nil {
		return 0, err
	}

	next := row.LastNumber + 1
	result := db.Model(&models.InvoiceSequenceModel{}).
		Where("id = ? AND last_number = ?", row.ID, row.LastNumber).
		Updates(map[string]interface{}{
			"last_number": next,
			"updated_at":  now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, shared.ErrConcurrencyConflict.WithMessage("Invoice sequence %s-%d advanced concurrently", key.Prefix, key.Year)
	}
	return next, nil
}

// Current returns the last allocated value for key, or 0 when nothing was issued yet.
func (r *GormSequenceRepository) Current(ctx context.Context, key invoicing.SequenceKey) (int64, error) {
	var row models.InvoiceSequenceModel
	err := r.db.WithContext(ctx).
		Where("seller_id = ? AND year = ? AND prefix = ?", key.SellerID, key.Year, key.Prefix).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.LastNumber, nil
}

var _ invoicing.SequenceRepository = (*GormSequenceRepository)(nil)
