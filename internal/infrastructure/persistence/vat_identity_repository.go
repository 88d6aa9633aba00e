package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
	"github.com/ledgerly/invoicing/internal/infrastructure/persistence/models"
)

// GormVatIdentityRepository implements vatid.Repository using GORM.
// The table is shared by all sellers, so no seller scope applies.
type GormVatIdentityRepository struct {
	db *gorm.DB
}

// NewGormVatIdentityRepository creates a new GormVatIdentityRepository
func NewGormVatIdentityRepository(db *gorm.DB) *GormVatIdentityRepository {
	return &GormVatIdentityRepository{db: db}
}

// FindByID finds a cache row by ID
func (r *GormVatIdentityRepository) FindByID(ctx context.Context, id uuid.UUID) (*vatid.VatIdentity, error) {
	var model models.VatIdentityModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("VAT identity %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByKey finds a cache row by its natural key
func (r *GormVatIdentityRepository) FindByKey(ctx context.Context, key vatid.Key) (*vatid.VatIdentity, error) {
	var model models.VatIdentityModel
	if err := r.db.WithContext(ctx).
		Where("country = ? AND identifier = ?", string(key.Country), key.Identifier).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("VAT identity %s not found", key)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOrCreate returns the row for key, inserting a pending row when missing.
// A concurrent insert of the same key is absorbed by the unique index.
func (r *GormVatIdentityRepository) FindOrCreate(ctx context.Context, key vatid.Key) (*vatid.VatIdentity, error) {
	existing, err := r.FindByKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	row := models.VatIdentityModelFromDomain(vatid.NewVatIdentity(key))
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "country"}, {Name: "identifier"}},
			DoNothing: true,
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	return r.FindByKey(ctx, key)
}

// ClaimEnqueue stamps last_enqueued_at only when no enqueue happened within throttle.
func (r *GormVatIdentityRepository) ClaimEnqueue(ctx context.Context, id uuid.UUID, now time.Time, throttle time.Duration) (bool, error) {
	now = now.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.VatIdentityModel{}).
		Where("id = ? AND (last_enqueued_at IS NULL OR last_enqueued_at <= ?)", id, now.Add(-throttle)).
		Updates(map[string]interface{}{
			"last_enqueued_at": now,
			"updated_at":       now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseEnqueue restores the stamp a failed enqueue left behind.
func (r *GormVatIdentityRepository) ReleaseEnqueue(ctx context.Context, id uuid.UUID, claimedAt time.Time, previous *time.Time) error {
	var restored interface{}
	if previous != nil {
		restored = previous.UTC()
	}
	return r.db.WithContext(ctx).
		Model(&models.VatIdentityModel{}).
		Where("id = ? AND last_enqueued_at = ?", id, claimedAt.UTC()).
		Updates(map[string]interface{}{
			"last_enqueued_at": restored,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// SaveValidation writes the verdict columns owned by the validation job.
func (r *GormVatIdentityRepository) SaveValidation(ctx context.Context, identity *vatid.VatIdentity) error {
	m := models.VatIdentityModelFromDomain(identity)
	result := r.db.WithContext(ctx).
		Model(&models.VatIdentityModel{}).
		Where("id = ?", identity.ID).
		Updates(map[string]interface{}{
			"status":            m.Status,
			"last_checked_at":   m.LastCheckedAt,
			"status_changed_at": m.StatusChangedAt,
			"resolved_name":     m.ResolvedName,
			"resolved_address":  m.ResolvedAddress,
			"source":            m.Source,
			"last_error":        m.LastError,
			"last_error_at":     m.LastErrorAt,
			"updated_at":        m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound.WithMessage("VAT identity %s not found", identity.ID)
	}
	return nil
}

// FindStaleReferenced lists referenced rows checked before checkedBefore, never-checked rows first.
func (r *GormVatIdentityRepository) FindStaleReferenced(ctx context.Context, checkedBefore time.Time, limit int) ([]vatid.VatIdentity, error) {
	if limit <= 0 {
		limit = 100
	}
	db := r.db.WithContext(ctx)
	sellerRefs := db.Model(&models.SellerModel{}).Select("vat_identity_id").Where("vat_identity_id IS NOT NULL")
	buyerRefs := db.Model(&models.BuyerModel{}).Select("vat_identity_id").Where("vat_identity_id IS NOT NULL")

	var rows []models.VatIdentityModel
	if err := db.
		Where("(last_checked_at IS NULL OR last_checked_at < ?)", checkedBefore.UTC()).
		Where("(id IN (?) OR id IN (?))", sellerRefs, buyerRefs).
		Order("last_checked_at IS NOT NULL, last_checked_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]vatid.VatIdentity, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var _ vatid.Repository = (*GormVatIdentityRepository)(nil)
