package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerly/invoicing/internal/domain/billing"
	"github.com/ledgerly/invoicing/internal/infrastructure/persistence/models"
)

// GormPlanFeatureRepository implements billing.PlanFeatureRepository using GORM
type GormPlanFeatureRepository struct {
	db *gorm.DB
}

// NewGormPlanFeatureRepository creates a new GormPlanFeatureRepository
func NewGormPlanFeatureRepository(db *gorm.DB) *GormPlanFeatureRepository {
	return &GormPlanFeatureRepository{db: db}
}

// FindByPlan finds all stored feature overrides for a plan
func (r *GormPlanFeatureRepository) FindByPlan(ctx context.Context, plan billing.PlanCode) ([]billing.PlanFeature, error) {
	var rows []models.PlanFeatureModel
	if err := r.db.WithContext(ctx).
		Where("plan_code = ?", string(plan)).
		Order("feature_key ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	features := make([]billing.PlanFeature, len(rows))
	for i := range rows {
		features[i] = *rows[i].ToDomain()
	}
	return features, nil
}

// Save creates or replaces the override for (plan, feature)
func (r *GormPlanFeatureRepository) Save(ctx context.Context, feature *billing.PlanFeature) error {
	model := models.PlanFeatureModelFromDomain(feature)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plan_code"}, {Name: "feature_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "feature_limit", "description", "updated_at"}),
	}).Create(model).Error
}

var _ billing.PlanFeatureRepository = (*GormPlanFeatureRepository)(nil)
