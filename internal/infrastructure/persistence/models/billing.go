package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/billing"
)

// PlanFeatureModel is the persistence model for the PlanFeature domain entity.
// Stored rows override the built-in plan catalog.
type PlanFeatureModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	PlanCode    string    `gorm:"column:plan_code;type:varchar(32);not null;uniqueIndex:uq_plan_features_plan_key,priority:1"`
	FeatureKey  string    `gorm:"column:feature_key;type:varchar(64);not null;uniqueIndex:uq_plan_features_plan_key,priority:2"`
	Enabled     bool      `gorm:"not null;default:false"`
	Limit       *int      `gorm:"column:feature_limit"`
	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PlanFeatureModel) TableName() string {
	return "plan_features"
}

// ToDomain converts the persistence model to a domain PlanFeature entity.
func (m *PlanFeatureModel) ToDomain() *billing.PlanFeature {
	return &billing.PlanFeature{
		ID:          m.ID,
		Plan:        billing.PlanCode(m.PlanCode),
		FeatureKey:  billing.FeatureKey(m.FeatureKey),
		Enabled:     m.Enabled,
		Limit:       m.Limit,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// PlanFeatureModelFromDomain creates a new persistence model from a domain PlanFeature entity.
func PlanFeatureModelFromDomain(pf *billing.PlanFeature) *PlanFeatureModel {
	return &PlanFeatureModel{
		ID:          pf.ID,
		PlanCode:    string(pf.Plan),
		FeatureKey:  string(pf.FeatureKey),
		Enabled:     pf.Enabled,
		Limit:       pf.Limit,
		Description: pf.Description,
		CreatedAt:   pf.CreatedAt,
		UpdatedAt:   pf.UpdatedAt,
	}
}
