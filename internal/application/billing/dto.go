package billing

import (
	"github.com/ledgerly/invoicing/internal/domain/billing"
)

// PlanFeatureResponse is one effective feature of a plan
type PlanFeatureResponse struct {
	FeatureKey  string `json:"feature_key"`
	Enabled     bool   `json:"enabled"`
	Limit       *int   `json:"limit,omitempty"`
	Description string `json:"description"`
}

// PlanFeaturesResponse lists the effective features of a plan
type PlanFeaturesResponse struct {
	Plan     string                `json:"plan"`
	Features []PlanFeatureResponse `json:"features"`
}

// UpdatePlanFeatureRequest overrides one feature of a plan
type UpdatePlanFeatureRequest struct {
	Enabled     bool   `json:"enabled"`
	Limit       *int   `json:"limit" binding:"omitempty,min=0"`
	Description string `json:"description" binding:"max=200"`
}

// ToPlanFeaturesResponse converts the effective features of a plan
func ToPlanFeaturesResponse(plan billing.PlanCode, features []billing.PlanFeature) PlanFeaturesResponse {
	out := PlanFeaturesResponse{Plan: string(plan), Features: make([]PlanFeatureResponse, len(features))}
	for i, f := range features {
		out.Features[i] = PlanFeatureResponse{
			FeatureKey:  string(f.FeatureKey),
			Enabled:     f.Enabled,
			Limit:       f.Limit,
			Description: f.Description,
		}
	}
	return out
}
