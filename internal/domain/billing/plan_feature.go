package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlanCode identifies a subscription plan
type PlanCode string

const (
	PlanFree     PlanCode = "free"
	PlanPro      PlanCode = "pro"
	PlanBusiness PlanCode = "business"
)

// DefaultPlan is assigned to sellers without a plan
const DefaultPlan = PlanFree

// IsValid returns true if the plan is a known value
func (p PlanCode) IsValid() bool {
	switch p {
	case PlanFree, PlanPro, PlanBusiness:
		return true
	}
	return false
}

// FeatureKey represents a unique identifier for a feature
type FeatureKey string

const (
	// FeatureCrossBorderB2B enables automatic EU reverse charge
	FeatureCrossBorderB2B FeatureKey = "cross_border_b2b"
	// FeatureMonthlyInvoices carries the monthly issued-invoice limit
	FeatureMonthlyInvoices FeatureKey = "monthly_invoices"
	// FeatureVatRecheck allows manual re-validation of VAT identities
	FeatureVatRecheck FeatureKey = "vat_recheck"
)

// IsValid returns true if the key is a known feature
func (k FeatureKey) IsValid() bool {
	switch k {
	case FeatureCrossBorderB2B, FeatureMonthlyInvoices, FeatureVatRecheck:
		return true
	}
	return false
}

// PlanFeature defines whether a feature is enabled for a plan and its limit
type PlanFeature struct {
	ID          uuid.UUID
	Plan        PlanCode
	FeatureKey  FeatureKey
	Enabled     bool
	Limit       *int // nil = unlimited
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPlanFeature creates a new PlanFeature with the given parameters
func NewPlanFeature(plan PlanCode, key FeatureKey, enabled bool, description string) *PlanFeature {
	now := time.Now().UTC()
	return &PlanFeature{
		ID:          uuid.New(),
		Plan:        plan,
		FeatureKey:  key,
		Enabled:     enabled,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewPlanFeatureWithLimit creates a new PlanFeature with a limit
func NewPlanFeatureWithLimit(plan PlanCode, key FeatureKey, limit int, description string) *PlanFeature {
	pf := NewPlanFeature(plan, key, true, description)
	pf.Limit = &limit
	return pf
}

// IsUnlimited returns true if the feature has no limit
func (pf *PlanFeature) IsUnlimited() bool {
	return pf.Limit == nil
}

// PlanFeatureRepository defines the interface for plan feature persistence.
// Stored rows override the built-in defaults.
type PlanFeatureRepository interface {
	FindByPlan(ctx context.Context, plan PlanCode) ([]PlanFeature, error)
	Save(ctx context.Context, feature *PlanFeature) error
}

// DefaultPlanFeatures returns the built-in feature set of a plan
func DefaultPlanFeatures(plan PlanCode) []PlanFeature {
	switch plan {
	case PlanPro:
		return []PlanFeature{
			*NewPlanFeature(plan, FeatureCrossBorderB2B, true, "Automatic EU reverse charge"),
			*NewPlanFeatureWithLimit(plan, FeatureMonthlyInvoices, 200, "200 issued invoices per month"),
			*NewPlanFeature(plan, FeatureVatRecheck, true, "Manual VAT identity re-check"),
		}
	case PlanBusiness:
		return []PlanFeature{
			*NewPlanFeature(plan, FeatureCrossBorderB2B, true, "Automatic EU reverse charge"),
			*NewPlanFeature(plan, FeatureMonthlyInvoices, true, "Unlimited issued invoices"),
			*NewPlanFeature(plan, FeatureVatRecheck, true, "Manual VAT identity re-check"),
		}
	default:
		return []PlanFeature{
			*NewPlanFeature(PlanFree, FeatureCrossBorderB2B, false, "Automatic EU reverse charge"),
			*NewPlanFeatureWithLimit(PlanFree, FeatureMonthlyInvoices, 10, "10 issued invoices per month"),
			*NewPlanFeature(PlanFree, FeatureVatRecheck, false, "Manual VAT identity re-check"),
		}
	}
}

// MergeFeatures overlays stored rows on the defaults, keyed by feature.
func MergeFeatures(defaults, stored []PlanFeature) map[FeatureKey]PlanFeature {
	out := make(map[FeatureKey]PlanFeature, len(defaults)+len(stored))
	for _, f := range defaults {
		out[f.FeatureKey] = f
	}
	for _, f := range stored {
		out[f.FeatureKey] = f
	}
	return out
}
