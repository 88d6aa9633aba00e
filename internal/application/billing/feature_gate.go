package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/billing"
	"github.com/ledgerly/invoicing/internal/domain/party"
)

// FeatureGate answers plan feature checks for a seller id
type FeatureGate struct {
	sellers party.SellerRepository
	plans   *PlanService
}

// NewFeatureGate creates a new FeatureGate
func NewFeatureGate(sellers party.SellerRepository, plans *PlanService) *FeatureGate {
	return &FeatureGate{sellers: sellers, plans: plans}
}

// SellerHasFeature reports whether the seller's plan enables key
func (g *FeatureGate) SellerHasFeature(ctx context.Context, sellerID uuid.UUID, key billing.FeatureKey) (bool, error) {
	seller, err := g.sellers.FindByID(ctx, sellerID)
	if err != nil {
		return false, err
	}
	return g.plans.HasPermission(ctx, seller, key)
}
