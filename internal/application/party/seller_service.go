package party

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/billing"
	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// SellerService handles seller registration and settings
type SellerService struct {
	sellers   party.SellerRepository
	resolver  VatResolver
	recompute DraftRecomputer
	logger    *zap.Logger
}

// NewSellerService creates a new SellerService
func NewSellerService(sellers party.SellerRepository, resolver VatResolver, recompute DraftRecomputer, logger *zap.Logger) *SellerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SellerService{
		sellers:   sellers,
		resolver:  resolver,
		recompute: recompute,
		logger:    logger,
	}
}

// Create registers a seller
func (s *SellerService) Create(ctx context.Context, req CreateSellerRequest) (*SellerResponse, error) {
	seller, err := party.NewSeller(req.Country, req.BaselineRate, req.Legal.toDomain())
	if err != nil {
		return nil, err
	}
	if req.InvoicePrefix != "" {
		seller.SetInvoicePrefix(req.InvoicePrefix)
	}
	plan := billing.DefaultPlan
	if req.Plan != "" {
		plan = billing.PlanCode(req.Plan)
		if !plan.IsValid() {
			return nil, shared.NewFieldError("plan", "INVALID_PLAN", fmt.Sprintf("Unknown plan %q", req.Plan))
		}
	}
	seller.PlanCode = string(plan)

	if vat := strings.TrimSpace(req.VatIdentifier); vat != "" {
		seller.VatIdentifier = vat
		if _, err := s.resolver.Resolve(ctx, seller); err != nil {
			return nil, err
		}
	}

	if err := s.sellers.Save(ctx, seller); err != nil {
		return nil, err
	}

	s.logger.Info("Seller registered",
		zap.String("seller_id", seller.ID.String()),
		zap.String("country", string(seller.Country)),
	)
	resp := ToSellerResponse(seller)
	return &resp, nil
}

// Get returns a seller
func (s *SellerService) Get(ctx context.Context, sellerID uuid.UUID) (*SellerResponse, error) {
	seller, err := s.sellers.FindByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	resp := ToSellerResponse(seller)
	return &resp, nil
}

// UpdateTaxSettings replaces the seller's tax settings. A changed VAT key
// re-resolves the identity link; a changed country or effective rate
// recomputes every open draft of the seller.
func (s *SellerService) UpdateTaxSettings(ctx context.Context, sellerID uuid.UUID, req UpdateTaxSettingsRequest) (*SellerResponse, error) {
	seller, err := s.sellers.FindByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	prevCountry, prevVat := seller.VatKeyParts()
	changed, err := seller.UpdateTaxSettings(party.TaxSettings{
		Country:         req.Country,
		BaselineRate:    req.BaselineRate,
		OverrideRate:    req.OverrideRate,
		OverrideEnabled: req.OverrideEnabled,
		VatIdentifier:   req.VatIdentifier,
	})
	if err != nil {
		return nil, err
	}

	country, vat := seller.VatKeyParts()
	if country != prevCountry || vat != prevVat {
		if _, err := s.resolver.Resolve(ctx, seller); err != nil {
			return nil, err
		}
	}

	if err := s.sellers.Save(ctx, seller); err != nil {
		return nil, err
	}

	if changed {
		s.recomputeDrafts(ctx, sellerID)
	}

	resp := ToSellerResponse(seller)
	return &resp, nil
}

// UpdateProfile replaces the legal identity and invoice prefix
func (s *SellerService) UpdateProfile(ctx context.Context, sellerID uuid.UUID, req UpdateSellerProfileRequest) (*SellerResponse, error) {
	seller, err := s.sellers.FindByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if err := seller.UpdateLegalIdentity(req.Legal.toDomain()); err != nil {
		return nil, err
	}
	if req.InvoicePrefix != "" {
		seller.SetInvoicePrefix(req.InvoicePrefix)
	}
	if err := s.sellers.Save(ctx, seller); err != nil {
		return nil, err
	}
	resp := ToSellerResponse(seller)
	return &resp, nil
}

// ChangePlan moves the seller to another plan. Plan features such as
// cross-border B2B feed VAT decisions, so drafts are recomputed.
func (s *SellerService) ChangePlan(ctx context.Context, sellerID uuid.UUID, req ChangePlanRequest) (*SellerResponse, error) {
	plan := billing.PlanCode(req.Plan)
	if !plan.IsValid() {
		return nil, shared.NewFieldError("plan", "INVALID_PLAN", fmt.Sprintf("Unknown plan %q", req.Plan))
	}

	seller, err := s.sellers.FindByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if seller.PlanCode == string(plan) {
		resp := ToSellerResponse(seller)
		return &resp, nil
	}

	seller.SetPlan(string(plan))
	if err := s.sellers.Save(ctx, seller); err != nil {
		return nil, err
	}
	s.recomputeDrafts(ctx, sellerID)

	resp := ToSellerResponse(seller)
	return &resp, nil
}

// recomputeDrafts is best effort: drafts are decided again at issuance.
func (s *SellerService) recomputeDrafts(ctx context.Context, sellerID uuid.UUID) {
	n, err := s.recompute.RecomputeDrafts(ctx, sellerID, nil)
	if err != nil {
		s.logger.Warn("Failed to recompute drafts after seller change",
			zap.String("seller_id", sellerID.String()),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Recomputed drafts after seller change",
		zap.String("seller_id", sellerID.String()),
		zap.Int("count", n),
	)
}
