package billing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appinvoicing "github.com/ledgerly/invoicing/internal/application/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/billing"
	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/tax"
)

// FeatureCache holds the stored feature rows of a plan between reads
type FeatureCache interface {
	Get(ctx context.Context, plan billing.PlanCode) ([]billing.PlanFeature, bool, error)
	Set(ctx context.Context, plan billing.PlanCode, features []billing.PlanFeature, ttl time.Duration) error
	Invalidate(ctx context.Context, plan billing.PlanCode) error
}

// PlanService resolves the permissions and limits of a seller's plan.
// Stored feature rows override the built-in plan catalog and are cached
// per plan for CacheTTL.
type PlanService struct {
	repo   billing.PlanFeatureRepository
	cache  FeatureCache
	logger *zap.Logger
	ttl    time.Duration
}

// PlanServiceConfig contains configuration for PlanService
type PlanServiceConfig struct {
	CacheTTL time.Duration
}

// DefaultPlanServiceConfig returns default configuration
func DefaultPlanServiceConfig() PlanServiceConfig {
	return PlanServiceConfig{CacheTTL: 5 * time.Minute}
}

// NewPlanService creates a new PlanService. A nil cache reads the repository every time.
func NewPlanService(repo billing.PlanFeatureRepository, cache FeatureCache, logger *zap.Logger, cfg PlanServiceConfig) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{
		repo:   repo,
		cache:  cache,
		logger: logger,
		ttl:    cfg.CacheTTL,
	}
}

// Permissions returns the enabled feature keys of the seller's plan
func (s *PlanService) Permissions(ctx context.Context, seller *party.Seller) (tax.Permissions, error) {
	features, err := s.features(ctx, planOf(seller))
	if err != nil {
		return nil, err
	}
	perms := make(tax.Permissions, len(features))
	for key, f := range features {
		if f.Enabled {
			perms[string(key)] = true
		}
	}
	return perms, nil
}

// HasPermission reports whether the seller's plan enables key
func (s *PlanService) HasPermission(ctx context.Context, seller *party.Seller, key billing.FeatureKey) (bool, error) {
	perms, err := s.Permissions(ctx, seller)
	if err != nil {
		return false, err
	}
	return perms.Has(string(key)), nil
}

// MonthlyInvoiceLimit returns the issued-invoice allowance of the seller's plan.
// A disabled feature allows nothing; an enabled feature without a limit is unlimited.
func (s *PlanService) MonthlyInvoiceLimit(ctx context.Context, seller *party.Seller) (appinvoicing.MonthlyLimit, error) {
	plan := planOf(seller)
	features, err := s.features(ctx, plan)
	if err != nil {
		return appinvoicing.MonthlyLimit{}, err
	}
	out := appinvoicing.MonthlyLimit{Plan: string(plan)}
	f, ok := features[billing.FeatureMonthlyInvoices]
	switch {
	case !ok:
	case !f.Enabled:
		zero := 0
		out.Limit = &zero
	case f.Limit != nil:
		limit := *f.Limit
		out.Limit = &limit
	}
	return out, nil
}

// Features returns the effective feature set of a plan
func (s *PlanService) Features(ctx context.Context, plan billing.PlanCode) ([]billing.PlanFeature, error) {
	features, err := s.features(ctx, plan)
	if err != nil {
		return nil, err
	}
	out := make([]billing.PlanFeature, 0, len(features))
	for _, f := range billing.DefaultPlanFeatures(plan) {
		out = append(out, features[f.FeatureKey])
	}
	return out, nil
}

// SaveFeature stores an override and drops the cached plan
func (s *PlanService) SaveFeature(ctx context.Context, feature *billing.PlanFeature) error {
	if !feature.Plan.IsValid() {
		return fmt.Errorf("unknown plan %q", feature.Plan)
	}
	if err := s.repo.Save(ctx, feature); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, feature.Plan); err != nil {
			s.logger.Warn("Failed to invalidate plan cache",
				zap.String("plan", string(feature.Plan)), zap.Error(err))
		}
	}
	s.logger.Info("Plan feature updated",
		zap.String("plan", string(feature.Plan)),
		zap.String("feature", string(feature.FeatureKey)),
		zap.Bool("enabled", feature.Enabled))
	return nil
}

func (s *PlanService) features(ctx context.Context, plan billing.PlanCode) (map[billing.FeatureKey]billing.PlanFeature, error) {
	stored, err := s.storedFeatures(ctx, plan)
	if err != nil {
		return nil, err
	}
	return billing.MergeFeatures(billing.DefaultPlanFeatures(plan), stored), nil
}

func (s *PlanService) storedFeatures(ctx context.Context, plan billing.PlanCode) ([]billing.PlanFeature, error) {
	useCache := s.cache != nil && s.ttl > 0
	if useCache {
		cached, ok, err := s.cache.Get(ctx, plan)
		if err != nil {
			s.logger.Warn("Plan cache read failed, loading from database",
				zap.String("plan", string(plan)), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	stored, err := s.repo.FindByPlan(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("load plan %s features: %w", plan, err)
	}
	if useCache {
		if err := s.cache.Set(ctx, plan, stored, s.ttl); err != nil {
			s.logger.Warn("Plan cache write failed",
				zap.String("plan", string(plan)), zap.Error(err))
		}
	}
	return stored, nil
}

func planOf(seller *party.Seller) billing.PlanCode {
	plan := billing.PlanCode(seller.PlanCode)
	if !plan.IsValid() {
		return billing.DefaultPlan
	}
	return plan
}

var _ appinvoicing.PlanPolicy = (*PlanService)(nil)
