package party

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// BuyerService handles buyer-related business operations
type BuyerService struct {
	buyers    party.BuyerRepository
	resolver  VatResolver
	recompute DraftRecomputer
	logger    *zap.Logger
	now       func() time.Time
}

// NewBuyerService creates a new BuyerService
func NewBuyerService(buyers party.BuyerRepository, resolver VatResolver, recompute DraftRecomputer, logger *zap.Logger) *BuyerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuyerService{
		buyers:    buyers,
		resolver:  resolver,
		recompute: recompute,
		logger:    logger,
		now:       time.Now,
	}
}

func (r BuyerRequest) toInput() party.BuyerInput {
	return party.BuyerInput{
		Name:          r.Name,
		Country:       r.Country,
		VatIdentifier: r.VatIdentifier,
		Email:         r.Email,
		Legal:         r.Legal.toDomain(),
	}
}

// Create creates a buyer and links its VAT identity, if any
func (s *BuyerService) Create(ctx context.Context, sellerID uuid.UUID, req BuyerRequest) (*BuyerResponse, error) {
	buyer, err := party.NewBuyer(sellerID, req.toInput())
	if err != nil {
		return nil, err
	}
	if buyer.HasVatIdentifier() {
		if _, err := s.resolver.Resolve(ctx, buyer); err != nil {
			return nil, err
		}
	}
	if err := s.buyers.Save(ctx, buyer); err != nil {
		return nil, err
	}
	resp := ToBuyerResponse(buyer)
	return &resp, nil
}

// Get returns a live buyer
func (s *BuyerService) Get(ctx context.Context, sellerID, buyerID uuid.UUID) (*BuyerResponse, error) {
	buyer, err := s.buyers.FindByID(ctx, sellerID, buyerID)
	if err != nil {
		return nil, err
	}
	resp := ToBuyerResponse(buyer)
	return &resp, nil
}

// List returns a page of the seller's live buyers
func (s *BuyerService) List(ctx context.Context, sellerID uuid.UUID, filter ListBuyersFilter) ([]BuyerResponse, int64, error) {
	f := shared.DefaultFilter()
	f.Search = filter.Search
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}

	buyers, total, err := s.buyers.FindAll(ctx, sellerID, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]BuyerResponse, len(buyers))
	for i := range buyers {
		out[i] = ToBuyerResponse(&buyers[i])
	}
	return out, total, nil
}

// Update replaces the buyer's fields. When the VAT key changes the identity
// is re-resolved and the buyer's open drafts are recomputed.
func (s *BuyerService) Update(ctx context.Context, sellerID, buyerID uuid.UUID, req BuyerRequest) (*BuyerResponse, error) {
	buyer, err := s.buyers.FindByID(ctx, sellerID, buyerID)
	if err != nil {
		return nil, err
	}

	keyChanged, err := buyer.Update(req.toInput())
	if err != nil {
		return nil, err
	}
	if keyChanged {
		if _, err := s.resolver.Resolve(ctx, buyer); err != nil {
			return nil, err
		}
	}
	if err := s.buyers.Save(ctx, buyer); err != nil {
		return nil, err
	}

	if keyChanged {
		n, err := s.recompute.RecomputeDrafts(ctx, sellerID, &buyer.ID)
		if err != nil {
			s.logger.Warn("Failed to recompute drafts after buyer change",
				zap.String("buyer_id", buyer.ID.String()),
				zap.Error(err),
			)
		} else {
			s.logger.Debug("Recomputed drafts after buyer change",
				zap.String("buyer_id", buyer.ID.String()),
				zap.Int("count", n),
			)
		}
	}

	resp := ToBuyerResponse(buyer)
	return &resp, nil
}

// Delete tombstones the buyer. Invoices that reference it are unaffected.
func (s *BuyerService) Delete(ctx context.Context, sellerID, buyerID uuid.UUID) error {
	buyer, err := s.buyers.FindByID(ctx, sellerID, buyerID)
	if err != nil {
		return err
	}
	buyer.SoftDelete(s.now())
	return s.buyers.Save(ctx, buyer)
}
