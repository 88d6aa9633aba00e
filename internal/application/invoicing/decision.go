package invoicing

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/tax"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// decisionContext is everything the tax engine needs for one invoice.
type decisionContext struct {
	seller   *party.Seller
	buyer    *party.Buyer
	identity *vatid.VatIdentity
	perms    tax.Permissions
}

func (d decisionContext) identityStatus() vatid.Status {
	if d.identity == nil {
		return ""
	}
	return d.identity.Status
}

func (d decisionContext) input() tax.Input {
	return tax.Input{
		Seller: tax.SellerTerms{
			Country:         d.seller.Country,
			BaselineRate:    d.seller.BaselineRate,
			OverrideRate:    d.seller.OverrideRate,
			OverrideEnabled: d.seller.OverrideEnabled,
		},
		Buyer: tax.BuyerTerms{
			Country:        d.buyer.Country,
			VatIdentifier:  d.buyer.VatIdentifier,
			IdentityStatus: d.identityStatus(),
		},
		Permissions: d.perms,
	}
}

// loadSellerTerms loads the seller and its permission set.
func loadSellerTerms(ctx context.Context, repos TransactionalRepositories, plans PlanPolicy, sellerID uuid.UUID) (*party.Seller, tax.Permissions, error) {
	seller, err := repos.Sellers().FindByID(ctx, sellerID)
	if err != nil {
		return nil, nil, err
	}
	perms, err := plans.Permissions(ctx, seller)
	if err != nil {
		return nil, nil, err
	}
	return seller, perms, nil
}

// loadBuyerTerms loads the buyer and the cache row it links to.
// includeDeleted is used when recomputing drafts of a tombstoned buyer.
func loadBuyerTerms(ctx context.Context, repos TransactionalRepositories, sellerID, buyerID uuid.UUID, includeDeleted bool) (*party.Buyer, *vatid.VatIdentity, error) {
	var (
		buyer *party.Buyer
		err   error
	)
	if includeDeleted {
		buyer, err = repos.Buyers().FindByIDIncludingDeleted(ctx, sellerID, buyerID)
	} else {
		buyer, err = repos.Buyers().FindByID(ctx, sellerID, buyerID)
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil, invoicing.ErrBuyerNotFound.WithMessage("Buyer %s not found", buyerID)
		}
		return nil, nil, err
	}

	if buyer.VatIdentityID == nil || !buyer.HasVatIdentifier() {
		return buyer, nil, nil
	}
	identity, err := repos.VatIdentities().FindByID(ctx, *buyer.VatIdentityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return buyer, nil, nil
		}
		return nil, nil, err
	}
	return buyer, identity, nil
}

func loadDecisionContext(ctx context.Context, repos TransactionalRepositories, plans PlanPolicy, sellerID, buyerID uuid.UUID, includeDeleted bool) (decisionContext, error) {
	seller, perms, err := loadSellerTerms(ctx, repos, plans, sellerID)
	if err != nil {
		return decisionContext{}, err
	}
	buyer, identity, err := loadBuyerTerms(ctx, repos, sellerID, buyerID, includeDeleted)
	if err != nil {
		return decisionContext{}, err
	}
	return decisionContext{seller: seller, buyer: buyer, identity: identity, perms: perms}, nil
}
