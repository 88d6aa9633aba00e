// Package party manages sellers, their buyers and bank accounts.
// Changes to VAT-relevant fields re-resolve the VAT identity link and
// recompute open drafts of the affected seller.
package party

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// VatResolver links a party to its cached VAT identity
type VatResolver interface {
	Resolve(ctx context.Context, target vatid.Linkable) (*vatid.VatIdentity, error)
}

// DraftRecomputer refreshes the tax decision of open drafts.
// A nil buyerID means every draft of the seller.
type DraftRecomputer interface {
	RecomputeDrafts(ctx context.Context, sellerID uuid.UUID, buyerID *uuid.UUID) (int, error)
}
