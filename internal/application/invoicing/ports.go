package invoicing

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/tax"
)

// MonthlyLimit is the issued-invoice allowance of a seller's plan.
// Limit is nil when the plan is unlimited.
type MonthlyLimit struct {
	Plan  string
	Limit *int
}

// PlanPolicy answers plan questions about a seller.
type PlanPolicy interface {
	Permissions(ctx context.Context, seller *party.Seller) (tax.Permissions, error)
	MonthlyInvoiceLimit(ctx context.Context, seller *party.Seller) (MonthlyLimit, error)
}

// LegalIdentityChecker lists what prevents a seller from issuing invoices.
type LegalIdentityChecker interface {
	MissingFields(seller *party.Seller) []string
}

// SellerLegalIdentityChecker requires a legal name, a country, a registration
// number or tax identifier and a complete address.
type SellerLegalIdentityChecker struct{}

// MissingFields implements LegalIdentityChecker.
func (SellerLegalIdentityChecker) MissingFields(seller *party.Seller) []string {
	return seller.MissingLegalFields()
}

// IssuanceRecorder receives issuance outcomes for metrics.
type IssuanceRecorder interface {
	RecordInvoiceIssued(ctx context.Context, sellerID uuid.UUID, currency string, total int64)
	RecordIssuanceBlocked(ctx context.Context, category shared.ErrorCategory)
	RecordAllocationConflict(ctx context.Context)
}

type noopRecorder struct{}

func (noopRecorder) RecordInvoiceIssued(context.Context, uuid.UUID, string, int64) {}
func (noopRecorder) RecordIssuanceBlocked(context.Context, shared.ErrorCategory)    {}
func (noopRecorder) RecordAllocationConflict(context.Context)                       {}

var (
	_ LegalIdentityChecker = SellerLegalIdentityChecker{}
	_ IssuanceRecorder     = noopRecorder{}
)
