package tax

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// RatesProvider returns official standard VAT rates.
// The figures are informational only and never feed Decide; the seller's
// own baseline or override rate is authoritative.
type RatesProvider interface {
	StandardRate(ctx context.Context, country valueobject.CountryCode) (decimal.Decimal, bool, error)
}
