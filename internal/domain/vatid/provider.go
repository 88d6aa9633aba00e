package vatid

import (
	"context"
	"time"

	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// ValidationResult is the verdict returned by a ValidationProvider.
type ValidationResult struct {
	Status             Status
	CompanyName        *string
	CompanyAddress     *string
	ConsultationNumber string
	CheckedAt          time.Time
}

// ValidationProvider checks a VAT identifier with an external authority.
type ValidationProvider interface {
	// Name is recorded as the source tag on the cache row.
	Name() string
	Validate(ctx context.Context, country valueobject.CountryCode, identifier string) (ValidationResult, error)
}
