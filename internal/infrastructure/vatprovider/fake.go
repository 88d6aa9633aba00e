package vatprovider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// ErrFakeUnavailable is returned for identifiers containing "DOWN"
var ErrFakeUnavailable = errors.New("fake provider unavailable")

// FakeProvider answers from markers in the identifier:
// INVALID, then VALID, then PENDING, then DOWN (error); anything else is unknown.
type FakeProvider struct {
	now func() time.Time
}

// NewFakeProvider creates a fake provider
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{now: time.Now}
}

// Name returns the source tag stored on validated rows
func (p *FakeProvider) Name() string {
	return "fake"
}

// Validate maps the identifier to a status
func (p *FakeProvider) Validate(ctx context.Context, country valueobject.CountryCode, identifier string) (vatid.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return vatid.ValidationResult{}, err
	}
	id := strings.ToUpper(identifier)
	result := vatid.ValidationResult{CheckedAt: p.now().UTC()}

	switch {
	case strings.Contains(id, "INVALID"):
		result.Status = vatid.StatusInvalid
	case strings.Contains(id, "VALID"):
		result.Status = vatid.StatusValid
		name := "Test Company " + string(country)
		result.CompanyName = &name
	case strings.Contains(id, "PENDING"):
		result.Status = vatid.StatusPending
	case strings.Contains(id, "DOWN"):
		return vatid.ValidationResult{}, ErrFakeUnavailable
	default:
		result.Status = vatid.StatusUnknown
	}
	return result, nil
}

var _ vatid.ValidationProvider = (*FakeProvider)(nil)
