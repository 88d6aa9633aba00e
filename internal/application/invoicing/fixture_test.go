package invoicing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appinvoicing "github.com/ledgerly/invoicing/internal/application/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/party"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/tax"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
	"github.com/ledgerly/invoicing/internal/infrastructure/persistence"
	"github.com/ledgerly/invoicing/internal/infrastructure/persistence/persistencetest"
)

var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// stubPlans grants a fixed permission set and monthly limit to every seller.
type stubPlans struct {
	perms tax.Permissions
	limit *int
}

func (p *stubPlans) Permissions(context.Context, *party.Seller) (tax.Permissions, error) {
	return p.perms, nil
}

func (p *stubPlans) MonthlyInvoiceLimit(context.Context, *party.Seller) (appinvoicing.MonthlyLimit, error) {
	return appinvoicing.MonthlyLimit{Plan: "test", Limit: p.limit}, nil
}

type fixture struct {
	t          *testing.T
	ctx        context.Context
	plans      *stubPlans
	scope      *persistence.GormTransactionScope
	sellers    *persistence.GormSellerRepository
	buyers     *persistence.GormBuyerRepository
	accounts   *persistence.GormBankAccountRepository
	identities *persistence.GormVatIdentityRepository
	sequences  *persistence.GormSequenceRepository
	invoices   *appinvoicing.InvoiceService
	issuance   *appinvoicing.IssuanceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := persistencetest.NewSQLite(t)
	plans := &stubPlans{perms: tax.NewPermissions()}
	scope := persistence.NewGormTransactionScope(db)
	engine := tax.NewEngine(valueobject.NewEUMembership([]string{"AT", "DE", "FR", "NL"}))
	log := zap.NewNop()

	return &fixture{
		t:          t,
		ctx:        context.Background(),
		plans:      plans,
		scope:      scope,
		sellers:    persistence.NewGormSellerRepository(db),
		buyers:     persistence.NewGormBuyerRepository(db),
		accounts:   persistence.NewGormBankAccountRepository(db),
		identities: persistence.NewGormVatIdentityRepository(db),
		sequences:  persistence.NewGormSequenceRepository(db),
		invoices:   appinvoicing.NewInvoiceService(scope, engine, plans, log),
		issuance: appinvoicing.NewIssuanceService(scope, engine, appinvoicing.NewAllocator(3, nil, log), plans, log,
			appinvoicing.IssuanceServiceConfig{Now: func() time.Time { return fixedNow }}),
	}
}

func (f *fixture) seller(withAccount bool) *party.Seller {
	f.t.Helper()
	s, err := party.NewSeller("DE", decimal.NewFromInt(19), party.LegalIdentity{
		LegalName:          "Muster GmbH",
		RegistrationNumber: "HRB 12345",
		Address:            valueobject.NewAddress("Hauptstr. 1", "Berlin", "10115", "", "DE"),
	})
	require.NoError(f.t, err)
	require.NoError(f.t, f.sellers.Save(f.ctx, s))
	if withAccount {
		f.account(s.ID, "EUR")
	}
	return s
}

func (f *fixture) account(sellerID uuid.UUID, currency string) {
	f.t.Helper()
	acc, err := party.NewBankAccount(sellerID, "Main", "DE89 3704 0044 0532 0130 00", currency)
	require.NoError(f.t, err)
	require.NoError(f.t, f.accounts.Save(f.ctx, acc))
}

// buyer stores a buyer; a non-empty vatID is linked to a cache row in status.
func (f *fixture) buyer(sellerID uuid.UUID, country, vatID string, status vatid.Status) *party.Buyer {
	f.t.Helper()
	b, err := party.NewBuyer(sellerID, party.BuyerInput{
		Name:          "Kunde",
		Country:       country,
		VatIdentifier: vatID,
		Legal:         party.LegalIdentity{LegalName: "Kunde AG"},
	})
	require.NoError(f.t, err)
	if vatID != "" {
		identity := f.identity(country, vatID, status)
		b.LinkVatIdentity(&identity.ID)
	}
	require.NoError(f.t, f.buyers.Save(f.ctx, b))
	return b
}

func (f *fixture) identity(country, vatID string, status vatid.Status) *vatid.VatIdentity {
	f.t.Helper()
	key, ok := vatid.Normalize(country, vatID)
	require.True(f.t, ok)
	identity, err := f.identities.FindOrCreate(f.ctx, key)
	require.NoError(f.t, err)
	if status != vatid.StatusPending {
		f.setStatus(identity, status)
	}
	return identity
}

func (f *fixture) setStatus(identity *vatid.VatIdentity, status vatid.Status) {
	f.t.Helper()
	identity.ApplyResult(vatid.ValidationResult{Status: status, CheckedAt: fixedNow}, "test")
	require.NoError(f.t, f.identities.SaveValidation(f.ctx, identity))
}

func (f *fixture) draft(sellerID, buyerID uuid.UUID) *appinvoicing.InvoiceResponse {
	f.t.Helper()
	resp, err := f.invoices.Create(f.ctx, sellerID, appinvoicing.CreateDraftRequest{
		BuyerID:  buyerID,
		Currency: "EUR",
		Items: []appinvoicing.ItemRequest{{
			Description: "Consulting",
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   decimal.RequireFromString("19.99"),
		}},
	}, "tester")
	require.NoError(f.t, err)
	return resp
}
