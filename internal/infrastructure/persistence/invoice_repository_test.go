package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/tax"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
	"github.com/ledgerly/invoicing/internal/infrastructure/persistence/persistencetest"
)

func newDraft(t *testing.T, sellerID uuid.UUID) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewDraft(sellerID, invoicing.DraftInput{
		BuyerID:  uuid.New(),
		Currency: "EUR",
		Items: []invoicing.ItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("19.99")},
			{Description: "Travel", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("5.00")},
		},
	}, "tester")
	require.NoError(t, err)
	return inv
}

func issueParams(number string) invoicing.IssueParams {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return invoicing.IssueParams{
		Number:    number,
		IssueDate: now,
		Tax: tax.Assignment{
			Treatment: tax.TreatmentDomestic,
			Rate:      decimal.NewFromInt(19),
		},
		DecidedAt: now,
		Seller:    invoicing.SellerDetails{LegalName: "Muster GmbH", Country: "DE"},
		Buyer:     invoicing.BuyerDetails{Name: "Kunde", LegalName: "Kunde AG", Country: "DE"},
		Payment: invoicing.PaymentDetails{
			Currency: "EUR",
			Accounts: []invoicing.PaymentAccount{{Nickname: "Main", AccountIdentifier: "DE89370400440532013000"}},
		},
	}
}

func saveIssued(t *testing.T, db *gorm.DB, sellerID uuid.UUID, number string) *invoicing.Invoice {
	t.Helper()
	ctx := context.Background()
	repo := NewGormInvoiceRepository(db)

	inv := newDraft(t, sellerID)
	require.NoError(t, repo.Save(ctx, inv))
	require.NoError(t, inv.Issue(issueParams(number), "tester"))
	require.NoError(t, repo.Save(ctx, inv))
	return inv
}

func TestGormInvoiceRepository_DraftRoundTrip(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	sellerID := uuid.New()

	inv := newDraft(t, sellerID)
	require.NoError(t, repo.Save(ctx, inv))
	assert.Equal(t, 1, inv.Version)
	assert.False(t, inv.ItemsReplaced())
	assert.Empty(t, inv.PendingEvents())

	got, err := repo.FindByID(ctx, sellerID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusDraft, got.Status)
	assert.Equal(t, "EUR", string(got.Currency))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Consulting", got.Items[0].Description)
	assert.Equal(t, int64(3998), int64(got.Items[0].LineTotal))
	assert.Equal(t, "Travel", got.Items[1].Description)
	assert.Nil(t, got.Number)

	events, err := NewGormInvoiceEventRepository(db).FindByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, invoicing.EventTypeInvoiceCreated, events[0].EventType)
	assert.Equal(t, "tester", events[0].Actor)
	assert.Equal(t, sellerID, events[0].SellerID)
}

func TestGormInvoiceRepository_SellerScoping(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newDraft(t, uuid.New())
	require.NoError(t, repo.Save(ctx, inv))

	_, err := repo.FindByID(ctx, uuid.New(), inv.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	drafts, err := repo.FindDrafts(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestGormInvoiceRepository_ReplaceItemsOnDraft(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	sellerID := uuid.New()

	inv := newDraft(t, sellerID)
	require.NoError(t, repo.Save(ctx, inv))

	require.NoError(t, inv.ReplaceItems([]invoicing.ItemInput{
		{Description: "Audit", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("10")},
	}))
	require.NoError(t, repo.Save(ctx, inv))
	assert.Equal(t, 2, inv.Version)

	items, err := NewGormInvoiceItemRepository(db).FindByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Audit", items[0].Description)
	assert.Equal(t, int64(3000), int64(items[0].LineTotal))
}

func TestGormInvoiceRepository_IssuedInvoiceIsFrozen(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormInvoiceRepository(db)
	items := NewGormInvoiceItemRepository(db)
	ctx := context.Background()
	sellerID := uuid.New()

	inv := saveIssued(t, db, sellerID, "INV-2026-000001")

	t.Run("number cannot change", func(t *testing.T) {
		got, err := repo.FindByID(ctx, sellerID, inv.ID)
		require.NoError(t, err)
		other := "INV-2026-000099"
		got.Number = &other
		err = repo.Save(ctx, got)
		assert.ErrorIs(t, err, shared.ErrImmutable)
		cat, ok := shared.CategoryOf(err)
		require.True(t, ok)
		assert.Equal(t, shared.CategoryImmutability, cat)
	})

	t.Run("totals cannot change", func(t *testing.T) {
		got, err := repo.FindByID(ctx, sellerID, inv.ID)
		require.NoError(t, err)
		got.Total++
		assert.ErrorIs(t, repo.Save(ctx, got), shared.ErrImmutable)
	})

	t.Run("tax decision cannot change", func(t *testing.T) {
		got, err := repo.FindByID(ctx, sellerID, inv.ID)
		require.NoError(t, err)
		got.Tax.Treatment = tax.TreatmentEUB2BRC
		got.Tax.Rate = decimal.Zero
		got.BuyerVatIdentifier = "DE999999999"
		got.BuyerVatStatus = vatid.StatusValid
		err = repo.Save(ctx, got)
		assert.ErrorIs(t, err, shared.ErrImmutable)

		after, err := repo.FindByID(ctx, sellerID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, tax.TreatmentDomestic, after.Tax.Treatment)
		assert.True(t, after.Tax.Rate.Equal(decimal.NewFromInt(19)))
		assert.Empty(t, after.BuyerVatIdentifier)
	})

	t.Run("items cannot be replaced", func(t *testing.T) {
		got, err := repo.FindByID(ctx, sellerID, inv.ID)
		require.NoError(t, err)
		err = got.ReplaceItems([]invoicing.ItemInput{
			{Description: "Sneaky", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)},
		})
		if err == nil {
			err = repo.Save(ctx, got)
		}
		require.Error(t, err)
		cat, _ := shared.CategoryOf(err)
		assert.Contains(t, []shared.ErrorCategory{shared.CategoryImmutability, shared.CategoryState}, cat)
	})

	t.Run("item repository refuses writes", func(t *testing.T) {
		existing, err := items.FindByInvoice(ctx, inv.ID)
		require.NoError(t, err)
		require.NotEmpty(t, existing)

		line := existing[0]
		line.Description = "changed"
		err = items.Update(ctx, &line)
		cat, _ := shared.CategoryOf(err)
		assert.Equal(t, shared.CategoryImmutability, cat)

		err = items.Delete(ctx, inv.ID, line.ID)
		cat, _ = shared.CategoryOf(err)
		assert.Equal(t, shared.CategoryImmutability, cat)

		err = items.Create(ctx, &invoicing.InvoiceItem{ID: uuid.New(), InvoiceID: inv.ID, Position: 9, Description: "extra", Quantity: decimal.NewFromInt(1)})
		cat, _ = shared.CategoryOf(err)
		assert.Equal(t, shared.CategoryImmutability, cat)

		after, err := items.FindByInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, existing, after)
	})

	t.Run("paid transition and due date stay allowed", func(t *testing.T) {
		got, err := repo.FindByID(ctx, sellerID, inv.ID)
		require.NoError(t, err)
		due := time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC)
		require.NoError(t, got.SetDueDate(&due, "tester"))
		require.NoError(t, got.MarkPaid("tester", time.Now()))
		require.NoError(t, repo.Save(ctx, got))

		reloaded, err := repo.FindByID(ctx, sellerID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, invoicing.StatusPaid, reloaded.Status)
		assert.Equal(t, "INV-2026-000001", reloaded.NumberValue())
		require.NotNil(t, reloaded.PaymentDetails)
		assert.Equal(t, "EUR", reloaded.PaymentDetails.Currency)
	})

	t.Run("audit trail is complete", func(t *testing.T) {
		events, err := NewGormInvoiceEventRepository(db).FindByInvoice(ctx, inv.ID)
		require.NoError(t, err)
		types := make([]string, len(events))
		for i, e := range events {
			types[i] = e.EventType
		}
		assert.Contains(t, types, invoicing.EventTypeInvoiceCreated)
		assert.Contains(t, types, invoicing.EventTypeInvoiceIssued)
		assert.Contains(t, types, invoicing.EventTypeInvoicePaid)
	})
}

func TestGormInvoiceRepository_NumberUniquePerSeller(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	sellerID := uuid.New()

	saveIssued(t, db, sellerID, "INV-2026-000001")

	dup := newDraft(t, sellerID)
	require.NoError(t, repo.Save(ctx, dup))
	require.NoError(t, dup.Issue(issueParams("INV-2026-000001"), "tester"))
	assert.Error(t, repo.Save(ctx, dup))

	// Another seller may reuse the number
	saveIssued(t, db, uuid.New(), "INV-2026-000001")
}

func TestGormInvoiceRepository_FindByPublicID(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := saveIssued(t, db, uuid.New(), "INV-2026-000001")

	got, err := repo.FindByPublicID(ctx, inv.PublicID, inv.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
	assert.Len(t, got.Items, 2)

	_, err = repo.FindByPublicID(ctx, inv.PublicID, "wrong")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.FindByPublicID(ctx, uuid.New(), inv.ShareToken)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormInvoiceRepository_FindAllFilters(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	sellerID := uuid.New()

	saveIssued(t, db, sellerID, "INV-2026-000001")
	saveIssued(t, db, sellerID, "INV-2026-000002")
	draft := newDraft(t, sellerID)
	require.NoError(t, repo.Save(ctx, draft))

	all, total, err := repo.FindAll(ctx, sellerID, invoicing.InvoiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	issued, total, err := repo.FindAll(ctx, sellerID, invoicing.InvoiceFilter{Status: invoicing.StatusIssued})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, inv := range issued {
		assert.Equal(t, invoicing.StatusIssued, inv.Status)
	}

	found, total, err := repo.FindAll(ctx, sellerID, invoicing.InvoiceFilter{Filter: shared.Filter{Search: "000002"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, found, 1)
	assert.Equal(t, "INV-2026-000002", found[0].NumberValue())

	drafts, err := repo.FindDrafts(ctx, sellerID, &draft.BuyerID)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID, drafts[0].ID)
}

func TestGormInvoiceEventRepository_Append(t *testing.T) {
	db := persistencetest.NewSQLite(t)
	repo := NewGormInvoiceEventRepository(db)
	ctx := context.Background()
	invoiceID := uuid.New()

	require.NoError(t, repo.Append(ctx))
	require.NoError(t, repo.Append(ctx, invoicing.InvoiceEvent{
		InvoiceID: invoiceID,
		SellerID:  uuid.New(),
		Actor:     "system",
		EventType: invoicing.EventTypeInvoiceTaxOverridden,
		Message:   "rate set to 7",
	}))

	events, err := repo.FindByInvoice(ctx, invoiceID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.False(t, events[0].CreatedAt.IsZero())
	assert.Equal(t, "rate set to 7", events[0].Message)
}
