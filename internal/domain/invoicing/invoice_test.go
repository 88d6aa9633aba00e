package invoicing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/tax"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

func newTestDraft(t *testing.T) *Invoice {
	t.Helper()
	inv, err := NewDraft(uuid.New(), DraftInput{
		BuyerID:  uuid.New(),
		Currency: "eur",
		Items: []ItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("19.99")},
		},
	}, "alice")
	require.NoError(t, err)
	return inv
}

func issueParams(number string) IssueParams {
	return IssueParams{
		Number:    number,
		IssueDate: time.Date(2026, 3, 14, 15, 4, 5, 0, time.UTC),
		Tax:       tax.Assignment{Treatment: tax.TreatmentDomestic, Rate: decimal.NewFromInt(19)},
		DecidedAt: time.Date(2026, 3, 14, 15, 4, 5, 0, time.UTC),
		Seller:    SellerDetails{LegalName: "Exemplu SRL", Country: "RO"},
		Buyer:     BuyerDetails{Name: "Client", Country: "RO"},
		Payment:   PaymentDetails{Currency: "EUR", Accounts: []PaymentAccount{{Nickname: "Main", AccountIdentifier: "RO49AAAA"}}},
	}
}

func TestNewDraft(t *testing.T) {
	t.Run("creates draft with totals", func(t *testing.T) {
		inv := newTestDraft(t)
		assert.Equal(t, StatusDraft, inv.Status)
		assert.Equal(t, valueobject.EUR, inv.Currency)
		require.Len(t, inv.Items, 1)
		assert.Equal(t, valueobject.MinorUnits(1999), inv.Items[0].UnitPrice)
		assert.Equal(t, valueobject.MinorUnits(3998), inv.Subtotal)
		assert.Nil(t, inv.Number)
		assert.Nil(t, inv.SellerDetails)
		assert.Len(t, inv.ShareToken, 64)
		assert.NotEqual(t, uuid.Nil, inv.PublicID)
		assert.True(t, inv.ItemsReplaced())

		events := inv.PendingEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeInvoiceCreated, events[0].EventType())
	})

	t.Run("rejects negative unit price", func(t *testing.T) {
		_, err := NewDraft(uuid.New(), DraftInput{
			BuyerID:  uuid.New(),
			Currency: "EUR",
			Items:    []ItemInput{{Description: "x", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(-1)}},
		}, "alice")
		require.Error(t, err)
		de := err.(*shared.DomainError)
		assert.Equal(t, "items[0].unit_price", de.Field)
	})

	t.Run("rejects due date before issue date", func(t *testing.T) {
		issue := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		due := issue.AddDate(0, 0, -1)
		_, err := NewDraft(uuid.New(), DraftInput{BuyerID: uuid.New(), Currency: "EUR", IssueDate: &issue, DueDate: &due}, "alice")
		assert.Error(t, err)
	})

	t.Run("requires buyer", func(t *testing.T) {
		_, err := NewDraft(uuid.New(), DraftInput{Currency: "EUR"}, "alice")
		assert.Error(t, err)
	})
}

func TestInvoice_ApplyTax(t *testing.T) {
	inv := newTestDraft(t)
	require.NoError(t, inv.ApplyTax(tax.Assignment{Treatment: tax.TreatmentDomestic, Rate: decimal.NewFromInt(19)}))

	assert.Equal(t, valueobject.MinorUnits(3998), inv.Subtotal)
	assert.Equal(t, valueobject.MinorUnits(760), inv.VAT)
	assert.Equal(t, valueobject.MinorUnits(4758), inv.Total)
}

func TestInvoice_Issue(t *testing.T) {
	inv := newTestDraft(t)
	inv.ClearPendingEvents()

	require.NoError(t, inv.Issue(issueParams("INV-2026-000001"), "alice"))

	assert.Equal(t, StatusIssued, inv.Status)
	assert.Equal(t, "INV-2026-000001", inv.NumberValue())
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), *inv.IssueDate)
	assert.Equal(t, valueobject.MinorUnits(4758), inv.Total)
	require.NotNil(t, inv.PaymentDetails)
	assert.Len(t, inv.PaymentDetails.Accounts, 1)

	events := inv.PendingEvents()
	require.Len(t, events, 1)
	ev := events[0].(*LifecycleEvent)
	assert.Equal(t, EventTypeInvoiceIssued, ev.EventType())
	assert.Equal(t, StatusDraft, ev.FromStatus)
	assert.Equal(t, StatusIssued, ev.ToStatus)
	assert.Equal(t, "alice", ev.AuditEntry().Actor)

	t.Run("second issue is an invalid transition", func(t *testing.T) {
		err := inv.Issue(issueParams("INV-2026-000002"), "alice")
		assert.Error(t, err)
		assert.Equal(t, "INV-2026-000001", inv.NumberValue())
	})

	t.Run("items are frozen", func(t *testing.T) {
		err := inv.ReplaceItems(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot modify items on an issued invoice")
	})

	t.Run("tax is frozen", func(t *testing.T) {
		assert.Error(t, inv.ApplyTax(tax.Assignment{}))
	})
}

func TestInvoice_IssueRequiresItems(t *testing.T) {
	inv, err := NewDraft(uuid.New(), DraftInput{BuyerID: uuid.New(), Currency: "EUR"}, "alice")
	require.NoError(t, err)
	assert.ErrorIs(t, inv.Issue(issueParams("INV-2026-000001"), "alice"), ErrNoItems)
}

func TestInvoice_Lifecycle(t *testing.T) {
	now := time.Now()

	t.Run("draft cannot be paid or voided", func(t *testing.T) {
		inv := newTestDraft(t)
		assert.Error(t, inv.MarkPaid("alice", now))
		assert.Error(t, inv.Void("alice", "", now))
	})

	t.Run("issued to paid", func(t *testing.T) {
		inv := newTestDraft(t)
		require.NoError(t, inv.Issue(issueParams("INV-2026-000001"), "alice"))
		require.NoError(t, inv.MarkPaid("bob", now))
		assert.Equal(t, StatusPaid, inv.Status)
		assert.Error(t, inv.Void("bob", "", now), "paid cannot be voided")
	})

	t.Run("issued to voided and never back", func(t *testing.T) {
		inv := newTestDraft(t)
		require.NoError(t, inv.Issue(issueParams("INV-2026-000001"), "alice"))
		require.NoError(t, inv.Void("bob", "duplicate", now))
		assert.Equal(t, StatusVoided, inv.Status)
		assert.False(t, StatusVoided.CanTransitionTo(StatusDraft))
		assert.Error(t, inv.MarkPaid("bob", now))
	})

	t.Run("due date stays editable after issue", func(t *testing.T) {
		inv := newTestDraft(t)
		require.NoError(t, inv.Issue(issueParams("INV-2026-000001"), "alice"))
		inv.ClearPendingEvents()
		due := time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC)
		require.NoError(t, inv.SetDueDate(&due, "bob"))
		assert.Equal(t, due, *inv.DueDate)
		require.Len(t, inv.PendingEvents(), 1)

		early := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		assert.Error(t, inv.SetDueDate(&early, "bob"))
	})
}

func TestInvoice_BuyerSnapshotFields(t *testing.T) {
	inv := newTestDraft(t)
	p := issueParams("INV-2026-000001")
	p.BuyerVatIdentifier = "DE123"
	p.BuyerVatStatus = vatid.StatusValid
	require.NoError(t, inv.Issue(p, "alice"))

	assert.Equal(t, "DE123", inv.BuyerVatIdentifier)
	assert.Equal(t, vatid.StatusValid, inv.BuyerVatStatus)
	require.NotNil(t, inv.DecidedAt)
}

func TestFormatNumber(t *testing.T) {
	key := NewSequenceKey(uuid.New(), "acme-", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "ACME", key.Prefix)
	assert.Equal(t, 2026, key.Year)
	assert.Equal(t, "ACME-2026-000042", FormatNumber(key, 42))
	assert.Equal(t, "ACME-2026-1234567", FormatNumber(key, 1234567))
}
