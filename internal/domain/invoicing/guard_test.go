package invoicing

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/tax"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

func issuedState() InvoiceState {
	number := "INV-2026-000001"
	issue := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	decided := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return InvoiceState{
		Status:         StatusIssued,
		Number:         &number,
		IssueDate:      &issue,
		Currency:       "EUR",
		Subtotal:       3998,
		VAT:            760,
		Total:          4758,
		SellerDetails:  &SellerDetails{LegalName: "Exemplu SRL"},
		BuyerDetails:   &BuyerDetails{Name: "Client"},
		PaymentDetails: &PaymentDetails{Currency: "EUR", Accounts: []PaymentAccount{{Nickname: "Main", AccountIdentifier: "X"}}},
		BuyerID:        uuid.New(),
		Tax: tax.Assignment{
			Treatment: tax.TreatmentDomestic,
			Rate:      decimal.NewFromInt(19),
		},
		BuyerVatIdentifier: "DE123456789",
		BuyerVatStatus:     vatid.StatusValid,
		DecidedAt:          &decided,
	}
}

func TestGuardInvoiceWrite_Create(t *testing.T) {
	assert.NoError(t, GuardInvoiceWrite(nil, InvoiceState{Status: StatusDraft}))
	assert.Error(t, GuardInvoiceWrite(nil, InvoiceState{Status: StatusIssued}))
}

func TestGuardInvoiceWrite_DraftIsFree(t *testing.T) {
	prev := InvoiceState{Status: StatusDraft, Currency: "EUR", BuyerID: uuid.New()}
	next := issuedState()
	assert.NoError(t, GuardInvoiceWrite(&prev, next), "issuing a draft may set every frozen field")

	next.Status = StatusDraft
	assert.NoError(t, GuardInvoiceWrite(&prev, next))

	next.Status = StatusPaid
	assert.Error(t, GuardInvoiceWrite(&prev, next), "draft cannot jump to paid")
}

func TestGuardInvoiceWrite_FrozenFields(t *testing.T) {
	other := "INV-2026-000002"
	otherDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	mutations := map[string]func(s *InvoiceState){
		"number":          func(s *InvoiceState) { s.Number = &other },
		"number cleared":  func(s *InvoiceState) { s.Number = nil },
		"issue_date":      func(s *InvoiceState) { s.IssueDate = &otherDate },
		"currency":        func(s *InvoiceState) { s.Currency = "USD" },
		"subtotal":        func(s *InvoiceState) { s.Subtotal++ },
		"vat_amount":      func(s *InvoiceState) { s.VAT++ },
		"total":           func(s *InvoiceState) { s.Total++ },
		"seller_details":  func(s *InvoiceState) { s.SellerDetails = &SellerDetails{LegalName: "Other"} },
		"buyer_details":   func(s *InvoiceState) { s.BuyerDetails = nil },
		"payment_details": func(s *InvoiceState) { s.PaymentDetails = &PaymentDetails{Currency: "EUR"} },
		"buyer_id":        func(s *InvoiceState) { s.BuyerID = uuid.New() },
		"tax_treatment":   func(s *InvoiceState) { s.Tax.Treatment = tax.TreatmentEUB2BRC },
		"vat_rate":        func(s *InvoiceState) { s.Tax.Rate = decimal.Zero },
		"tax_reason":      func(s *InvoiceState) { s.Tax.ReasonCode = tax.ReasonReverseCharge },
		"tax_override":    func(s *InvoiceState) { s.Tax.RateManual = true },
		"buyer_vat_id":    func(s *InvoiceState) { s.BuyerVatIdentifier = "FORGED" },
		"buyer_vat":       func(s *InvoiceState) { s.BuyerVatStatus = vatid.StatusInvalid },
		"decided_at":      func(s *InvoiceState) { s.DecidedAt = nil },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			prev := issuedState()
			next := prev
			mutate(&next)

			err := GuardInvoiceWrite(&prev, next)
			require.Error(t, err)
			var de *shared.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, shared.CategoryImmutability, de.Category)
		})
	}
}

func TestGuardInvoiceWrite_AllowedAfterIssue(t *testing.T) {
	prev := issuedState()

	t.Run("due date", func(t *testing.T) {
		next := prev
		due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		next.DueDate = &due
		assert.NoError(t, GuardInvoiceWrite(&prev, next))
	})

	t.Run("status along the state machine", func(t *testing.T) {
		next := prev
		next.Status = StatusPaid
		assert.NoError(t, GuardInvoiceWrite(&prev, next))
		next.Status = StatusVoided
		assert.NoError(t, GuardInvoiceWrite(&prev, next))
	})

	t.Run("status against the state machine", func(t *testing.T) {
		next := prev
		next.Status = StatusDraft
		assert.Error(t, GuardInvoiceWrite(&prev, next))
	})

	t.Run("same rate at another scale", func(t *testing.T) {
		next := prev
		next.Tax.Rate = decimal.RequireFromString("19.00")
		decided := prev.DecidedAt.Add(300 * time.Nanosecond)
		next.DecidedAt = &decided
		assert.NoError(t, GuardInvoiceWrite(&prev, next))
	})

	t.Run("equal copies of snapshots", func(t *testing.T) {
		next := prev
		pd := *prev.PaymentDetails
		pd.Accounts = append([]PaymentAccount(nil), prev.PaymentDetails.Accounts...)
		next.PaymentDetails = &pd
		sd := *prev.SellerDetails
		next.SellerDetails = &sd
		assert.NoError(t, GuardInvoiceWrite(&prev, next))
	})

	t.Run("paid and voided stay frozen", func(t *testing.T) {
		paid := prev
		paid.Status = StatusPaid
		next := paid
		next.Total = 1
		assert.Error(t, GuardInvoiceWrite(&paid, next))
	})
}

func TestGuardItemWrite(t *testing.T) {
	for _, op := range []ItemOperation{ItemOpAdd, ItemOpModify, ItemOpDelete} {
		assert.NoError(t, GuardItemWrite(StatusDraft, op))
		for _, status := range []Status{StatusIssued, StatusPaid, StatusVoided} {
			err := GuardItemWrite(status, op)
			require.Error(t, err)
			assert.Equal(t, "cannot "+string(op)+" items on an issued invoice", err.Error())
		}
	}
}
