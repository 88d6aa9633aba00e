package printing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	invoicingapp "github.com/ledgerly/invoicing/internal/application/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

func issuedInvoice() *invoicingapp.InvoiceResponse {
	number := "INV-2026-000001"
	issueDate := "2026-03-14"
	return &invoicingapp.InvoiceResponse{
		ID:           uuid.New(),
		Status:       "issued",
		Currency:     "EUR",
		TaxTreatment: "EU_B2B_RC",
		TaxReason:    "Reverse charge: VAT to be accounted for by the recipient",
		VatRate:      decimal.Zero,
		Subtotal:     3998,
		Total:        3998,
		Number:       &number,
		IssueDate:    &issueDate,
		SellerDetails: &invoicing.SellerDetails{
			LegalName:     "Muster GmbH",
			Country:       "DE",
			VatIdentifier: "DE123456789",
			Address:       valueobject.NewAddress("Hauptstr. 1", "Berlin", "10115", "", "DE"),
		},
		BuyerDetails: &invoicing.BuyerDetails{
			Name:          "Client",
			LegalName:     "Client <SARL>",
			Country:       "FR",
			VatIdentifier: "FR12345678901",
			Address:       valueobject.NewAddress("1 rue de Rivoli", "Paris", "75001", "", "FR"),
		},
		PaymentDetails: &invoicing.PaymentDetails{
			Currency: "EUR",
			Accounts: []invoicing.PaymentAccount{{Nickname: "Main", AccountIdentifier: "DE89370400440532013000"}},
		},
		Items: []invoicingapp.InvoiceItemResponse{{
			Position:    1,
			Description: "Consulting",
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   1999,
			LineTotal:   3998,
		}},
	}
}

func TestInvoiceTemplate_RenderIssued(t *testing.T) {
	tmpl, err := NewInvoiceTemplate()
	require.NoError(t, err)

	out, err := tmpl.RenderInvoice(issuedInvoice())
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<title>Invoice INV-2026-000001</title>")
	assert.Contains(t, html, "Status: Issued")
	assert.Contains(t, html, "Issue date: 2026-03-14")
	assert.Contains(t, html, "VAT ID: FR12345678901")
	assert.Contains(t, html, "Client &lt;SARL&gt;", "buyer names are escaped")
	assert.Contains(t, html, "<td class=\"num\">19.99</td>")
	assert.Contains(t, html, "39.98 EUR")
	assert.Contains(t, html, "VAT 0%")
	assert.Contains(t, html, "Tax treatment: Reverse charge")
	assert.Contains(t, html, "Main: DE89370400440532013000")
	assert.NotContains(t, html, "Draft, not a valid invoice")
}

func TestInvoiceTemplate_RenderDraft(t *testing.T) {
	tmpl, err := NewInvoiceTemplate()
	require.NoError(t, err)

	inv := issuedInvoice()
	inv.Status = "draft"
	inv.Number = nil
	inv.SellerDetails = nil
	inv.BuyerDetails = nil
	inv.PaymentDetails = nil

	out, err := tmpl.RenderInvoice(inv)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Draft, not a valid invoice")
	assert.Contains(t, string(out), "Seller details are frozen at issuance")
	assert.NotContains(t, string(out), "Payment")
}

func TestInvoiceTemplate_Options(t *testing.T) {
	tmpl, err := NewInvoiceTemplate(
		WithLanguage(language.German),
		WithTemplateSource(`{{title .Status}} {{money .Total}} {{treatment "UNKNOWN"}}`),
	)
	require.NoError(t, err)

	out, err := tmpl.RenderInvoice(issuedInvoice())
	require.NoError(t, err)
	assert.Equal(t, "Issued 39.98 UNKNOWN", string(out))

	_, err = NewInvoiceTemplate(WithTemplateSource("{{.Missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse invoice template")

	_, err = tmpl.RenderInvoice(nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}
