package printing

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	invoicingapp "github.com/ledgerly/invoicing/internal/application/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/tax"
)

// treatmentLabels are the printed names of the tax treatments
var treatmentLabels = map[string]string{
	string(tax.TreatmentDomestic): "Domestic VAT",
	string(tax.TreatmentEUB2C):    "EU B2C, VAT of the seller's country",
	string(tax.TreatmentEUB2BRC):  "Reverse charge",
	string(tax.TreatmentNonEU):    "Outside the scope of EU VAT",
}

// InvoiceTemplate renders invoices as standalone HTML pages
type InvoiceTemplate struct {
	tmpl *template.Template
}

// InvoiceTemplateOption configures an InvoiceTemplate
type InvoiceTemplateOption func(*invoiceTemplateOptions)

type invoiceTemplateOptions struct {
	lang   language.Tag
	source string
}

// WithLanguage sets the language used for casing labels
func WithLanguage(tag language.Tag) InvoiceTemplateOption {
	return func(o *invoiceTemplateOptions) { o.lang = tag }
}

// WithTemplateSource replaces the built-in page
func WithTemplateSource(source string) InvoiceTemplateOption {
	return func(o *invoiceTemplateOptions) { o.source = source }
}

// NewInvoiceTemplate parses the invoice page
func NewInvoiceTemplate(opts ...InvoiceTemplateOption) (*InvoiceTemplate, error) {
	o := invoiceTemplateOptions{lang: language.English, source: defaultInvoiceTemplate}
	for _, opt := range opts {
		opt(&o)
	}
	caser := cases.Title(o.lang)

	tmpl, err := template.New("invoice").Funcs(template.FuncMap{
		"money":     formatMinorUnits,
		"percent":   formatRate,
		"title":     caser.String,
		"treatment": treatmentLabel,
		"deref":     deref,
		"join":      strings.Join,
	}).Parse(o.source)
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}
	return &InvoiceTemplate{tmpl: tmpl}, nil
}

// RenderInvoice implements the HTML renderer of the document service
func (t *InvoiceTemplate) RenderInvoice(inv *invoicingapp.InvoiceResponse) ([]byte, error) {
	if inv == nil {
		return nil, ErrEmptyDocument
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, inv); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.ID, err)
	}
	return buf.Bytes(), nil
}

// formatMinorUnits prints 4758 as "47.58"
func formatMinorUnits(v int64) string {
	return valueobject.MinorUnits(v).String()
}

// formatRate prints a VAT rate held in percent
func formatRate(rate decimal.Decimal) string {
	return rate.String() + "%"
}

func treatmentLabel(treatment string) string {
	if label, ok := treatmentLabels[treatment]; ok {
		return label
	}
	return treatment
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

const defaultInvoiceTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{if .Number}}Invoice {{deref .Number}}{{else}}Draft invoice{{end}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 11pt; color: #222; }
h1 { font-size: 18pt; margin: 0 0 4mm; }
.parties { display: flex; justify-content: space-between; margin: 6mm 0; }
.party { width: 48%; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 2mm; border-bottom: 1px solid #ddd; text-align: left; }
td.num, th.num { text-align: right; }
.totals td { border: none; }
.draft { color: #b00; font-weight: bold; }
.note { margin-top: 6mm; font-size: 9pt; color: #555; }
</style>
</head>
<body>
{{if .Number}}<h1>Invoice {{deref .Number}}</h1>{{else}}<h1 class="draft">Draft, not a valid invoice</h1>{{end}}
<p>Status: {{title .Status}}{{with .IssueDate}} | Issue date: {{.}}{{end}}{{with .DueDate}} | Due date: {{.}}{{end}}</p>

<div class="parties">
<div class="party">
<strong>From</strong><br>
{{with .SellerDetails}}{{.LegalName}}<br>
{{.Address.Street}}<br>{{.Address.PostalCode}} {{.Address.City}}<br>{{.Address.Country}}<br>
{{with .VatIdentifier}}VAT ID: {{.}}<br>{{end}}{{with .RegistrationNumber}}Registration: {{.}}<br>{{end}}{{with .TaxIdentifier}}Tax ID: {{.}}<br>{{end}}
{{else}}Seller details are frozen at issuance{{end}}
</div>
<div class="party">
<strong>To</strong><br>
{{with .BuyerDetails}}{{if .LegalName}}{{.LegalName}}{{else}}{{.Name}}{{end}}<br>
{{.Address.Street}}<br>{{.Address.PostalCode}} {{.Address.City}}<br>{{.Address.Country}}<br>
{{with .VatIdentifier}}VAT ID: {{.}}<br>{{end}}
{{else}}Buyer details are frozen at issuance{{end}}
</div>
</div>

<table>
<thead><tr><th>#</th><th>Description</th><th class="num">Quantity</th><th class="num">Unit price</th><th class="num">Amount</th></tr></thead>
<tbody>
{{range .Items}}<tr><td>{{.Position}}</td><td>{{.Description}}</td><td class="num">{{.Quantity}}</td><td class="num">{{money .UnitPrice}}</td><td class="num">{{money .LineTotal}}</td></tr>
{{end}}</tbody>
</table>

<table class="totals">
<tr><td class="num">Subtotal</td><td class="num">{{money .Subtotal}} {{.Currency}}</td></tr>
<tr><td class="num">VAT {{percent .VatRate}}</td><td class="num">{{money .VAT}} {{.Currency}}</td></tr>
<tr><td class="num"><strong>Total</strong></td><td class="num"><strong>{{money .Total}} {{.Currency}}</strong></td></tr>
</table>

<p class="note">Tax treatment: {{treatment .TaxTreatment}}{{with .TaxReason}}. {{.}}{{end}}</p>

{{with .PaymentDetails}}<p><strong>Payment</strong><br>
{{range .Accounts}}{{.Nickname}}: {{.AccountIdentifier}}<br>
{{end}}</p>{{end}}
{{with .Notes}}<p class="note">{{.}}</p>{{end}}
</body>
</html>
`
