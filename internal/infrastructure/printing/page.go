package printing

import (
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/page"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// ErrEmptyDocument is returned when there is no HTML to print
var ErrEmptyDocument = errors.New("printing: empty document")

// Margins of a printed page in millimetres
type Margins struct {
	Top, Right, Bottom, Left float64
}

// Page is the printed page geometry in millimetres.
type Page struct {
	WidthMM  float64
	HeightMM float64
	Margins  Margins
}

// A4 is the page invoices are printed on.
func A4() Page {
	return Page{WidthMM: 210, HeightMM: 297, Margins: Margins{Top: 15, Right: 12, Bottom: 15, Left: 12}}
}

func inches(mm float64) float64 { return mm / 25.4 }

// printerUnavailable reports a Chrome failure as a provider outage, so the
// API answers 503 and the client can retry.
func printerUnavailable(reason string, cause error) error {
	return fmt.Errorf("%w: %w", shared.ErrProviderUnavailable.WithMessage("PDF printer unavailable: %s", reason), cause)
}

func (p Page) printParams() *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPreferCSSPageSize(false).
		WithPaperWidth(inches(p.WidthMM)).
		WithPaperHeight(inches(p.HeightMM)).
		WithMarginTop(inches(p.Margins.Top)).
		WithMarginRight(inches(p.Margins.Right)).
		WithMarginBottom(inches(p.Margins.Bottom)).
		WithMarginLeft(inches(p.Margins.Left))
}
