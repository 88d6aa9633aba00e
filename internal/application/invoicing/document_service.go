package invoicing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// DocumentFormat is the output format of a rendered invoice
type DocumentFormat string

const (
	FormatHTML DocumentFormat = "html"
	FormatPDF  DocumentFormat = "pdf"
)

// ParseDocumentFormat maps a query value to a format. Empty means HTML.
func ParseDocumentFormat(s string) (DocumentFormat, error) {
	switch DocumentFormat(s) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", ErrUnsupportedFormat.WithMessage("Unsupported document format %q", s)
}

// ErrUnsupportedFormat is returned for unknown formats and for PDF when no
// converter is configured.
var ErrUnsupportedFormat = shared.NewFieldError("format", "UNSUPPORTED_FORMAT", "Unsupported document format")

// Document is a rendered invoice
type Document struct {
	Body        []byte
	ContentType string
	FileName    string
}

// HTMLRenderer renders an invoice as a standalone HTML page
type HTMLRenderer interface {
	RenderInvoice(inv *InvoiceResponse) ([]byte, error)
}

// PDFRenderer prints an HTML page to PDF
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html []byte, title string) ([]byte, error)
}

// DocumentStore keeps rendered PDFs. Issued invoices are immutable so a
// document stored under an invoice version never goes stale.
type DocumentStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// DocumentService renders invoices for download
type DocumentService struct {
	invoices *InvoiceService
	html     HTMLRenderer
	pdf      PDFRenderer
	store    DocumentStore
	logger   *zap.Logger
}

// NewDocumentService creates a new DocumentService. pdf and store are optional.
func NewDocumentService(invoices *InvoiceService, html HTMLRenderer, pdf PDFRenderer, store DocumentStore, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		invoices: invoices,
		html:     html,
		pdf:      pdf,
		store:    store,
		logger:   logger,
	}
}

// PDFEnabled reports whether PDF output is available
func (s *DocumentService) PDFEnabled() bool {
	return s.pdf != nil
}

// Render renders an invoice of sellerID
func (s *DocumentService) Render(ctx context.Context, sellerID, invoiceID uuid.UUID, format DocumentFormat) (*Document, error) {
	inv, err := s.invoices.Get(ctx, sellerID, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, inv, format)
}

// RenderShared renders an invoice reached through its public link
func (s *DocumentService) RenderShared(ctx context.Context, publicID uuid.UUID, token string, format DocumentFormat) (*Document, error) {
	inv, err := s.invoices.GetShared(ctx, publicID, token)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, inv, format)
}

func (s *DocumentService) render(ctx context.Context, inv *InvoiceResponse, format DocumentFormat) (*Document, error) {
	if format == FormatPDF && s.pdf == nil {
		return nil, ErrUnsupportedFormat.WithMessage("PDF rendering is not enabled")
	}
	if format == FormatPDF && inv.Status == string(invoicing.StatusDraft) {
		return nil, shared.ErrInvalidState.WithMessage("Drafts can only be rendered as HTML")
	}

	html, err := s.html.RenderInvoice(inv)
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.ID, err)
	}
	name := documentName(inv)
	if format == FormatHTML {
		return &Document{Body: html, ContentType: "text/html; charset=utf-8", FileName: name + ".html"}, nil
	}

	key := documentKey(inv)
	if s.store != nil {
		body, found, err := s.store.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Stored document unavailable, rendering",
				zap.String("key", key), zap.Error(err))
		} else if found {
			return &Document{Body: body, ContentType: "application/pdf", FileName: name + ".pdf"}, nil
		}
	}

	body, err := s.pdf.RenderPDF(ctx, html, name)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.Put(ctx, key, body, "application/pdf"); err != nil {
			s.logger.Warn("Failed to store document", zap.String("key", key), zap.Error(err))
		}
	}
	return &Document{Body: body, ContentType: "application/pdf", FileName: name + ".pdf"}, nil
}

// documentName is the invoice number once issued, the id before
func documentName(inv *InvoiceResponse) string {
	if inv.Number != nil && *inv.Number != "" {
		return *inv.Number
	}
	return "draft-" + inv.ID.String()
}

func documentKey(inv *InvoiceResponse) string {
	return fmt.Sprintf("invoices/%s/%s/v%d.pdf", inv.SellerID, inv.ID, inv.Version)
}
