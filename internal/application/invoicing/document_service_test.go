package invoicing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appinvoicing "github.com/ledgerly/invoicing/internal/application/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
)

type stubHTML struct{}

func (stubHTML) RenderInvoice(inv *appinvoicing.InvoiceResponse) ([]byte, error) {
	return []byte("<html>" + inv.Status + "</html>"), nil
}

type countingPDF struct {
	calls  int
	titles []string
}

func (p *countingPDF) RenderPDF(_ context.Context, html []byte, title string) ([]byte, error) {
	p.calls++
	p.titles = append(p.titles, title)
	return append([]byte("%PDF-"), html...), nil
}

type mapStore struct {
	objects map[string][]byte
	getErr  error
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	body, ok := s.objects[key]
	return body, ok, nil
}

func (s *mapStore) Put(_ context.Context, key string, body []byte, _ string) error {
	s.objects[key] = body
	return nil
}

func TestParseDocumentFormat(t *testing.T) {
	for in, want := range map[string]appinvoicing.DocumentFormat{
		"":     appinvoicing.FormatHTML,
		"html": appinvoicing.FormatHTML,
		"pdf":  appinvoicing.FormatPDF,
	} {
		got, err := appinvoicing.ParseDocumentFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := appinvoicing.ParseDocumentFormat("docx")
	assert.ErrorIs(t, err, appinvoicing.ErrUnsupportedFormat)
	cat, _ := shared.CategoryOf(err)
	assert.Equal(t, shared.CategoryValidation, cat)
}

func TestDocumentService_Render(t *testing.T) {
	f := newFixture(t)
	seller := f.seller(true)
	buyer := f.buyer(seller.ID, "DE", "", "")
	draft := f.draft(seller.ID, buyer.ID)

	pdf := &countingPDF{}
	store := &mapStore{objects: map[string][]byte{}}
	docs := appinvoicing.NewDocumentService(f.invoices, stubHTML{}, pdf, store, zap.NewNop())

	t.Run("drafts render as HTML", func(t *testing.T) {
		doc, err := docs.Render(f.ctx, seller.ID, draft.ID, appinvoicing.FormatHTML)
		require.NoError(t, err)
		assert.Equal(t, "<html>draft</html>", string(doc.Body))
		assert.Equal(t, "text/html; charset=utf-8", doc.ContentType)
		assert.Equal(t, "draft-"+draft.ID.String()+".html", doc.FileName)
	})

	t.Run("drafts are not printed", func(t *testing.T) {
		_, err := docs.Render(f.ctx, seller.ID, draft.ID, appinvoicing.FormatPDF)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Zero(t, pdf.calls)
	})

	_, err := f.issuance.Issue(f.ctx, seller.ID, draft.ID, "tester")
	require.NoError(t, err)

	t.Run("issued invoices print once", func(t *testing.T) {
		doc, err := docs.Render(f.ctx, seller.ID, draft.ID, appinvoicing.FormatPDF)
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", doc.ContentType)
		assert.Equal(t, "INV-2026-000001.pdf", doc.FileName)
		assert.Equal(t, []string{"INV-2026-000001"}, pdf.titles)
		require.Len(t, store.objects, 1)

		again, err := docs.RenderShared(f.ctx, draft.PublicID, draft.ShareToken, appinvoicing.FormatPDF)
		require.NoError(t, err)
		assert.Equal(t, doc.Body, again.Body)
		assert.Equal(t, 1, pdf.calls, "second download is served from the store")
	})

	t.Run("store failures fall back to rendering", func(t *testing.T) {
		broken := &mapStore{objects: map[string][]byte{}, getErr: errors.New("bucket gone")}
		docs := appinvoicing.NewDocumentService(f.invoices, stubHTML{}, pdf, broken, nil)
		_, err := docs.Render(f.ctx, seller.ID, draft.ID, appinvoicing.FormatPDF)
		require.NoError(t, err)
		assert.Equal(t, 2, pdf.calls)
	})

	t.Run("foreign sellers see nothing", func(t *testing.T) {
		other := f.seller(false)
		_, err := docs.Render(f.ctx, other.ID, draft.ID, appinvoicing.FormatHTML)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestDocumentService_PDFDisabled(t *testing.T) {
	f := newFixture(t)
	seller := f.seller(true)
	buyer := f.buyer(seller.ID, "DE", "", "")
	draft := f.draft(seller.ID, buyer.ID)
	_, err := f.issuance.Issue(f.ctx, seller.ID, draft.ID, "tester")
	require.NoError(t, err)

	docs := appinvoicing.NewDocumentService(f.invoices, stubHTML{}, nil, nil, nil)
	assert.False(t, docs.PDFEnabled())

	_, err = docs.Render(f.ctx, seller.ID, draft.ID, appinvoicing.FormatPDF)
	assert.ErrorIs(t, err, appinvoicing.ErrUnsupportedFormat)

	doc, err := docs.RenderShared(f.ctx, draft.PublicID, draft.ShareToken, appinvoicing.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "<html>issued</html>", string(doc.Body))
}
