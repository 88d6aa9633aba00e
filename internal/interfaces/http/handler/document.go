package handler

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	invoicingapp "github.com/ledgerly/invoicing/internal/application/invoicing"
)

// DocumentHandler serves rendered invoices
type DocumentHandler struct {
	BaseHandler
	documentService *invoicingapp.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService *invoicingapp.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Get handles GET /invoices/:id/document?format=html|pdf
func (h *DocumentHandler) Get(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}
	format, err := invoicingapp.ParseDocumentFormat(c.Query("format"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	doc, err := h.documentService.Render(c.Request.Context(), sellerID, invoiceID, format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.document(c, doc)
}

// GetShared handles GET /public/invoices/:public_id/document?token=&format=
func (h *DocumentHandler) GetShared(c *gin.Context) {
	publicID, ok := h.uuidParam(c, "public_id")
	if !ok {
		return
	}
	format, err := invoicingapp.ParseDocumentFormat(c.Query("format"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	doc, err := h.documentService.RenderShared(c.Request.Context(), publicID, c.Query("token"), format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.document(c, doc)
}

func (h *DocumentHandler) document(c *gin.Context, doc *invoicingapp.Document) {
	disposition := "inline"
	if c.Query("download") == "true" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": doc.FileName}))
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}
