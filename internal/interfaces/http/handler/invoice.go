package handler

import (
	"github.com/gin-gonic/gin"

	invoicingapp "github.com/ledgerly/invoicing/internal/application/invoicing"
)

// InvoiceHandler handles drafts, issuance and the invoice lifecycle
type InvoiceHandler struct {
	BaseHandler
	invoiceService  *invoicingapp.InvoiceService
	issuanceService *invoicingapp.IssuanceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *invoicingapp.InvoiceService, issuanceService *invoicingapp.IssuanceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService:  invoiceService,
		issuanceService: issuanceService,
	}
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	var req invoicingapp.CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	inv, err := h.invoiceService.Create(c.Request.Context(), sellerID, req, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// GetByID handles GET /invoices/:id
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.Get(c.Request.Context(), sellerID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	var filter invoicingapp.ListInvoicesFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	invoices, total, err := h.invoiceService.List(c.Request.Context(), sellerID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, invoices, total, page, pageSize)
}

// Update handles PUT /invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}
	var req invoicingapp.UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	inv, err := h.invoiceService.Update(c.Request.Context(), sellerID, invoiceID, req, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// ReplaceItems handles PUT /invoices/:id/items
func (h *InvoiceHandler) ReplaceItems(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}
	var req invoicingapp.ReplaceItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	inv, err := h.invoiceService.ReplaceItems(c.Request.Context(), sellerID, invoiceID, req, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// SetTreatment handles PUT /invoices/:id/treatment
func (h *InvoiceHandler) SetTreatment(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}
	var req invoicingapp.SetTreatmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	inv, err := h.invoiceService.SetTreatment(c.Request.Context(), sellerID, invoiceID, req, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// ResetTreatment handles DELETE /invoices/:id/treatment
func (h *InvoiceHandler) ResetTreatment(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.ResetTreatment(c.Request.Context(), sellerID, invoiceID, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// SetRate handles PUT /invoices/:id/rate
func (h *InvoiceHandler) SetRate(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}
	var req invoicingapp.SetRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	inv, err := h.invoiceService.SetRate(c.Request.Context(), sellerID, invoiceID, req, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// ResetRate handles DELETE /invoices/:id/rate
func (h *InvoiceHandler) ResetRate(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.ResetRate(c.Request.Context(), sellerID, invoiceID, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Preview handles GET /invoices/:id/decision
func (h *InvoiceHandler) Preview(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}

	preview, err := h.invoiceService.Preview(c.Request.Context(), sellerID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// Issue handles POST /invoices/:id/issue. Repeating the call on an issued
// invoice returns the existing number.
func (h *InvoiceHandler) Issue(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}

	result, err := h.issuanceService.Issue(c.Request.Context(), sellerID, invoiceID, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// MarkPaid handles POST /invoices/:id/paid
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}
	var req invoicingapp.MarkPaidRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	inv, err := h.issuanceService.MarkPaid(c.Request.Context(), sellerID, invoiceID, req, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Void handles POST /invoices/:id/void
func (h *InvoiceHandler) Void(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}
	var req invoicingapp.VoidRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	inv, err := h.issuanceService.Void(c.Request.Context(), sellerID, invoiceID, req, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// UpdateDueDate handles PATCH /invoices/:id/due-date
func (h *InvoiceHandler) UpdateDueDate(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}
	var req invoicingapp.UpdateDueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	inv, err := h.issuanceService.UpdateDueDate(c.Request.Context(), sellerID, invoiceID, req, actorOf(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Events handles GET /invoices/:id/events
func (h *InvoiceHandler) Events(c *gin.Context) {
	sellerID, invoiceID, ok := h.invoiceRef(c)
	if !ok {
		return
	}

	events, err := h.invoiceService.Events(c.Request.Context(), sellerID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, events)
}

// GetShared handles GET /public/invoices/:public_id?token=...
// Unknown ids and wrong tokens both answer 404.
func (h *InvoiceHandler) GetShared(c *gin.Context) {
	publicID, ok := h.uuidParam(c, "public_id")
	if !ok {
		return
	}

	inv, err := h.invoiceService.GetShared(c.Request.Context(), publicID, c.Query("token"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}
