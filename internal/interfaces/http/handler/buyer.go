package handler

import (
	"github.com/gin-gonic/gin"

	partyapp "github.com/ledgerly/invoicing/internal/application/party"
)

// BuyerHandler handles a seller's buyers
type BuyerHandler struct {
	BaseHandler
	buyerService *partyapp.BuyerService
}

// NewBuyerHandler creates a new BuyerHandler
func NewBuyerHandler(buyerService *partyapp.BuyerService) *BuyerHandler {
	return &BuyerHandler{buyerService: buyerService}
}

// Create handles POST /buyers
func (h *BuyerHandler) Create(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	var req partyapp.BuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	buyer, err := h.buyerService.Create(c.Request.Context(), sellerID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, buyer)
}

// GetByID handles GET /buyers/:id
func (h *BuyerHandler) GetByID(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	buyerID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	buyer, err := h.buyerService.Get(c.Request.Context(), sellerID, buyerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, buyer)
}

// List handles GET /buyers
func (h *BuyerHandler) List(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	var filter partyapp.ListBuyersFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	buyers, total, err := h.buyerService.List(c.Request.Context(), sellerID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, buyers, total, page, pageSize)
}

// Update handles PUT /buyers/:id
func (h *BuyerHandler) Update(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	buyerID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req partyapp.BuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	buyer, err := h.buyerService.Update(c.Request.Context(), sellerID, buyerID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, buyer)
}

// Delete handles DELETE /buyers/:id
func (h *BuyerHandler) Delete(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	buyerID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.buyerService.Delete(c.Request.Context(), sellerID, buyerID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
