package handler

import (
	"github.com/gin-gonic/gin"

	partyapp "github.com/ledgerly/invoicing/internal/application/party"
)

// SellerHandler handles seller registration and settings
type SellerHandler struct {
	BaseHandler
	sellerService *partyapp.SellerService
}

// NewSellerHandler creates a new SellerHandler
func NewSellerHandler(sellerService *partyapp.SellerService) *SellerHandler {
	return &SellerHandler{sellerService: sellerService}
}

// Create handles POST /sellers. It is the only route without seller context.
func (h *SellerHandler) Create(c *gin.Context) {
	var req partyapp.CreateSellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	seller, err := h.sellerService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, seller)
}

// GetCurrent handles GET /seller
func (h *SellerHandler) GetCurrent(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}

	seller, err := h.sellerService.Get(c.Request.Context(), sellerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, seller)
}

// UpdateTaxSettings handles PUT /seller/tax-settings
func (h *SellerHandler) UpdateTaxSettings(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	var req partyapp.UpdateTaxSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	seller, err := h.sellerService.UpdateTaxSettings(c.Request.Context(), sellerID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, seller)
}

// UpdateProfile handles PUT /seller/profile
func (h *SellerHandler) UpdateProfile(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	var req partyapp.UpdateSellerProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	seller, err := h.sellerService.UpdateProfile(c.Request.Context(), sellerID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, seller)
}

// ChangePlan handles PUT /seller/plan
func (h *SellerHandler) ChangePlan(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	var req partyapp.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	seller, err := h.sellerService.ChangePlan(c.Request.Context(), sellerID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, seller)
}
