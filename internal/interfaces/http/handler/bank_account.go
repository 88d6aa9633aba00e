package handler

import (
	"github.com/gin-gonic/gin"

	partyapp "github.com/ledgerly/invoicing/internal/application/party"
)

// BankAccountHandler handles a seller's receiving accounts
type BankAccountHandler struct {
	BaseHandler
	accountService *partyapp.BankAccountService
}

// NewBankAccountHandler creates a new BankAccountHandler
func NewBankAccountHandler(accountService *partyapp.BankAccountService) *BankAccountHandler {
	return &BankAccountHandler{accountService: accountService}
}

// Create handles POST /bank-accounts
func (h *BankAccountHandler) Create(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	var req partyapp.CreateBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	account, err := h.accountService.Create(c.Request.Context(), sellerID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, account)
}

// List handles GET /bank-accounts
func (h *BankAccountHandler) List(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}

	accounts, err := h.accountService.List(c.Request.Context(), sellerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, accounts)
}

// Deactivate handles POST /bank-accounts/:id/deactivate
func (h *BankAccountHandler) Deactivate(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	accountID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	account, err := h.accountService.Deactivate(c.Request.Context(), sellerID, accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}
